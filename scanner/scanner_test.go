package scanner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hc4067-ctrl/protocol"
)

type fakeMux struct {
	levels uint16
	reads  []int
	err    error
}

func (f *fakeMux) Get(channel int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.reads = append(f.reads, channel)
	return f.levels&(1<<channel) != 0, nil
}

func (f *fakeMux) Set(int, bool) error { return nil }
func (f *fakeMux) Enable() error       { return nil }
func (f *fakeMux) Disable() error      { return nil }
func (f *fakeMux) Close() error        { return nil }

func TestFirstScanReportsMaskedChannels(t *testing.T) {
	mux := &fakeMux{levels: 0b1010}
	s := New(mux, Config{Mask: 0b1110})

	events, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, mux.reads)
	assert.Equal(t, []protocol.Event{
		protocol.Change(1, true),
		protocol.Change(2, false),
		protocol.Change(3, true),
	}, events)
	assert.Equal(t, uint16(0b1010), s.Levels())
}

func TestZeroMaskScansEverything(t *testing.T) {
	mux := &fakeMux{}
	s := New(mux, Config{})

	events, err := s.Scan()
	require.NoError(t, err)
	assert.Len(t, events, 16)
	assert.Equal(t, uint16(0xFFFF), s.Mask())
}

func TestReportsOnlyChanges(t *testing.T) {
	mux := &fakeMux{}
	s := New(mux, Config{})
	_, err := s.Scan()
	require.NoError(t, err)

	events, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, events)

	mux.levels = 1<<4 | 1<<15
	events, err = s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []protocol.Event{protocol.Change(4, true), protocol.Change(15, true)}, events)

	mux.levels = 1 << 15
	events, err = s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []protocol.Event{protocol.Change(4, false)}, events)
}

func TestDebounce(t *testing.T) {
	mux := &fakeMux{}
	s := New(mux, Config{Mask: 1, Stable: 3})
	_, err := s.Scan()
	require.NoError(t, err)

	// a two-sample glitch is ignored
	mux.levels = 1
	for i := 0; i < 2; i++ {
		events, err := s.Scan()
		require.NoError(t, err)
		assert.Empty(t, events)
	}
	mux.levels = 0
	events, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, events)

	mux.levels = 1
	for i := 0; i < 2; i++ {
		events, err = s.Scan()
		require.NoError(t, err)
		assert.Empty(t, events)
	}
	events, err = s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []protocol.Event{protocol.Change(0, true)}, events)
	assert.Equal(t, uint16(1), s.Levels())
}

func TestScanError(t *testing.T) {
	boom := errors.New("boom")
	s := New(&fakeMux{err: boom}, Config{})
	_, err := s.Scan()
	assert.ErrorIs(t, err, boom)
}

type holdingMux struct {
	fakeMux
	calls []string
}

func (h *holdingMux) Get(channel int) (bool, error) {
	h.calls = append(h.calls, "get")
	return h.fakeMux.Get(channel)
}

func (h *holdingMux) Release() error {
	h.calls = append(h.calls, "release")
	return nil
}

func (h *holdingMux) Resume() error {
	h.calls = append(h.calls, "resume")
	return nil
}

func TestScanReleasesHeldOutput(t *testing.T) {
	mux := &holdingMux{}
	s := New(mux, Config{Mask: 0b11})

	_, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"release", "get", "get", "resume"}, mux.calls)

	mux.calls = nil
	mux.err = errors.New("boom")
	_, err = s.Scan()
	assert.Error(t, err)
	assert.Equal(t, []string{"release", "get", "resume"}, mux.calls, "the hold is restored after a failed read")
}
