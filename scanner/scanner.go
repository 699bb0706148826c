// Package scanner polls the input channels of a multiplexer and reports
// level changes.
package scanner

import (
	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/protocol"
)

// Config selects what gets scanned. Mask bit i enables channel i; zero
// means all channels. Stable is the number of identical consecutive reads a
// channel needs before its new level is reported (0 and 1 both mean
// report immediately).
type Config struct {
	Mask   uint16 `yaml:"mask"`
	Stable int    `yaml:"stable"`
}

type Scanner struct {
	mux    multiplexer.Mux
	mask   uint16
	stable int

	levels  uint16 // debounced
	primed  bool
	pending uint16 // raw level seen on the last read
	count   [multiplexer.Channels]int
}

func New(mux multiplexer.Mux, cfg Config) *Scanner {
	if cfg.Mask == 0 {
		cfg.Mask = 0xFFFF
	}
	if cfg.Stable < 1 {
		cfg.Stable = 1
	}
	return &Scanner{mux: mux, mask: cfg.Mask, stable: cfg.Stable}
}

// Scan reads every masked channel once, lowest first. The first successful
// scan reports every masked channel; later scans only report changes.
//
// When the multiplexer is a multiplexer.Holder, SIG is released for the
// duration of the scan and the held output is restored afterwards.
func (s *Scanner) Scan() ([]protocol.Event, error) {
	raw, err := s.read()
	if err != nil {
		return nil, err
	}

	if !s.primed {
		s.primed = true
		s.levels = raw
		s.pending = raw
		events := make([]protocol.Event, 0, multiplexer.Channels)
		for ch := 0; ch < multiplexer.Channels; ch++ {
			if s.mask&(1<<ch) != 0 {
				events = append(events, protocol.Change(uint8(ch), raw&(1<<ch) != 0))
			}
		}
		return events, nil
	}

	var events []protocol.Event
	for ch := 0; ch < multiplexer.Channels; ch++ {
		bit := uint16(1) << ch
		if s.mask&bit == 0 {
			continue
		}
		if raw&bit != s.pending&bit {
			s.count[ch] = 0
		}
		if raw&bit == s.levels&bit {
			s.count[ch] = 0
			continue
		}
		s.count[ch]++
		if s.count[ch] >= s.stable {
			s.count[ch] = 0
			s.levels ^= bit
			events = append(events, protocol.Change(uint8(ch), raw&bit != 0))
		}
	}
	s.pending = raw
	return events, nil
}

func (s *Scanner) read() (raw uint16, err error) {
	if h, ok := s.mux.(multiplexer.Holder); ok {
		if err := h.Release(); err != nil {
			return 0, err
		}
		defer func() {
			if rerr := h.Resume(); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}
	for ch := 0; ch < multiplexer.Channels; ch++ {
		if s.mask&(1<<ch) == 0 {
			continue
		}
		high, err := s.mux.Get(ch)
		if err != nil {
			return 0, err
		}
		if high {
			raw |= 1 << ch
		}
	}
	return raw, nil
}

// Levels returns the debounced level of every channel as a bitmap.
func (s *Scanner) Levels() uint16 { return s.levels }

func (s *Scanner) Mask() uint16 { return s.mask }
