package multiplexer

import (
	"fmt"

	"hc4067-ctrl/pin"
)

// HC4067 controls one chip. It does no locking; callers that share an HC4067
// between goroutines must serialise access themselves.
type HC4067 struct {
	gpio    pin.Controller
	sel     [4]pin.Number // sel[i] carries bit i of the channel
	sig     pin.Number
	en      pin.Number
	enabled bool
	channel uint8
	closed  bool

	// last Set, replayed by Resume
	holding  bool
	released bool
	held     uint8
	level    bool
}

var (
	_ Mux    = (*HC4067)(nil)
	_ Holder = (*HC4067)(nil)
)

// New configures the pins and returns a disabled multiplexer parked on
// channel 0. Pass pin.NC for en when the enable line is not wired.
func New(gpio pin.Controller, s0, s1, s2, s3, sig, en pin.Number) (*HC4067, error) {
	m := &HC4067{
		gpio: gpio,
		sel:  [4]pin.Number{s0, s1, s2, s3},
		sig:  sig,
		en:   en,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := m.configure(); err != nil {
		return nil, err
	}
	return m, nil
}

func NewFromConfig(gpio pin.Controller, cfg Config) (*HC4067, error) {
	return New(gpio, cfg.S0, cfg.S1, cfg.S2, cfg.S3, cfg.Sig, cfg.En)
}

func (m *HC4067) validate() error {
	seen := make(map[pin.Number]bool, 6)
	lines := append(m.sel[:], m.sig)
	for _, p := range lines {
		if p < 0 {
			return fmt.Errorf("%w: required line is %s", ErrInvalidPin, p)
		}
	}
	if m.en != pin.NC {
		if m.en < 0 {
			return fmt.Errorf("%w: enable line is %d", ErrInvalidPin, int(m.en))
		}
		lines = append(lines, m.en)
	}
	for _, p := range lines {
		if seen[p] {
			return fmt.Errorf("%w: %s used twice", ErrInvalidPin, p)
		}
		seen[p] = true
	}
	return nil
}

func (m *HC4067) configure() error {
	for _, p := range m.sel {
		if err := m.gpio.Reset(p); err != nil {
			return fmt.Errorf("reset %s: %w", p, err)
		}
	}
	if err := m.gpio.Reset(m.sig); err != nil {
		return fmt.Errorf("reset %s: %w", m.sig, err)
	}

	for _, p := range m.sel {
		if err := m.gpio.SetDirection(p, pin.Output); err != nil {
			return fmt.Errorf("configure %s: %w", p, err)
		}
	}
	if err := m.gpio.SetDirection(m.sig, pin.InputOutput); err != nil {
		return fmt.Errorf("configure %s: %w", m.sig, err)
	}

	for _, p := range m.sel {
		if err := m.gpio.Set(p, false); err != nil {
			return fmt.Errorf("drive %s: %w", p, err)
		}
	}

	if m.en != pin.NC {
		if err := m.gpio.SetDirection(m.en, pin.Output); err != nil {
			return fmt.Errorf("configure %s: %w", m.en, err)
		}
		return m.disable()
	}
	return nil
}

// Close disables the mux and releases the select and SIG lines. The enable
// line stays an output driven high so the chip cannot float into the
// enabled state once released.
func (m *HC4067) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.holding, m.released = false, false

	var first error
	if err := m.disable(); err != nil {
		first = err
	}
	for _, p := range append(m.sel[:], m.sig) {
		if err := m.gpio.SetDirection(p, pin.Disabled); err != nil && first == nil {
			first = fmt.Errorf("release %s: %w", p, err)
		}
	}
	return first
}

// Enable connects SIG to the selected channel. It is a no-op without an
// enable line.
func (m *HC4067) Enable() error {
	if m.closed {
		return ErrClosed
	}
	return m.enable()
}

// Disable isolates SIG from every channel. It is a no-op without an enable
// line.
func (m *HC4067) Disable() error {
	if m.closed {
		return ErrClosed
	}
	return m.disable()
}

func (m *HC4067) enable() error {
	if m.en == pin.NC {
		return nil
	}
	if err := m.gpio.Set(m.en, false); err != nil {
		return err
	}
	m.enabled = true
	return nil
}

func (m *HC4067) disable() error {
	if m.en == pin.NC {
		return nil
	}
	if err := m.gpio.Set(m.en, true); err != nil {
		return err
	}
	m.enabled = false
	return nil
}

// Get selects channel and returns the level read on SIG. Only the low 4 bits
// of channel are used.
func (m *HC4067) Get(channel int) (bool, error) {
	if m.closed {
		return false, ErrClosed
	}
	if err := m.selectChannel(channel); err != nil {
		return false, err
	}
	return m.gpio.Get(m.sig)
}

// Set selects channel and drives SIG to state. SIG stays driven after the
// call returns.
func (m *HC4067) Set(channel int, state bool) error {
	if m.closed {
		return ErrClosed
	}
	if err := m.selectChannel(channel); err != nil {
		return err
	}
	if err := m.gpio.Set(m.sig, state); err != nil {
		return err
	}
	m.holding, m.released = true, false
	m.held, m.level = m.channel, state
	return nil
}

// Release turns SIG back into an input so reads see the selected channel
// instead of the level last driven by Set. It does nothing when SIG is not
// being driven.
func (m *HC4067) Release() error {
	if m.closed {
		return ErrClosed
	}
	if !m.holding || m.released {
		return nil
	}
	if err := m.gpio.SetDirection(m.sig, pin.InputOutput); err != nil {
		return fmt.Errorf("release %s: %w", m.sig, err)
	}
	m.released = true
	return nil
}

// Resume selects the channel of the last Set again and drives SIG back to
// its level, undoing Release.
func (m *HC4067) Resume() error {
	if m.closed {
		return ErrClosed
	}
	if !m.holding || !m.released {
		return nil
	}
	return m.Set(int(m.held), m.level)
}

// selectChannel keeps the chip disabled while the select lines move so SIG
// never touches an intermediate channel.
func (m *HC4067) selectChannel(channel int) error {
	if err := m.disable(); err != nil {
		return err
	}
	c := Mask(channel)
	for i := len(m.sel) - 1; i >= 0; i-- {
		if err := m.gpio.Set(m.sel[i], c>>uint(i)&1 == 1); err != nil {
			return fmt.Errorf("select %d: %w", c, err)
		}
	}
	m.channel = c
	return m.enable()
}

// Enabled reports the last level driven on the enable line. It is always
// false without one.
func (m *HC4067) Enabled() bool { return m.enabled }

// Channel returns the channel the select lines currently point at.
func (m *HC4067) Channel() uint8 { return m.channel }

func (m *HC4067) HasEnable() bool { return m.en != pin.NC }

// Holding reports the channel SIG is driving, if any. A released hold still
// counts until the next Resume or Close.
func (m *HC4067) Holding() (uint8, bool) { return m.held, m.holding }
