// Package pin defines the GPIO capability the drivers in this module are
// written against. Boards plug in an adapter (machinepin on tinygo targets,
// periphpin on Linux SBCs) and tests plug in pintest.Recorder.
package pin

import "strconv"

// Number identifies a physical I/O line. Its meaning is up to the adapter.
type Number int

// NC marks an optional line that is not connected.
const NC Number = -1

func (n Number) String() string {
	if n == NC {
		return "NC"
	}
	return "GPIO" + strconv.Itoa(int(n))
}

type Direction uint8

const (
	// Disabled leaves the line high-impedance.
	Disabled Direction = iota
	Input
	Output
	// InputOutput lines can be both driven and read back.
	InputOutput
)

func (d Direction) String() string {
	switch d {
	case Disabled:
		return "disabled"
	case Input:
		return "input"
	case Output:
		return "output"
	case InputOutput:
		return "input/output"
	default:
		return "unknown"
	}
}

// Controller is the set of operations a driver needs from the GPIO block.
type Controller interface {
	// Reset returns the line to its power-on state.
	Reset(p Number) error
	SetDirection(p Number, d Direction) error
	Set(p Number, level bool) error
	Get(p Number) (bool, error)
}
