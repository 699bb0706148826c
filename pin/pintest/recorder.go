// Package pintest provides a recording pin.Controller for host-side tests.
package pintest

import (
	"errors"
	"fmt"
	"sync"

	"hc4067-ctrl/pin"
)

type Kind uint8

const (
	KindReset Kind = iota + 1
	KindDirection
	KindSet
	KindGet
)

func (k Kind) String() string {
	switch k {
	case KindReset:
		return "reset"
	case KindDirection:
		return "direction"
	case KindSet:
		return "set"
	case KindGet:
		return "get"
	default:
		return "unknown"
	}
}

// Op is one recorded call. Dir is only meaningful for KindDirection and Level
// for KindSet and KindGet.
type Op struct {
	Kind  Kind
	Pin   pin.Number
	Dir   pin.Direction
	Level bool
}

func (o Op) String() string {
	switch o.Kind {
	case KindDirection:
		return fmt.Sprintf("%s %s %s", o.Kind, o.Pin, o.Dir)
	case KindSet, KindGet:
		return fmt.Sprintf("%s %s %t", o.Kind, o.Pin, o.Level)
	default:
		return fmt.Sprintf("%s %s", o.Kind, o.Pin)
	}
}

// Set and Direction are shorthands for building expected op sequences.
func Set(p pin.Number, level bool) Op { return Op{Kind: KindSet, Pin: p, Level: level} }

func Direction(p pin.Number, d pin.Direction) Op { return Op{Kind: KindDirection, Pin: p, Dir: d} }

var ErrInjected = errors.New("pintest: injected failure")

// Recorder keeps every call in order along with the resulting pin state.
// Get returns the level last driven on an output, or the level provided with
// SetInput for lines that were never driven or have since been turned back
// into inputs.
type Recorder struct {
	mu     sync.Mutex
	ops    []Op
	dirs   map[pin.Number]pin.Direction
	levels map[pin.Number]bool
	inputs map[pin.Number]bool
	driven map[pin.Number]bool
	fail   map[Kind]pin.Number
}

func NewRecorder() *Recorder {
	return &Recorder{
		dirs:   make(map[pin.Number]pin.Direction),
		levels: make(map[pin.Number]bool),
		inputs: make(map[pin.Number]bool),
		driven: make(map[pin.Number]bool),
		fail:   make(map[Kind]pin.Number),
	}
}

// SetInput sets the externally applied level of p. It also clears the
// driven flag so the next Get reads the external level.
func (r *Recorder) SetInput(p pin.Number, level bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[p] = level
	r.driven[p] = false
}

// FailOn makes every call of kind k on p return ErrInjected.
func (r *Recorder) FailOn(k Kind, p pin.Number) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[k] = p
}

func (r *Recorder) failing(k Kind, p pin.Number) bool {
	fp, ok := r.fail[k]
	return ok && fp == p
}

func (r *Recorder) Reset(p pin.Number) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: KindReset, Pin: p})
	if r.failing(KindReset, p) {
		return ErrInjected
	}
	r.dirs[p] = pin.Disabled
	r.levels[p] = false
	r.driven[p] = false
	return nil
}

func (r *Recorder) SetDirection(p pin.Number, d pin.Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Direction(p, d))
	if r.failing(KindDirection, p) {
		return ErrInjected
	}
	r.dirs[p] = d
	if d != pin.Output {
		r.driven[p] = false
	}
	return nil
}

func (r *Recorder) Set(p pin.Number, level bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Set(p, level))
	if r.failing(KindSet, p) {
		return ErrInjected
	}
	r.levels[p] = level
	r.driven[p] = true
	return nil
}

func (r *Recorder) Get(p pin.Number) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing(KindGet, p) {
		r.ops = append(r.ops, Op{Kind: KindGet, Pin: p})
		return false, ErrInjected
	}
	level := r.inputs[p]
	if r.driven[p] {
		level = r.levels[p]
	}
	r.ops = append(r.ops, Op{Kind: KindGet, Pin: p, Level: level})
	return level, nil
}

// Ops returns a copy of the recorded calls.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// OpsOn returns the recorded calls that touched p.
func (r *Recorder) OpsOn(p pin.Number) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Op
	for _, o := range r.ops {
		if o.Pin == p {
			out = append(out, o)
		}
	}
	return out
}

// Clear forgets the recorded calls but keeps pin state.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

func (r *Recorder) Level(p pin.Number) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels[p]
}

func (r *Recorder) Dir(p pin.Number) pin.Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirs[p]
}
