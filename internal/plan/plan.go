package plan

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks a structurally unusable plan.
var ErrInvalid = errors.New("invalid plan")

// TargetKind says which live reading a step's intensity band applies to.
type TargetKind int

const (
	TargetPower TargetKind = iota
	TargetHeartRate
	TargetPace
)

func (k TargetKind) String() string {
	switch k {
	case TargetPower:
		return "power"
	case TargetHeartRate:
		return "heart_rate"
	case TargetPace:
		return "pace"
	}
	return "unknown"
}

// Target is one intensity band. For power and heart rate, Low/High are
// fractions of FTP or threshold HR (0.88 = 88%). For pace they are
// speeds in m/s.
type Target struct {
	Kind TargetKind
	Low  float64
	High float64
}

// Node is one entry in a plan definition: either an atomic Step or a
// Repeat block.
type Node interface {
	node()
}

// Step is one atomic instruction. Exactly one of Duration and Distance
// should be set; a step with neither is malformed and will be skipped
// at execution time.
type Step struct {
	Name     string
	Duration time.Duration // time-based, 0 when distance-based
	Distance float64       // meters, 0 when time-based
	Targets  []Target
	Cadence  int // rpm hint, 0 = none
}

// Repeat is a block of steps executed Count times in order.
type Repeat struct {
	Name  string
	Count int
	Steps []Step
}

func (Step) node()   {}
func (Repeat) node() {}

// FlatStep is a Step plus its provenance: which repeated block
// produced it and at which repetition. Steps outside any block carry
// an empty BlockName and RepCount 0.
type FlatStep struct {
	Step
	BlockName string
	RepIndex  int
	RepCount  int
}

// Plan is a parsed plan document.
type Plan struct {
	Name        string
	Description string
	Nodes       []Node
}

// Validate rejects plans whose structure cannot be expanded. Steps
// with missing targets or durations pass here; those are handled at
// execution time.
func Validate(nodes []Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalid)
	}
	for i, n := range nodes {
		r, ok := n.(Repeat)
		if !ok {
			continue
		}
		if r.Count < 1 {
			return fmt.Errorf("%w: block %q at %d repeats %d times", ErrInvalid, r.Name, i, r.Count)
		}
		if len(r.Steps) == 0 {
			return fmt.Errorf("%w: block %q at %d has no steps", ErrInvalid, r.Name, i)
		}
		if r.Name == "" {
			return fmt.Errorf("%w: block at %d has no name", ErrInvalid, i)
		}
	}
	return nil
}

// Flatten expands a plan definition into the ordered step timeline the
// adherence engine consumes. A block of N steps repeated K times
// becomes exactly N×K flattened steps tagged with the block's name and
// repetition index. Atomic steps pass through unchanged, so flattening
// an already-flat plan is the identity.
func Flatten(nodes []Node) []FlatStep {
	var out []FlatStep
	for _, n := range nodes {
		switch v := n.(type) {
		case Step:
			out = append(out, FlatStep{Step: v})
		case Repeat:
			out = append(out, expand(v)...)
		}
	}
	return out
}

func expand(r Repeat) []FlatStep {
	out := make([]FlatStep, 0, len(r.Steps)*r.Count)
	for rep := 0; rep < r.Count; rep++ {
		for _, s := range r.Steps {
			out = append(out, FlatStep{
				Step:      s,
				BlockName: r.Name,
				RepIndex:  rep,
				RepCount:  r.Count,
			})
		}
	}
	return out
}

// Reflatten applies an edit to one repeated block: every flattened
// step tagged with the block's name is removed and the block is
// regenerated in place, at the position of its first old step. All
// other steps keep their relative order. A block that did not appear
// before is appended.
func Reflatten(flattened []FlatStep, edited Repeat) []FlatStep {
	insertAt := -1
	out := make([]FlatStep, 0, len(flattened))
	for _, fs := range flattened {
		if fs.BlockName == edited.Name {
			if insertAt == -1 {
				insertAt = len(out)
			}
			continue
		}
		out = append(out, fs)
	}
	if insertAt == -1 {
		insertAt = len(out)
	}

	regenerated := expand(edited)
	out = append(out[:insertAt], append(regenerated, out[insertAt:]...)...)
	return out
}
