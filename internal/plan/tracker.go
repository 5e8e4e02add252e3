package plan

import (
	"log/slog"
	"time"
)

// TrackerState is the adherence engine's lifecycle position.
type TrackerState int

const (
	StateAwaitingStart TrackerState = iota
	StateInStep
	StateComplete
)

func (s TrackerState) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting-start"
	case StateInStep:
		return "in-step"
	case StateComplete:
		return "plan-complete"
	}
	return "unknown"
}

// defaultTolerance widens each target band by ±5% before scoring.
const defaultTolerance = 0.05

// Reading is the live sensor values a tick is scored against.
type Reading struct {
	Power     *int
	HeartRate *int
	Speed     *float64 // m/s
}

// TickResult is what the tracker reports after each tick.
type TickResult struct {
	State     TrackerState
	Index     int       // -1 before start, len(steps) when complete
	Step      *FlatStep // nil unless in-step
	InStep    time.Duration
	Remaining time.Duration // 0 for distance-based and malformed steps
	Score     float64       // in-band ticks / total ticks, 0..1
}

// TrackerConfig carries the thresholds target fractions resolve
// against and the scoring tolerance.
type TrackerConfig struct {
	FTP         int
	ThresholdHR int
	Tolerance   float64 // fraction, 0 means the 5% default
	Logger      *slog.Logger
}

// Tracker walks a flattened timeline in lockstep with the session
// clock. The index only moves forward; callers cannot reposition it.
type Tracker struct {
	steps     []FlatStep
	ftp       int
	lthr      int
	tolerance float64
	logger    *slog.Logger

	state         TrackerState
	index         int
	stepStartTime time.Duration
	stepStartDist float64

	ticks  int
	inBand int
}

// NewTracker builds a tracker over an already-flattened timeline.
func NewTracker(steps []FlatStep, cfg TrackerConfig) *Tracker {
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		steps:     steps,
		ftp:       cfg.FTP,
		lthr:      cfg.ThresholdHR,
		tolerance: tol,
		logger:    logger,
		state:     StateAwaitingStart,
		index:     -1,
	}
}

// OnSessionTick advances the tracker to the step covering the given
// session clock and scores the live reading against that step's
// target band. Elapsed is active session time, distance cumulative
// meters.
func (t *Tracker) OnSessionTick(elapsed time.Duration, distance float64, r Reading) TickResult {
	if t.state == StateComplete {
		return t.result(elapsed)
	}

	if t.state == StateAwaitingStart {
		t.state = StateInStep
		t.index = 0
		t.stepStartTime = elapsed
		t.stepStartDist = distance
		t.skipMalformed()
	}

	for t.state == StateInStep && t.stepDone(elapsed, distance) {
		t.advance(elapsed, distance)
	}

	if t.state == StateInStep {
		t.ticks++
		if t.readingInBand(t.steps[t.index], r) {
			t.inBand++
		}
	}

	return t.result(elapsed)
}

// Score returns the running adherence fraction.
func (t *Tracker) Score() float64 {
	if t.ticks == 0 {
		return 0
	}
	return float64(t.inBand) / float64(t.ticks)
}

// State reports the current lifecycle state.
func (t *Tracker) State() TrackerState { return t.state }

// Index reports the current flattened step index, -1 before start.
func (t *Tracker) Index() int { return t.index }

func (t *Tracker) result(elapsed time.Duration) TickResult {
	res := TickResult{
		State: t.state,
		Index: t.index,
		Score: t.Score(),
	}
	if t.state == StateInStep {
		step := t.steps[t.index]
		res.Step = &step
		res.InStep = elapsed - t.stepStartTime
		if step.Step.Duration > 0 {
			res.Remaining = step.Step.Duration - res.InStep
			if res.Remaining < 0 {
				res.Remaining = 0
			}
		}
	}
	return res
}

func (t *Tracker) stepDone(elapsed time.Duration, distance float64) bool {
	step := t.steps[t.index]
	if step.Step.Duration > 0 {
		return elapsed-t.stepStartTime >= step.Step.Duration
	}
	if step.Step.Distance > 0 {
		return distance-t.stepStartDist >= step.Step.Distance
	}
	// Malformed steps are handled by skipMalformed before scoring;
	// treat as instantly done if one slips through.
	return true
}

func (t *Tracker) advance(elapsed time.Duration, distance float64) {
	step := t.steps[t.index]
	if step.Step.Duration > 0 {
		// Completion is measured against the step boundary, not the
		// tick that observed it, so overshoot carries into the next
		// step.
		t.stepStartTime += step.Step.Duration
	} else {
		t.stepStartTime = elapsed
	}
	if step.Step.Distance > 0 {
		t.stepStartDist += step.Step.Distance
	} else {
		t.stepStartDist = distance
	}

	t.index++
	if t.index >= len(t.steps) {
		t.state = StateComplete
		t.index = len(t.steps)
		return
	}
	t.skipMalformed()
}

// skipMalformed advances past steps with neither a time nor a distance
// target. They are zero-duration; the tracker must never stall on one.
func (t *Tracker) skipMalformed() {
	for t.state == StateInStep {
		step := t.steps[t.index]
		if step.Step.Duration > 0 || step.Step.Distance > 0 {
			return
		}
		t.logger.Warn("skipping malformed plan step",
			"step", step.Name,
			"index", t.index,
			"block", step.BlockName)
		t.index++
		if t.index >= len(t.steps) {
			t.state = StateComplete
			t.index = len(t.steps)
		}
	}
}

// readingInBand checks the live reading against the step's first
// matching target, widened by the tolerance. A step with no targets
// scores every tick as in-band (nothing to miss).
func (t *Tracker) readingInBand(step FlatStep, r Reading) bool {
	if len(step.Targets) == 0 {
		return true
	}
	for _, target := range step.Targets {
		switch target.Kind {
		case TargetPower:
			if t.ftp <= 0 || r.Power == nil {
				continue
			}
			return t.within(float64(*r.Power), target.Low*float64(t.ftp), target.High*float64(t.ftp))
		case TargetHeartRate:
			if t.lthr <= 0 || r.HeartRate == nil {
				continue
			}
			return t.within(float64(*r.HeartRate), target.Low*float64(t.lthr), target.High*float64(t.lthr))
		case TargetPace:
			if r.Speed == nil {
				continue
			}
			return t.within(*r.Speed, target.Low, target.High)
		}
	}
	// No target could be evaluated against this reading.
	return false
}

func (t *Tracker) within(v, low, high float64) bool {
	return v >= low*(1-t.tolerance) && v <= high*(1+t.tolerance)
}
