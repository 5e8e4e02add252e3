package metrics

import (
	"math"
	"sync"
	"time"

	"trainlog/internal/analysis"
	"trainlog/internal/buffer"
)

// Config tunes the aggregator for one session.
type Config struct {
	FTP           int     // watts, 0 = not configured
	ThresholdHR   int     // bpm, 0 = not configured
	NPWindow      int     // seconds, defaults to analysis.NPWindowSeconds
	AscentEpsilon float64 // meters, altitude noise floor
	MaxGap        time.Duration
}

const (
	defaultAscentEpsilon = 1.0
	defaultMaxGap        = 3 * time.Second

	// movingSpeedFloor separates standing still from moving. GPS
	// drift under 0.5 m/s is not motion.
	movingSpeedFloor = 0.5
)

// Stat holds running min/max/avg for one metric. Samples without a
// reading for the metric leave it untouched.
type Stat struct {
	Min   float64
	Max   float64
	Avg   float64
	Count int
}

func (s *Stat) add(v float64) {
	if s.Count == 0 {
		s.Min, s.Max = v, v
	} else {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = (s.Avg*float64(s.Count) + v) / float64(s.Count+1)
	s.Count++
}

// Snapshot is an immutable copy of the accumulated session totals.
// Metrics with no valid samples are zero-valued, never errors.
type Snapshot struct {
	SampleCount int

	Elapsed time.Duration // wall-clock span, pauses included
	Active  time.Duration // recorded time, gaps and pauses excluded
	Moving  time.Duration // active time spent in motion

	Distance float64 // meters
	Ascent   float64 // meters
	Descent  float64 // meters

	Power     Stat
	HeartRate Stat
	Cadence   Stat
	Speed     Stat

	NormalizedPower float64

	PowerZones [analysis.PowerZoneCount]time.Duration
	HRZones    [analysis.HRZoneCount]time.Duration
}

// Aggregator accumulates session metrics one sample at a time. Ingest
// is single-writer; Snapshot may be called concurrently with it.
type Aggregator struct {
	mu  sync.RWMutex
	cfg Config

	snap Snapshot

	firstWall time.Time
	lastWall  time.Time

	// rolling NP window, ring buffer
	window     []float64
	windowHead int
	windowLen  int
	rollingSum float64
	np4Sum     float64
	np4Count   int

	lastDistance   *float64
	lastCountedAlt *float64
	haveAltitude   bool
}

// New returns an aggregator for a fresh session. Zero-valued config
// fields get defaults; FTP/ThresholdHR of zero disable zone bucketing
// for that metric.
func New(cfg Config) *Aggregator {
	if cfg.NPWindow <= 0 {
		cfg.NPWindow = analysis.NPWindowSeconds
	}
	if cfg.AscentEpsilon <= 0 {
		cfg.AscentEpsilon = defaultAscentEpsilon
	}
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = defaultMaxGap
	}
	return &Aggregator{
		cfg:    cfg,
		window: make([]float64, cfg.NPWindow),
	}
}

// Ingest folds one sample into the running totals.
func (a *Aggregator) Ingest(s buffer.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var dt time.Duration
	if a.snap.SampleCount == 0 {
		a.firstWall = s.Wall
	} else {
		dt = s.Wall.Sub(a.lastWall)
	}
	a.lastWall = s.Wall
	a.snap.SampleCount++
	a.snap.Elapsed = a.lastWall.Sub(a.firstWall)

	// dt above MaxGap is a pause or a sensor dropout, not recorded
	// time.
	credit := dt
	if credit < 0 || credit > a.cfg.MaxGap {
		credit = 0
	}
	a.snap.Active += credit

	moved := a.updateDistance(s, credit)
	if moved {
		a.snap.Moving += credit
	}

	a.updateAltitude(s)

	if s.Power != nil {
		watts := float64(*s.Power)
		a.snap.Power.add(watts)
		a.pushWindow(watts)
		if z := analysis.PowerZone(watts, a.cfg.FTP); z >= 0 {
			a.snap.PowerZones[z] += credit
		}
	}
	if s.HeartRate != nil {
		bpm := float64(*s.HeartRate)
		a.snap.HeartRate.add(bpm)
		if z := analysis.HRZone(bpm, a.cfg.ThresholdHR); z >= 0 {
			a.snap.HRZones[z] += credit
		}
	}
	if s.Cadence != nil {
		a.snap.Cadence.add(float64(*s.Cadence))
	}
	if s.Speed != nil {
		a.snap.Speed.add(*s.Speed)
	}
}

// Snapshot returns a copy of the current totals.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// updateDistance advances cumulative distance from the sample's own
// distance reading when present, otherwise by integrating speed over
// the credited interval. Reports whether the athlete was in motion.
func (a *Aggregator) updateDistance(s buffer.Sample, credit time.Duration) bool {
	if s.Distance != nil {
		var delta float64
		if a.lastDistance != nil {
			delta = *s.Distance - *a.lastDistance
		}
		a.lastDistance = s.Distance
		if delta > 0 {
			a.snap.Distance += delta
			return true
		}
		return s.Speed != nil && *s.Speed > movingSpeedFloor
	}

	if s.Speed != nil && *s.Speed > movingSpeedFloor {
		a.snap.Distance += *s.Speed * credit.Seconds()
		return true
	}
	return false
}

// updateAltitude accumulates ascent and descent with an epsilon
// threshold so barometric and GPS jitter does not count as climbing.
func (a *Aggregator) updateAltitude(s buffer.Sample) {
	if s.Altitude == nil {
		return
	}
	if !a.haveAltitude {
		a.lastCountedAlt = s.Altitude
		a.haveAltitude = true
		return
	}

	delta := *s.Altitude - *a.lastCountedAlt
	if math.Abs(delta) < a.cfg.AscentEpsilon {
		return
	}
	if delta > 0 {
		a.snap.Ascent += delta
	} else {
		a.snap.Descent += -delta
	}
	a.lastCountedAlt = s.Altitude
}

// pushWindow feeds the rolling NP accumulator. Once the window is
// full, every new sample contributes one 4th-power term.
func (a *Aggregator) pushWindow(watts float64) {
	n := len(a.window)
	if a.windowLen < n {
		a.window[(a.windowHead+a.windowLen)%n] = watts
		a.windowLen++
		a.rollingSum += watts
	} else {
		a.rollingSum += watts - a.window[a.windowHead]
		a.window[a.windowHead] = watts
		a.windowHead = (a.windowHead + 1) % n
	}
	if a.windowLen < n {
		return
	}

	avg := a.rollingSum / float64(n)
	a.np4Sum += avg * avg * avg * avg
	a.np4Count++
	a.snap.NormalizedPower = math.Pow(a.np4Sum/float64(a.np4Count), 0.25)
}
