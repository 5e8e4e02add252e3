package buffer

import "time"

// Sample is one instant of sensor data. Readings the sensor did not
// deliver are nil, never zero; a missing power reading must not drag
// averages down.
type Sample struct {
	SessionID string
	Monotonic time.Duration // elapsed since session start
	Wall      time.Time
	Power     *int     // watts
	HeartRate *int     // bpm
	Cadence   *int     // rpm
	Speed     *float64 // m/s
	Lat       *float64
	Lng       *float64
	Altitude  *float64 // meters
	Distance  *float64 // cumulative meters since start
}

// SessionInfo summarizes one buffered session.
type SessionInfo struct {
	ID          string
	StartedAt   time.Time
	PlanName    string
	SampleCount int
	Finalized   bool
	FinalizedAt time.Time
}

// Handle is a sealed, read-only view of a finalized session, suitable
// for handing to an uploader or exporter.
type Handle struct {
	SessionID   string
	StartedAt   time.Time
	FinalizedAt time.Time
	PlanName    string
	SampleCount int

	store   *Store
	samples []Sample
}

// NewMemoryHandle seals a session around samples that never reached
// the durable store, for sessions stopped while the buffer was
// degraded.
func NewMemoryHandle(sessionID string, startedAt time.Time, planName string, samples []Sample) *Handle {
	return &Handle{
		SessionID:   sessionID,
		StartedAt:   startedAt,
		FinalizedAt: time.Now(),
		PlanName:    planName,
		SampleCount: len(samples),
		samples:     samples,
	}
}

// Samples returns the sealed session's samples in insertion order.
func (h *Handle) Samples() ([]Sample, error) {
	if h.store == nil {
		out := make([]Sample, len(h.samples))
		copy(out, h.samples)
		return out, nil
	}
	return h.store.ReadAll(h.SessionID)
}
