package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trainlog/internal/buffer"
	"trainlog/internal/metrics"
	"trainlog/internal/plan"
)

// ErrConflict is returned for lifecycle misuse: starting while
// recording, stopping while idle, resuming while not paused.
var ErrConflict = errors.New("session state conflict")

// State is the recorder lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Config tunes a recording session.
type Config struct {
	FTP              int
	ThresholdHR      int
	NPWindow         int
	AscentEpsilon    float64
	Tolerance        float64       // adherence band tolerance
	SnapshotInterval time.Duration // minimum gap between pushed snapshots
}

const defaultSnapshotInterval = time.Second

// Snapshot is the combined read-only view handed to the UI.
type Snapshot struct {
	State     State
	SessionID string
	StartedAt time.Time

	Metrics metrics.Snapshot

	PlanName  string
	Adherence *plan.TickResult // nil when no plan is attached

	// BufferDegraded flags that durable writes failed and the
	// session is continuing in memory only.
	BufferDegraded bool
}

// Service owns the active session: it routes sensor samples to the
// durable buffer and the aggregator, drives the adherence tracker, and
// serves snapshots. All sensor ingestion is serialized through one
// mutex.
type Service struct {
	store  *buffer.Store
	logger *slog.Logger
	cfg    Config

	mu        sync.Mutex
	state     State
	sessionID string
	startedAt time.Time
	agg       *metrics.Aggregator

	currentPlan *plan.Plan
	flattened   []plan.FlatStep
	tracker     *plan.Tracker
	adherence   *plan.TickResult

	degraded   bool
	memSamples []buffer.Sample

	subs        []func(Snapshot)
	lastPublish time.Time
}

// New builds a recorder over a durable sample store. A nil logger
// falls back to slog.Default.
func New(store *buffer.Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultSnapshotInterval
	}
	return &Service{
		store:  store,
		logger: logger,
		cfg:    cfg,
	}
}

// SelectPlan attaches a plan for the next (or current) session. The
// plan is flattened once here; selecting mid-recording starts the
// tracker from the current session clock.
func (s *Service) SelectPlan(p *plan.Plan) error {
	if err := plan.Validate(p.Nodes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlan = p
	s.flattened = plan.Flatten(p.Nodes)
	if s.state != StateIdle {
		s.tracker = s.newTracker()
	}
	return nil
}

// ClearPlan detaches the plan. Recorded metrics are unaffected.
func (s *Service) ClearPlan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlan = nil
	s.flattened = nil
	s.tracker = nil
	s.adherence = nil
}

// Start opens a new session. Returns ErrConflict if one is active.
func (s *Service) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return "", fmt.Errorf("%w: start while %s", ErrConflict, s.state)
	}

	id := uuid.NewString()
	now := time.Now()
	planName := ""
	if s.currentPlan != nil {
		planName = s.currentPlan.Name
	}
	if err := s.store.CreateSession(id, now, planName); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	s.state = StateRecording
	s.sessionID = id
	s.startedAt = now
	s.agg = metrics.New(metrics.Config{
		FTP:           s.cfg.FTP,
		ThresholdHR:   s.cfg.ThresholdHR,
		NPWindow:      s.cfg.NPWindow,
		AscentEpsilon: s.cfg.AscentEpsilon,
	})
	s.degraded = false
	s.memSamples = nil
	s.adherence = nil
	if s.currentPlan != nil {
		s.tracker = s.newTracker()
	}

	s.logger.Info("session started", "session", id, "plan", planName)
	return id, nil
}

// Pause suspends ingestion. Samples arriving while paused are dropped;
// moving and active time stop accruing.
func (s *Service) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return fmt.Errorf("%w: pause while %s", ErrConflict, s.state)
	}
	s.state = StatePaused
	s.logger.Info("session paused", "session", s.sessionID)
	return nil
}

// Resume continues a paused session.
func (s *Service) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return fmt.Errorf("%w: resume while %s", ErrConflict, s.state)
	}
	s.state = StateRecording
	s.logger.Info("session resumed", "session", s.sessionID)
	return nil
}

// Stop seals the session and returns the finalized buffer handle.
// Appends are synchronous, so everything accepted by the buffer is
// durable by the time Finalize runs. A degraded session is sealed in
// memory instead: the handle carries the samples accepted after the
// buffer failed, and anything written before the failure stays on disk
// as an orphan for the next startup reconciliation. Stopping is
// terminal for the session; the service returns to idle either way.
func (s *Service) Stop() (*buffer.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return nil, fmt.Errorf("%w: stop while idle", ErrConflict)
	}

	handle, err := s.store.Finalize(s.sessionID)
	switch {
	case err != nil && !s.degraded:
		return nil, fmt.Errorf("finalizing session: %w", err)
	case err != nil:
		handle = s.memoryHandle(nil)
		s.logger.Error("sealing degraded session in memory",
			"session", s.sessionID, "samples", handle.SampleCount, "error", err)
	case s.degraded:
		// The store came back after degrading, but the in-memory tail
		// never hit disk. Merge it with the durable prefix.
		persisted, rerr := handle.Samples()
		if rerr != nil {
			persisted = nil
		}
		handle = s.memoryHandle(persisted)
	}

	s.logger.Info("session stopped",
		"session", s.sessionID,
		"samples", handle.SampleCount,
		"degraded", s.degraded)

	s.state = StateIdle
	s.sessionID = ""
	s.tracker = nil
	return handle, nil
}

// memoryHandle seals the current session in memory, prepending any
// samples already read back from the store.
func (s *Service) memoryHandle(prefix []buffer.Sample) *buffer.Handle {
	planName := ""
	if s.currentPlan != nil {
		planName = s.currentPlan.Name
	}
	all := make([]buffer.Sample, 0, len(prefix)+len(s.memSamples))
	all = append(all, prefix...)
	all = append(all, s.memSamples...)
	return buffer.NewMemoryHandle(s.sessionID, s.startedAt, planName, all)
}

// OnSensorSample is the single ingestion entry point. It persists the
// sample, folds it into the aggregator, and advances the adherence
// tracker. Buffer failures flip the session into degraded in-memory
// mode instead of interrupting the recording; the returned error
// reports the failure without meaning the sample was lost.
func (s *Service) OnSensorSample(sample buffer.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}

	sample.SessionID = s.sessionID

	var appendErr error
	if !s.degraded {
		if err := s.store.Append(sample); err != nil {
			if errors.Is(err, buffer.ErrWriteFailed) {
				s.degraded = true
				s.logger.Error("buffer write failed, continuing in memory", "session", s.sessionID, "error", err)
				appendErr = err
			} else {
				return fmt.Errorf("appending sample: %w", err)
			}
		}
	}
	if s.degraded {
		s.memSamples = append(s.memSamples, sample)
	}

	s.agg.Ingest(sample)

	if s.tracker != nil {
		snap := s.agg.Snapshot()
		res := s.tracker.OnSessionTick(snap.Active, snap.Distance, plan.Reading{
			Power:     sample.Power,
			HeartRate: sample.HeartRate,
			Speed:     sample.Speed,
		})
		s.adherence = &res
	}

	s.publishLocked(sample.Wall)
	return appendErr
}

// Snapshot returns the combined session view. Safe to call
// concurrently with ingestion.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a callback pushed at most once per configured
// snapshot interval, on the ingestion goroutine.
func (s *Service) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// MemorySamples returns samples accepted after the buffer degraded, so
// a caller can salvage them at stop time.
func (s *Service) MemorySamples() []buffer.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]buffer.Sample, len(s.memSamples))
	copy(out, s.memSamples)
	return out
}

// ListOrphaned reports sessions left unfinalized by a crash. Must be
// reconciled before recording anew.
func (s *Service) ListOrphaned() ([]buffer.SessionInfo, error) {
	return s.store.ListOrphaned()
}

// RecoverOrphan seals an orphaned session and returns its handle.
func (s *Service) RecoverOrphan(sessionID string) (*buffer.Handle, error) {
	handle, err := s.store.Finalize(sessionID)
	if err != nil {
		return nil, fmt.Errorf("recovering session %s: %w", sessionID, err)
	}
	s.logger.Info("orphaned session recovered", "session", sessionID, "samples", handle.SampleCount)
	return handle, nil
}

// DiscardOrphan deletes an orphaned session's buffered data.
func (s *Service) DiscardOrphan(sessionID string) error {
	if err := s.store.Discard(sessionID); err != nil {
		return fmt.Errorf("discarding session %s: %w", sessionID, err)
	}
	s.logger.Info("orphaned session discarded", "session", sessionID)
	return nil
}

func (s *Service) newTracker() *plan.Tracker {
	return plan.NewTracker(s.flattened, plan.TrackerConfig{
		FTP:         s.cfg.FTP,
		ThresholdHR: s.cfg.ThresholdHR,
		Tolerance:   s.cfg.Tolerance,
		Logger:      s.logger,
	})
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          s.state,
		SessionID:      s.sessionID,
		StartedAt:      s.startedAt,
		BufferDegraded: s.degraded,
	}
	if s.agg != nil {
		snap.Metrics = s.agg.Snapshot()
	}
	if s.currentPlan != nil {
		snap.PlanName = s.currentPlan.Name
	}
	if s.adherence != nil {
		res := *s.adherence
		snap.Adherence = &res
	}
	return snap
}

// publishLocked pushes a snapshot to subscribers, rate-bounded by the
// sample's wall clock so tests can drive time.
func (s *Service) publishLocked(now time.Time) {
	if len(s.subs) == 0 {
		return
	}
	if !s.lastPublish.IsZero() && now.Sub(s.lastPublish) < s.cfg.SnapshotInterval {
		return
	}
	s.lastPublish = now
	snap := s.snapshotLocked()
	for _, fn := range s.subs {
		fn(snap)
	}
}
