package buffer

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// appendAttempts bounds how often a failed append is retried before
// ErrWriteFailed is surfaced to the caller.
const appendAttempts = 3

// Store is the durable, append-only sample buffer. Each Append is a
// committed sqlite transaction, so a sample is on disk before the call
// returns; a crash between appends loses nothing already appended.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	nextSeq map[string]int64
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession registers a new open session. The ID must be unique;
// reuse of an orphaned session's ID is rejected so that crash leftovers
// are reconciled explicitly rather than overwritten.
func (s *Store) CreateSession(id string, startedAt time.Time, planName string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at, plan_name) VALUES (?, ?, ?)`,
		id, startedAt.Format(time.RFC3339Nano), planName,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// Append writes one sample for its session. Insertion order is
// preserved via a per-session sequence number. A transient write error
// is retried a bounded number of times; exhaustion surfaces
// ErrWriteFailed so the caller can degrade rather than silently drop
// the sample.
func (s *Store) Append(sample Sample) error {
	finalized, err := s.isFinalized(sample.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return err
	}
	if err != nil {
		// The seal check is local I/O too; its failure is a write
		// failure, not a usage error.
		return fmt.Errorf("checking session state: %v: %w", err, ErrWriteFailed)
	}
	if finalized {
		return fmt.Errorf("append to %s: %w", sample.SessionID, ErrSessionSealed)
	}

	seq, err := s.claimSeq(sample.SessionID)
	if err != nil {
		return fmt.Errorf("claiming sequence: %v: %w", err, ErrWriteFailed)
	}

	var lastErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		_, lastErr = s.db.Exec(`
			INSERT INTO samples (
				session_id, seq, monotonic_ms, wall,
				power, heart_rate, cadence, speed, lat, lng, altitude, distance
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sample.SessionID, seq, sample.Monotonic.Milliseconds(),
			sample.Wall.Format(time.RFC3339Nano),
			ptrIntToNull(sample.Power), ptrIntToNull(sample.HeartRate),
			ptrIntToNull(sample.Cadence), ptrToNull(sample.Speed),
			ptrToNull(sample.Lat), ptrToNull(sample.Lng),
			ptrToNull(sample.Altitude), ptrToNull(sample.Distance),
		)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("appending sample after %d attempts: %v: %w", appendAttempts, lastErr, ErrWriteFailed)
}

// claimSeq hands out the next per-session sequence number, seeding the
// counter from disk the first time a session is seen (e.g. after a
// restart mid-recovery).
func (s *Store) claimSeq(sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.nextSeq[sessionID]; ok {
		s.nextSeq[sessionID] = seq + 1
		return seq, nil
	}

	var max sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(seq) FROM samples WHERE session_id = ?`, sessionID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	seq := int64(0)
	if max.Valid {
		seq = max.Int64 + 1
	}
	s.nextSeq[sessionID] = seq + 1
	return seq, nil
}

// ReadAll returns a session's samples in insertion order.
func (s *Store) ReadAll(sessionID string) ([]Sample, error) {
	rows, err := s.db.Query(`
		SELECT monotonic_ms, wall, power, heart_rate, cadence,
			speed, lat, lng, altitude, distance
		FROM samples
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			monoMS             int64
			wall               string
			power, hr, cadence sql.NullInt64
			speed, lat, lng    sql.NullFloat64
			altitude, distance sql.NullFloat64
		)
		err := rows.Scan(&monoMS, &wall, &power, &hr, &cadence,
			&speed, &lat, &lng, &altitude, &distance)
		if err != nil {
			return nil, err
		}
		wallTime, err := time.Parse(time.RFC3339Nano, wall)
		if err != nil {
			return nil, fmt.Errorf("parsing wall clock %q: %w", wall, err)
		}
		samples = append(samples, Sample{
			SessionID: sessionID,
			Monotonic: time.Duration(monoMS) * time.Millisecond,
			Wall:      wallTime,
			Power:     nullToIntPtr(power),
			HeartRate: nullToIntPtr(hr),
			Cadence:   nullToIntPtr(cadence),
			Speed:     nullToPtr(speed),
			Lat:       nullToPtr(lat),
			Lng:       nullToPtr(lng),
			Altitude:  nullToPtr(altitude),
			Distance:  nullToPtr(distance),
		})
	}
	return samples, rows.Err()
}

// ListOrphaned returns sessions with buffered data that were never
// finalized, leftovers of a crash or kill. The host must recover or
// discard each before starting new recordings against the same store.
func (s *Store) ListOrphaned() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.started_at, COALESCE(s.plan_name, ''),
			(SELECT COUNT(*) FROM samples WHERE session_id = s.id)
		FROM sessions s
		WHERE s.finalized_at IS NULL
		ORDER BY s.started_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var started string
		if err := rows.Scan(&info.ID, &started, &info.PlanName, &info.SampleCount); err != nil {
			return nil, err
		}
		info.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", started, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ListFinalized returns sealed sessions in start order. This is the
// history the fitness trend is computed over.
func (s *Store) ListFinalized() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.started_at, COALESCE(s.plan_name, ''), s.finalized_at,
			(SELECT COUNT(*) FROM samples WHERE session_id = s.id)
		FROM sessions s
		WHERE s.finalized_at IS NOT NULL
		ORDER BY s.started_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var started, finalized string
		if err := rows.Scan(&info.ID, &started, &info.PlanName, &finalized, &info.SampleCount); err != nil {
			return nil, err
		}
		info.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", started, err)
		}
		info.FinalizedAt, err = time.Parse(time.RFC3339Nano, finalized)
		if err != nil {
			return nil, fmt.Errorf("parsing finalized_at %q: %w", finalized, err)
		}
		info.Finalized = true
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Finalize seals a session: no further appends are accepted, and the
// returned handle is the unit an uploader or exporter consumes.
// Finalizing an already-sealed session is idempotent.
func (s *Store) Finalize(sessionID string) (*Handle, error) {
	info, err := s.sessionInfo(sessionID)
	if err != nil {
		return nil, err
	}

	finalizedAt := info.FinalizedAt
	if !info.Finalized {
		finalizedAt = time.Now()
		_, err = s.db.Exec(
			`UPDATE sessions SET finalized_at = ? WHERE id = ?`,
			finalizedAt.Format(time.RFC3339Nano), sessionID,
		)
		if err != nil {
			return nil, fmt.Errorf("finalizing session: %w", err)
		}
	}

	s.mu.Lock()
	delete(s.nextSeq, sessionID)
	s.mu.Unlock()

	return &Handle{
		SessionID:   sessionID,
		StartedAt:   info.StartedAt,
		FinalizedAt: finalizedAt,
		PlanName:    info.PlanName,
		SampleCount: info.SampleCount,
		store:       s,
	}, nil
}

// Discard deletes a session and all of its buffered samples.
func (s *Store) Discard(sessionID string) error {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("discarding session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	delete(s.nextSeq, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *Store) isFinalized(sessionID string) (bool, error) {
	var finalized sql.NullString
	err := s.db.QueryRow(
		`SELECT finalized_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrSessionNotFound
	}
	if err != nil {
		return false, err
	}
	return finalized.Valid, nil
}

func (s *Store) sessionInfo(sessionID string) (*SessionInfo, error) {
	var info SessionInfo
	var started string
	var finalized sql.NullString
	err := s.db.QueryRow(`
		SELECT id, started_at, COALESCE(plan_name, ''), finalized_at,
			(SELECT COUNT(*) FROM samples WHERE session_id = sessions.id)
		FROM sessions WHERE id = ?
	`, sessionID).Scan(&info.ID, &started, &info.PlanName, &finalized, &info.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	info.StartedAt, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", started, err)
	}
	if finalized.Valid {
		info.Finalized = true
		info.FinalizedAt, err = time.Parse(time.RFC3339Nano, finalized.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finalized_at %q: %w", finalized.String, err)
		}
	}
	return &info, nil
}

// --- Conversion Helpers ---

func ptrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func ptrIntToNull(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullToPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func nullToIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
