package buffer

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// One row per recording session. finalized_at NULL marks an
		// open (or orphaned) session.
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			plan_name TEXT,
			finalized_at TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Raw sensor samples, append-only. seq preserves insertion
		// order; arrival order is never re-sorted by timestamp.
		`CREATE TABLE IF NOT EXISTS samples (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			monotonic_ms INTEGER NOT NULL,
			wall TEXT NOT NULL,
			power INTEGER,
			heart_rate INTEGER,
			cadence INTEGER,
			speed REAL,
			lat REAL,
			lng REAL,
			altitude REAL,
			distance REAL,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_samples_session ON samples(session_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
