package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - key-value pairs, holds the thresholds
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Measurements table - the confirmed measurement log in written order
		`CREATE TABLE IF NOT EXISTS measurements (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL DEFAULT '',
			shoulder_angle REAL,
			hip_angle REAL,
			tilt_angle REAL,
			timestamp_us INTEGER
		)`,

		`CREATE INDEX IF NOT EXISTS idx_measurements_timestamp ON measurements(timestamp_us)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
