package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Shots table - log of every shot accepted by the gate
		`CREATE TABLE IF NOT EXISTS shots (
			id TEXT PRIMARY KEY,
			x REAL NOT NULL,
			y REAL NOT NULL,
			color TEXT NOT NULL CHECK(color IN ('red', 'green')),
			frame_index INTEGER NOT NULL,
			shot_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_shots_shot_at ON shots(shot_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
