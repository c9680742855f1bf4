package store

// migrations are applied in order; the index+1 is the schema version.
var migrations = []string{
	`CREATE TABLE records (
		key        TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		version    INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE alarms (
		label   TEXT PRIMARY KEY,
		fire_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_alarms_fire_at ON alarms(fire_at)`,
}
