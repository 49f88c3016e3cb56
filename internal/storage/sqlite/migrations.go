package sqlite

// schema contains the database schema DDL.
const schema = `
-- Polled readings
CREATE TABLE IF NOT EXISTS readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    patient_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    raw_timestamp TEXT NOT NULL DEFAULT '',
    value_mgdl REAL NOT NULL,
    trend_arrow INTEGER NOT NULL DEFAULT 0,
    measurement_color INTEGER NOT NULL DEFAULT 0,
    is_high INTEGER NOT NULL DEFAULT 0,
    is_low INTEGER NOT NULL DEFAULT 0,
    recorded_at DATETIME NOT NULL,
    UNIQUE(patient_id, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_readings_time ON readings(timestamp);

-- Poll state
CREATE TABLE IF NOT EXISTS poll_state (
    id TEXT PRIMARY KEY,
    last_run DATETIME,
    last_success DATETIME,
    patient_id TEXT NOT NULL DEFAULT '',
    error_count INTEGER DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    last_stage TEXT NOT NULL DEFAULT ''
);

-- Display cache
CREATE TABLE IF NOT EXISTS display_cache (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    data BLOB NOT NULL,
    generated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
