package store

// schemaVersionV1 is the current schema.
const schemaVersionV1 = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS executions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id        TEXT NOT NULL,
	version        INTEGER NOT NULL,
	correlation_id TEXT,
	input          TEXT NOT NULL,
	output         TEXT,
	outcome        TEXT NOT NULL,
	error          TEXT,
	latency_ms     REAL NOT NULL,
	sampled        INTEGER NOT NULL DEFAULT 0,
	executed_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_task ON executions(task_id, executed_at);

CREATE TABLE IF NOT EXISTS validation_reports (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id    TEXT NOT NULL UNIQUE,
	task_id     TEXT NOT NULL,
	total       INTEGER NOT NULL,
	valid       INTEGER NOT NULL,
	invalid     INTEGER NOT NULL,
	accuracy    REAL NOT NULL,
	duration_ms REAL NOT NULL,
	results     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_task ON validation_reports(task_id, created_at);
`
