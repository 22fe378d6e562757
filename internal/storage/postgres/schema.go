// Package postgres provides a PostgreSQL snapshot store.
package postgres

// Schema contains the SQL statements to create the snapshot tables for
// PostgreSQL. All statements are idempotent. Timestamps are TEXT in
// storage.TimeLayout so nanosecond precision survives a round trip.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    format_version INTEGER NOT NULL,
    identity_count INTEGER NOT NULL DEFAULT 0,
    thread_count INTEGER NOT NULL DEFAULT 0,
    edge_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS identities (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    contact_exists BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS identity_handles (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    identity_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (run_id, kind, value)
);

CREATE INDEX IF NOT EXISTS idx_identity_handles_identity ON identity_handles(run_id, identity_id);

CREATE TABLE IF NOT EXISTS identity_sources (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    identity_id TEXT NOT NULL,
    source TEXT NOT NULL,
    PRIMARY KEY (run_id, identity_id, source)
);

CREATE TABLE IF NOT EXISTS identity_aliases (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    alias TEXT NOT NULL,
    identity_id TEXT NOT NULL,
    PRIMARY KEY (run_id, alias)
);

CREATE TABLE IF NOT EXISTS threads (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    source TEXT NOT NULL,
    id TEXT NOT NULL,
    last_activity TEXT NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, source, id)
);

CREATE TABLE IF NOT EXISTS thread_participants (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    source TEXT NOT NULL,
    thread_id TEXT NOT NULL,
    identity_id TEXT NOT NULL,
    PRIMARY KEY (run_id, source, thread_id, identity_id)
);

CREATE TABLE IF NOT EXISTS edges (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    person_a TEXT NOT NULL,
    person_b TEXT NOT NULL,
    weight DOUBLE PRECISION NOT NULL CHECK (weight >= 0),
    last_interaction TEXT NOT NULL,
    PRIMARY KEY (run_id, person_a, person_b),
    CHECK (person_a < person_b)
);

CREATE TABLE IF NOT EXISTS edge_sources (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    person_a TEXT NOT NULL,
    person_b TEXT NOT NULL,
    source TEXT NOT NULL,
    record_count INTEGER NOT NULL,
    group_count INTEGER NOT NULL DEFAULT 0,
    score DOUBLE PRECISION NOT NULL,
    last_interaction TEXT NOT NULL,
    PRIMARY KEY (run_id, person_a, person_b, source)
);
`
