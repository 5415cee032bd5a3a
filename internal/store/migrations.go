package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "events: append-only life-event time series",
		SQL: `
CREATE TABLE events (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    event_time  INTEGER NOT NULL,
    event_type  TEXT NOT NULL CHECK (event_type IN ('geo', 'purchase', 'social', 'health', 'activity', 'custom')),
    subtype     TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT 'api',
    device_id   TEXT NOT NULL DEFAULT '',
    lat         REAL,
    lon         REAL,
    accuracy    REAL,
    speed       REAL,
    payload     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX idx_events_user_time ON events(user_id, event_time DESC);
CREATE INDEX idx_events_user_type ON events(user_id, event_type, event_time DESC);
`,
	},
	{
		Version:     2,
		Description: "patterns: mined location clusters and routines",
		SQL: `
CREATE TABLE patterns (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL,
    pattern_type       TEXT NOT NULL CHECK (pattern_type IN ('location_cluster', 'routine', 'habit', 'relationship', 'anomaly')),
    fingerprint        TEXT NOT NULL,
    name               TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    confidence         REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
    center_lat         REAL,
    center_lon         REAL,
    radius_meters      REAL,
    time_pattern       TEXT NOT NULL DEFAULT '',
    frequency_per_week REAL NOT NULL DEFAULT 0 CHECK (frequency_per_week >= 0),
    first_seen         INTEGER NOT NULL,
    last_seen          INTEGER NOT NULL,
    occurrences        INTEGER NOT NULL DEFAULT 1,
    is_active          INTEGER NOT NULL DEFAULT 1,
    evidence           TEXT NOT NULL DEFAULT '{}',
    created_at         INTEGER NOT NULL
);

CREATE INDEX idx_patterns_user        ON patterns(user_id, is_active);
CREATE INDEX idx_patterns_fingerprint ON patterns(user_id, pattern_type, fingerprint, is_active);
`,
	},
	{
		Version:     3,
		Description: "insights: audit log of graph-persisted habit insights",
		SQL: `
CREATE TABLE insights (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    graph_node_id  TEXT NOT NULL DEFAULT '',
    insight_type   TEXT NOT NULL,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    confidence     REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
    evidence_count INTEGER NOT NULL DEFAULT 0,
    reasoning      TEXT NOT NULL DEFAULT '',
    source         TEXT NOT NULL DEFAULT 'pattern_miner',
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_insights_user ON insights(user_id, created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
