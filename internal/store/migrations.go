package store

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS campaigns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    fetcher_type TEXT NOT NULL DEFAULT '',
    fetcher_settings TEXT NOT NULL DEFAULT '{}',
    enable_translation INTEGER NOT NULL DEFAULT 0,
    translator_type TEXT NOT NULL DEFAULT '',
    translator_settings TEXT NOT NULL DEFAULT '{}',
    target_language TEXT NOT NULL DEFAULT '',
    schedule_type TEXT NOT NULL DEFAULT 'manual',
    schedule_at TEXT,
    recurring_interval TEXT NOT NULL DEFAULT '',
    template TEXT NOT NULL DEFAULT '',
    filters TEXT NOT NULL DEFAULT '[]',
    last_run TEXT,
    last_error TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT
);

CREATE TABLE IF NOT EXISTS artifacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    url TEXT NOT NULL,
    author TEXT NOT NULL DEFAULT '',
    published_date TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (campaign_id, url)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_campaign ON artifacts(campaign_id);

CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL DEFAULT (datetime('now')),
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    campaign_id INTEGER,
    context TEXT
);

CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_campaign ON logs(campaign_id);
`)
			return err
		},
	},
}
