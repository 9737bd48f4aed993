// ABOUTME: SQLite database schema for the contact store
// ABOUTME: Tags and summit history are JSON arrays in TEXT columns
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Contacts keyed by email
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    is_in_main_bucket_biz INTEGER NOT NULL DEFAULT 0,
    is_in_main_bucket_health INTEGER NOT NULL DEFAULT 0,
    is_in_main_bucket_survivalist INTEGER NOT NULL DEFAULT 0,
    engagement_level TEXT NOT NULL DEFAULT '',
    summit_history TEXT NOT NULL DEFAULT '[]',
    email_state TEXT NOT NULL DEFAULT '',
    email_sub_state TEXT NOT NULL DEFAULT '',
    main_bucket_assignment TEXT,
    personality_bucket_assignment TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for classification runs and dashboard counts
CREATE INDEX IF NOT EXISTS idx_contacts_main ON contacts(main_bucket_assignment);
CREATE INDEX IF NOT EXISTS idx_contacts_personality ON contacts(personality_bucket_assignment);
CREATE INDEX IF NOT EXISTS idx_contacts_engagement ON contacts(engagement_level);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
