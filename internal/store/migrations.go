package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	user_id      TEXT NOT NULL,
	id           TEXT NOT NULL,
	recipient_id TEXT,
	category     TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	read         INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at   DATETIME NOT NULL,
	position     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_position
	ON notifications(user_id, position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, read);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
