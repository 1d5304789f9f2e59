package index

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memos (
	id INTEGER PRIMARY KEY,
	path TEXT UNIQUE NOT NULL,
	slug TEXT NOT NULL,
	render_key TEXT NOT NULL,
	html TEXT NOT NULL,
	memo_date INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS memos_by_render_key ON memos(render_key);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS memo_tags (
	memo_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY(memo_id, tag_id)
);
`

var clearSQL = []string{
	"DELETE FROM memo_tags",
	"DELETE FROM tags",
	"DELETE FROM memos",
}
