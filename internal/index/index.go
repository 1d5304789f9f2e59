// Package index persists rendered memos in sqlite so unchanged memos are not
// re-rendered on every load.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"moire/internal/memo"
)

type Index struct {
	db *sql.DB
}

type TagSummary struct {
	Name  string
	Count int
}

type CachedMemo struct {
	Path  string
	Slug  string
	Date  time.Time
	Bytes int
}

const FileName = "cache.sqlite"

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// Renders are stored from many goroutines; one connection keeps writes serialized.
	db.SetMaxOpenConns(1)
	return &Index{db: db}, nil
}

// OpenDir opens and initializes cache.sqlite inside dataPath.
func OpenDir(ctx context.Context, dataPath string) (*Index, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	idx, err := Open(filepath.Join(dataPath, FileName))
	if err != nil {
		return nil, err
	}
	if err := idx.Init(ctx); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return idx, nil
}

func (i *Index) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Init creates the schema and drops cached rows from older schema versions.
func (i *Index) Init(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	version, err := i.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version == schemaVersion {
		return nil
	}
	for _, stmt := range clearSQL {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return i.setSchemaVersion(ctx, schemaVersion)
}

func (i *Index) schemaVersion(ctx context.Context) (int, error) {
	var v int
	err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (i *Index) setSchemaVersion(ctx context.Context, v int) error {
	_, err := i.db.ExecContext(ctx, "DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = i.db.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES(?)", v)
	return err
}

// CachedHTML returns the stored render for key, if any.
func (i *Index) CachedHTML(ctx context.Context, key string) (string, bool, error) {
	var html string
	err := i.db.QueryRowContext(ctx, "SELECT html FROM memos WHERE render_key=? LIMIT 1", versionedKey(key)).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return html, true, nil
}

// StoreMemo records the render of m under key, replacing any previous row
// for the same source path.
func (i *Index) StoreMemo(ctx context.Context, m memo.Memo, key string) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memos(path, slug, render_key, html, memo_date, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			slug=excluded.slug,
			render_key=excluded.render_key,
			html=excluded.html,
			memo_date=excluded.memo_date,
			updated_at=excluded.updated_at
	`, m.Path, m.Slug, versionedKey(key), m.Content, m.Date.Unix(), now); err != nil {
		return err
	}
	var memoID int
	if err := tx.QueryRowContext(ctx, "SELECT id FROM memos WHERE path=?", m.Path).Scan(&memoID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memo_tags WHERE memo_id=?", memoID); err != nil {
		return err
	}
	for _, tag := range m.Tags {
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags(name) VALUES(?)", tag); err != nil {
			return err
		}
		var tagID int
		if err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name=?", tag).Scan(&tagID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO memo_tags(memo_id, tag_id) VALUES(?, ?)", memoID, tagID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PruneMemos deletes rows whose path is not in keep and returns how many
// were removed.
func (i *Index) PruneMemos(ctx context.Context, keep []string) (int, error) {
	kept := make(map[string]bool, len(keep))
	for _, p := range keep {
		kept[p] = true
	}
	rows, err := i.db.QueryContext(ctx, "SELECT id, path FROM memos")
	if err != nil {
		return 0, err
	}
	var stale []int
	for rows.Next() {
		var id int
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, err
		}
		if !kept[path] {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM memo_tags WHERE memo_id=?", id); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM memos WHERE id=?", id); err != nil {
			return 0, err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id NOT IN (SELECT tag_id FROM memo_tags)"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// ListTags returns cached tags with memo counts, ordered by name.
func (i *Index) ListTags(ctx context.Context, limit int) ([]TagSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := i.db.QueryContext(ctx, `
		SELECT tags.name, COUNT(memo_tags.memo_id)
		FROM tags
		LEFT JOIN memo_tags ON tags.id = memo_tags.tag_id
		GROUP BY tags.id
		ORDER BY tags.name
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []TagSummary
	for rows.Next() {
		var t TagSummary
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (i *Index) DumpMemoList(ctx context.Context) ([]CachedMemo, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT path, slug, memo_date, length(html) FROM memos ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CachedMemo
	for rows.Next() {
		var m CachedMemo
		var dateUnix int64
		if err := rows.Scan(&m.Path, &m.Slug, &dateUnix, &m.Bytes); err != nil {
			return nil, err
		}
		m.Date = time.Unix(dateUnix, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// DebugDump renders the cache contents one memo per line.
func (i *Index) DebugDump(ctx context.Context) (string, error) {
	memos, err := i.DumpMemoList(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, m := range memos {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%d\n", m.Path, m.Slug, m.Date.Format(time.RFC3339), m.Bytes)
	}
	return b.String(), nil
}
