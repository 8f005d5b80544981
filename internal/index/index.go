// Package index maintains a SQLite FTS5 search index over vault items.
//
// The JSON documents stay the source of truth. The index is a derived cache
// that can be dropped and rebuilt per campaign with ReplaceCampaign.
package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/lazyvault/internal/models"
)

// Index wraps a *sql.DB with the path it was opened from.
type Index struct {
	db   *sql.DB
	path string
}

// Hit is one search result.
type Hit struct {
	CampaignID string            `json:"campaign_id"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Status     models.ItemStatus `json:"status"`
	Name       string            `json:"name,omitempty"`
	Tags       []string          `json:"tags"`
	UsageCount int               `json:"usage_count"`
	Score      float64           `json:"score"`
}

// Open opens (or creates) the index database at path and initialises the
// schema.
func Open(path string) (*Index, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("index.Open: %w", err)
	}
	ix := &Index{db: sqldb, path: path}
	if err := ix.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("index.Open createSchema: %w", err)
	}
	return ix, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string { return ix.path }

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (ix *Index) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			rowid       INTEGER PRIMARY KEY AUTOINCREMENT,
			campaign_id TEXT NOT NULL,
			id          TEXT NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL,
			name        TEXT,
			tags        TEXT,
			body        TEXT,
			usage_count INTEGER NOT NULL DEFAULT 0,
			indexed_at  TEXT NOT NULL,
			UNIQUE (campaign_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			name, type, tags, body,
			content='items', content_rowid='rowid',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
			INSERT INTO items_fts(rowid, name, type, tags, body)
			VALUES (new.rowid, new.name, new.type, new.tags, new.body);
		END`,
		`CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE ON items BEGIN
			INSERT INTO items_fts(items_fts, rowid, name, type, tags, body)
			VALUES ('delete', old.rowid, old.name, old.type, old.tags, old.body);
			INSERT INTO items_fts(rowid, name, type, tags, body)
			VALUES (new.rowid, new.name, new.type, new.tags, new.body);
		END`,
		`CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
			INSERT INTO items_fts(items_fts, rowid, name, type, tags, body)
			VALUES ('delete', old.rowid, old.name, old.type, old.tags, old.body);
		END`,
	}
	for _, s := range stmts {
		if _, err := ix.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// UpsertItem inserts or refreshes the row for item.
func (ix *Index) UpsertItem(campaignID string, item *models.VaultItem) error {
	if err := upsert(ix.db, campaignID, item); err != nil {
		return fmt.Errorf("UpsertItem: %w", err)
	}
	return nil
}

func upsert(e execer, campaignID string, item *models.VaultItem) error {
	tagsJSON, err := json.Marshal(item.Tags)
	if err != nil {
		return err
	}
	name, _ := item.Name()
	_, err = e.Exec(`
		INSERT INTO items (campaign_id, id, type, status, name, tags, body, usage_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			name = excluded.name,
			tags = excluded.tags,
			body = excluded.body,
			usage_count = excluded.usage_count,
			indexed_at = excluded.indexed_at`,
		campaignID, item.ID, item.Type, string(item.Status), name,
		string(tagsJSON), Flatten(item.Content), item.UsageCount,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteItem removes the row for one item. Returns true if a row existed.
func (ix *Index) DeleteItem(campaignID, id string) (bool, error) {
	res, err := ix.db.Exec(`DELETE FROM items WHERE campaign_id = ? AND id = ?`, campaignID, id)
	if err != nil {
		return false, fmt.Errorf("DeleteItem: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteCampaign removes every row of a campaign and returns how many.
func (ix *Index) DeleteCampaign(campaignID string) (int, error) {
	res, err := ix.db.Exec(`DELETE FROM items WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("DeleteCampaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := ix.SetMeta(reindexKey(campaignID), ""); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// ReplaceCampaign rebuilds a campaign's rows from items in one transaction
// and records the rebuild time in the meta table.
func (ix *Index) ReplaceCampaign(campaignID string, items []*models.VaultItem) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("ReplaceCampaign: begin: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE campaign_id = ?`, campaignID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("ReplaceCampaign: clear: %w", err)
	}
	for _, it := range items {
		if err := upsert(tx, campaignID, it); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ReplaceCampaign: item %s: %w", it.ID, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		reindexKey(campaignID), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("ReplaceCampaign: meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceCampaign: commit: %w", err)
	}
	return nil
}

// LastReindex returns when the campaign was last rebuilt.
func (ix *Index) LastReindex(campaignID string) (string, bool, error) {
	v, ok, err := ix.GetMeta(reindexKey(campaignID))
	if err != nil || !ok || v == "" {
		return "", false, err
	}
	return v, true, nil
}

func reindexKey(campaignID string) string { return "reindexed_at:" + campaignID }

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Search runs a BM25 full-text query within one campaign, optionally
// restricted to an item type. Each whitespace-separated term is matched as a
// prefix and terms are OR-ed.
func (ix *Index) Search(campaignID, query string, limit int, itemType string) ([]Hit, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return make([]Hit, 0), nil
	}
	if limit <= 0 {
		limit = 10
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}

	q := `
		SELECT i.campaign_id, i.id, i.type, i.status, COALESCE(i.name, ''), COALESCE(i.tags, '[]'),
		       i.usage_count, -fts.rank AS score
		FROM items_fts fts
		JOIN items i ON i.rowid = fts.rowid
		WHERE fts.items_fts MATCH ? AND i.campaign_id = ?`
	params := []any{strings.Join(parts, " OR "), campaignID}
	if itemType != "" {
		q += " AND i.type = ?"
		params = append(params, itemType)
	}
	q += "\n\t\tORDER BY fts.rank\n\t\tLIMIT ?"
	params = append(params, limit)

	rows, err := ix.db.Query(q, params...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var h Hit
		var status, tags string
		if err := rows.Scan(&h.CampaignID, &h.ID, &h.Type, &status, &h.Name, &tags, &h.UsageCount, &h.Score); err != nil {
			return nil, fmt.Errorf("Search: scan: %w", err)
		}
		h.Status = models.ItemStatus(status)
		if err := json.Unmarshal([]byte(tags), &h.Tags); err != nil || h.Tags == nil {
			h.Tags = make([]string, 0)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of indexed items for a campaign, or across all
// campaigns when campaignID is empty.
func (ix *Index) Count(campaignID string) (int, error) {
	var n int
	var err error
	if campaignID == "" {
		err = ix.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n)
	} else {
		err = ix.db.QueryRow(`SELECT COUNT(*) FROM items WHERE campaign_id = ?`, campaignID).Scan(&n)
	}
	return n, err
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (ix *Index) GetMeta(key string) (string, bool, error) {
	var val string
	err := ix.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (ix *Index) SetMeta(key, value string) error {
	_, err := ix.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Flatten collects every string and number in a content mapping into one
// space-separated text body. Keys are visited in sorted order so the body is
// stable across rewrites.
func Flatten(content map[string]any) string {
	var parts []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				parts = append(parts, s)
			}
		case float64, int, bool:
			parts = append(parts, fmt.Sprint(t))
		case []any:
			for _, e := range t {
				walk(e)
			}
		case []string:
			for _, e := range t {
				walk(e)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		}
	}
	walk(content)
	return strings.Join(parts, " ")
}
