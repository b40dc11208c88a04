package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"resource-summary-ui/internal/querylabel"
)

// ErrUnknownFeature is returned when setting a feature that is not registered.
var ErrUnknownFeature = errors.New("unknown feature")

// Known lists the capabilities this service understands.
var Known = map[string]string{
	"new-input-style":      "Render query symbols with the current input styling.",
	"resource-xlsx-export": "Allow spreadsheet export of resource summaries.",
	"continuous-profiling": "Show the flamegraph panel on resource summaries.",
}

// Flag is one organization capability.
type Flag struct {
	Org       string     `json:"org"`
	Feature   string     `json:"feature"`
	Enabled   bool       `json:"enabled"`
	Default   bool       `json:"default"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// SavedQuery is one entry in an ordered query list; Symbol derives from Position.
type SavedQuery struct {
	Position int    `json:"position"`
	Symbol   string `json:"symbol"`
	Query    string `json:"query"`
}

// Store keeps org feature flags and saved query lists in SQLite.
type Store struct {
	db       *sql.DB
	defaults map[string]bool
}

func NewSQLiteStore(path string, defaults []string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, stmt := range []string{`
CREATE TABLE IF NOT EXISTS org_features (
  org TEXT NOT NULL,
  feature TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(org, feature)
);`, `
CREATE TABLE IF NOT EXISTS saved_queries (
  org TEXT NOT NULL,
  name TEXT NOT NULL,
  position INTEGER NOT NULL,
  query TEXT NOT NULL,
  PRIMARY KEY(org, name, position)
);`,
		`CREATE INDEX IF NOT EXISTS idx_sq_org_name ON saved_queries(org, name);`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	defs := make(map[string]bool, len(defaults))
	for _, f := range defaults {
		f = strings.TrimSpace(f)
		if f != "" {
			defs[f] = true
		}
	}
	return &Store{db: db, defaults: defs}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enabled reports whether org has feature on, falling back to the configured defaults.
func (s *Store) Enabled(ctx context.Context, org, feature string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var enabled bool
	err := s.db.QueryRowContext(ctx, `SELECT enabled FROM org_features WHERE org = ? AND feature = ?;`,
		strings.TrimSpace(org), strings.TrimSpace(feature)).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults[strings.TrimSpace(feature)], nil
	}
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func (s *Store) Set(ctx context.Context, org, feature string, enabled bool) error {
	org = strings.TrimSpace(org)
	feature = strings.TrimSpace(feature)
	if org == "" {
		return errors.New("org is required")
	}
	if _, ok := Known[feature]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO org_features (org, feature, enabled, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(org, feature) DO UPDATE SET
  enabled = excluded.enabled,
  updated_at = CURRENT_TIMESTAMP;
`, org, feature, enabled)
	return err
}

// List returns every known feature for org, with stored overrides applied.
func (s *Store) List(ctx context.Context, org string) ([]Flag, error) {
	org = strings.TrimSpace(org)
	rows, err := s.db.QueryContext(ctx, `
SELECT feature, enabled, updated_at
FROM org_features
WHERE org = ?
ORDER BY feature;
`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stored := map[string]Flag{}
	for rows.Next() {
		var (
			item      Flag
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&item.Feature, &item.Enabled, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			t := updatedAt.Time.UTC()
			item.UpdatedAt = &t
		}
		stored[item.Feature] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(Known))
	for name := range Known {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Flag, 0, len(names))
	for _, name := range names {
		item, ok := stored[name]
		if !ok {
			item = Flag{Feature: name, Enabled: s.defaults[name]}
		}
		item.Org = org
		item.Default = s.defaults[name]
		out = append(out, item)
	}
	return out, nil
}

// SavedQueries returns the ordered queries of one named list.
func (s *Store) SavedQueries(ctx context.Context, org, name string) ([]SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT position, query
FROM saved_queries
WHERE org = ? AND name = ?
ORDER BY position;
`, strings.TrimSpace(org), strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SavedQuery, 0)
	for rows.Next() {
		var item SavedQuery
		if err := rows.Scan(&item.Position, &item.Query); err != nil {
			return nil, err
		}
		item.Symbol, err = querylabel.Label(item.Position)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceSavedQueries stores queries in order, renumbering positions from zero.
func (s *Store) ReplaceSavedQueries(ctx context.Context, org, name string, queries []string) ([]SavedQuery, error) {
	org = strings.TrimSpace(org)
	name = strings.TrimSpace(name)
	if org == "" || name == "" {
		return nil, errors.New("org and name are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_queries WHERE org = ? AND name = ?`, org, name); err != nil {
		return nil, err
	}

	out := make([]SavedQuery, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		pos := len(out)
		if _, err := tx.ExecContext(ctx, `INSERT INTO saved_queries (org, name, position, query) VALUES (?, ?, ?, ?);`, org, name, pos, q); err != nil {
			return nil, err
		}
		out = append(out, SavedQuery{Position: pos, Symbol: querylabel.MustLabel(pos), Query: q})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
