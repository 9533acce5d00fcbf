package cache

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps cache entries as rows in a local SQLite database. Save
// replaces the table contents inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initDatabase(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA cache_size=-2000;"); err != nil {
		return err
	}
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load() (map[string]Entry, error) {
	rows, err := s.db.Query(`SELECT fingerprint, source, matched, track_id, uri, name, artists, album,
		confidence, strategy, error, cached_at FROM match_cache`)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var (
			key                                           string
			e                                             Entry
			src, id, uri, name, artists, album, strat, em sql.NullString
			cachedAt                                      time.Time
		)
		if err := rows.Scan(&key, &src, &e.Matched, &id, &uri, &name, &artists, &album,
			&e.Confidence, &strat, &em, &cachedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		e.Source = src.String
		e.ID, e.URI, e.Name, e.Album = id.String, uri.String, name.String, album.String
		e.Strategy, e.Error = strat.String, em.String
		e.CachedAt = cachedAt.UTC()
		if artists.Valid && artists.String != "" {
			if err := json.Unmarshal([]byte(artists.String), &e.Artists); err != nil {
				return nil, fmt.Errorf("decode artists for %s: %w", key, err)
			}
		}
		entries[key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache rows: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Save(entries map[string]Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM match_cache"); err != nil {
		return fmt.Errorf("clear cache table: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO match_cache (fingerprint, source, matched, track_id, uri, name, artists, album,
		confidence, strategy, error, cached_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(fingerprint) DO UPDATE SET
		source = excluded.source,
		matched = excluded.matched,
		track_id = excluded.track_id,
		uri = excluded.uri,
		name = excluded.name,
		artists = excluded.artists,
		album = excluded.album,
		confidence = excluded.confidence,
		strategy = excluded.strategy,
		error = excluded.error,
		cached_at = excluded.cached_at;`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for key, e := range entries {
		var artists []byte
		if len(e.Artists) > 0 {
			if artists, err = json.Marshal(e.Artists); err != nil {
				return fmt.Errorf("encode artists for %s: %w", key, err)
			}
		}
		if _, err := stmt.Exec(key, e.Source, e.Matched, e.ID, e.URI, e.Name, string(artists), e.Album,
			e.Confidence, e.Strategy, e.Error, e.CachedAt.UTC()); err != nil {
			return fmt.Errorf("insert %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
