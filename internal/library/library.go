// Package library keeps the host music library catalogue in SQLite. The
// pipeline never touches it directly: the CLI reads the work list from it
// before a run and writes resolved paths back afterwards.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

const artistSeparator = ";"

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

var ddls = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		main_artist TEXT NOT NULL,
		artists TEXT NOT NULL DEFAULT '',
		feat_artist TEXT NOT NULL DEFAULT '',
		remixer TEXT NOT NULL DEFAULT '',
		remix_type TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		added_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tracks_path ON tracks (path)`,
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalogue at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite3 database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec ddl %q: %w", ddl, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts tracks, assigning an id to any track without one.
func (s *Store) Add(ctx context.Context, tracks []*domain.TrackRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tracks
		(id, title, main_artist, artists, feat_artist, remixer, remix_type, path, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, t := range tracks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if err := t.Validate(); err != nil {
			return err
		}
		_, err := stmt.ExecContext(ctx, t.ID, t.Title, t.MainArtist,
			strings.Join(t.Artists, artistSeparator), t.FeatArtist, t.Remixer, t.RemixType, t.Path, now)
		if err != nil {
			return fmt.Errorf("insert track %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// Missing returns the tracks that have no file in the library yet, oldest
// first.
func (s *Store) Missing(ctx context.Context) ([]*domain.TrackRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, main_artist, artists, feat_artist, remixer, remix_type
		FROM tracks WHERE path = '' ORDER BY added_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*domain.TrackRequest
	for rows.Next() {
		var t domain.TrackRequest
		var artists string
		if err := rows.Scan(&t.ID, &t.Title, &t.MainArtist, &artists, &t.FeatArtist, &t.Remixer, &t.RemixType); err != nil {
			return nil, err
		}
		if artists != "" {
			t.Artists = strings.Split(artists, artistSeparator)
		}
		tracks = append(tracks, &t)
	}
	return tracks, rows.Err()
}

// Persist writes back the paths set on tracks and returns how many rows
// changed. Tracks without a path are skipped.
func (s *Store) Persist(ctx context.Context, tracks []*domain.TrackRequest) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var updated int64
	for _, t := range tracks {
		if t.Path == "" {
			continue
		}
		res, err := tx.ExecContext(ctx, "UPDATE tracks SET path = ? WHERE id = ?", t.Path, t.ID)
		if err != nil {
			return 0, fmt.Errorf("update track %s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}
