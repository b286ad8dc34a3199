// Package archive persists face sequences in a local SQLite database.
// Each stored sequence is addressed by a user-chosen name and keeps a
// few summary columns alongside the encoded payload so listings do not
// need to decode anything.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/facetrail/facetrail/internal/faceseq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no stored sequence matches the given name.
var ErrNotFound = errors.New("sequence not found")

const schema = `
	CREATE TABLE IF NOT EXISTS sequences (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		uid         TEXT NOT NULL,
		frames      INTEGER NOT NULL,
		faces       INTEGER NOT NULL,
		frame_scale DOUBLE NOT NULL,
		track_faces BOOLEAN NOT NULL,
		data        BLOB NOT NULL,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);
`

// Entry describes a stored sequence without its payload.
type Entry struct {
	Name       string    `json:"name"`
	UID        string    `json:"uid"`
	Frames     int       `json:"frames"`
	Faces      int       `json:"faces"`
	FrameScale float64   `json:"frame_scale"`
	TrackFaces bool      `json:"track_faces"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store manages a SQLite database of saved sequences.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put stores the sequence under name, replacing any previous version.
func (s *Store) Put(ctx context.Context, name string, seq *faceseq.Sequence) error {
	if name == "" {
		return errors.New("sequence name is required")
	}

	var buf bytes.Buffer
	if err := seq.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode sequence: %w", err)
	}

	faces := 0
	for _, frame := range seq.Frames() {
		faces += len(frame.Faces)
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sequences (name, uid, frames, faces, frame_scale, track_faces, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			uid = excluded.uid,
			frames = excluded.frames,
			faces = excluded.faces,
			frame_scale = excluded.frame_scale,
			track_faces = excluded.track_faces,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		name, seq.UID(), seq.Size(), faces, seq.FrameScale(), seq.TrackFaces(), buf.Bytes(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store sequence %q: %w", name, err)
	}
	return nil
}

// Get loads the stored sequence called name into seq. The sequence keeps
// its previous content when the stored payload cannot be decoded.
func (s *Store) Get(ctx context.Context, name string, seq *faceseq.Sequence) error {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM sequences WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to load sequence %q: %w", name, err)
	}
	return seq.Decode(bytes.NewReader(data))
}

// List returns all stored sequences ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, uid, frames, faces, frame_scale, track_faces, created_at, updated_at
		FROM sequences
		ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, updated int64
		if err := rows.Scan(&e.Name, &e.UID, &e.Frames, &e.Faces, &e.FrameScale, &e.TrackFaces, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan sequence row: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sequences: %w", err)
	}
	return entries, nil
}

// Delete removes the stored sequence called name.
func (s *Store) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sequences WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete sequence %q: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
