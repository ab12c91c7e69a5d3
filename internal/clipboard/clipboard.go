// Package clipboard implements the clipboard history component (spec §2:
// "LRU image cache, SQLite-backed entries, asynchronous write worker"):
// a WAL-mode SQLite store of text and thumbnailed-image clipboard
// entries at `<kit>/db/clipboard.sqlite`, written through a dedicated
// background worker so a capture never blocks on disk I/O, with the
// image side of the cache bounded to a fixed entry count (oldest
// evicted first).
//
// Grounded on `internal/frecency`'s channel-driven async-persist worker
// shape, applied here to per-entry SQLite writes instead of one
// debounced whole-file rewrite, since clipboard history is append-only
// rather than a small mutable map.
package clipboard

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "github.com/mattn/go-sqlite3"
	_ "golang.org/x/image/bmp"
)

// Kind is the clipboard entry's content type.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Entry is one clipboard history record. List leaves Thumbnail empty;
// an image entry's thumbnail bytes are returned by LoadBlob instead.
type Entry struct {
	ID        int64
	Kind      Kind
	Text      string
	Thumbnail []byte
	CreatedAt time.Time
}

// thumbnailMaxDim bounds the longest edge of a stored image thumbnail.
const thumbnailMaxDim = 256

type writeRequest struct {
	kind      Kind
	text      string
	thumbnail []byte
}

// Store owns the clipboard SQLite database and its async write worker.
type Store struct {
	db              *sql.DB
	maxImageEntries int

	writeCh chan writeRequest
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open creates (or opens) the clipboard database at path in WAL mode and
// starts its background write worker. maxImageEntries bounds the number
// of stored image entries (oldest evicted first); text entries are
// unbounded.
func Open(path string, maxImageEntries int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("clipboard: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("clipboard: open db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS blobs (
			entry_id INTEGER PRIMARY KEY,
			data BLOB NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("clipboard: migrate: %w", err)
	}

	s := &Store{
		db:              db,
		maxImageEntries: maxImageEntries,
		writeCh:         make(chan writeRequest, 64),
		done:            make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// AddText enqueues a text clipboard capture. Returns once queued, not
// once persisted: List sees the entry only after the worker has written
// it, and a request still queued when Close is called is dropped.
func (s *Store) AddText(text string) {
	select {
	case s.writeCh <- writeRequest{kind: KindText, text: text}:
	case <-s.done:
	}
}

// AddImage thumbnails img (longest edge capped at thumbnailMaxDim),
// encodes it as PNG, and enqueues it for persistence.
func (s *Store) AddImage(img image.Image) error {
	thumb := imaging.Fit(img, thumbnailMaxDim, thumbnailMaxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return fmt.Errorf("clipboard: encode thumbnail: %w", err)
	}
	select {
	case s.writeCh <- writeRequest{kind: KindImage, thumbnail: buf.Bytes()}:
	case <-s.done:
	}
	return nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.writeCh:
			if err := s.persist(req); err == nil && req.kind == KindImage {
				s.evictOldImages()
			}
		case <-s.done:
			return
		}
	}
}

func (s *Store) persist(req writeRequest) error {
	now := time.Now().Unix()
	res, err := s.db.Exec(`INSERT INTO entries (kind, text, created_at) VALUES (?, ?, ?)`, string(req.kind), req.text, now)
	if err != nil {
		return err
	}
	if req.kind != KindImage {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO blobs (entry_id, data) VALUES (?, ?)`, id, req.thumbnail)
	return err
}

// evictOldImages drops the oldest image entries beyond maxImageEntries.
func (s *Store) evictOldImages() {
	if s.maxImageEntries <= 0 {
		return
	}
	rows, err := s.db.Query(`SELECT id FROM entries WHERE kind = ? ORDER BY created_at DESC`, string(KindImage))
	if err != nil {
		return
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if len(ids) <= s.maxImageEntries {
		return
	}
	for _, id := range ids[s.maxImageEntries:] {
		s.db.Exec(`DELETE FROM blobs WHERE entry_id = ?`, id)
		s.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	}
}

// List returns up to limit of the most recent entries, newest first.
// Image thumbnails are not loaded; use LoadBlob for that.
func (s *Store) List(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT id, kind, text, created_at FROM entries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var createdAt int64
		if err := rows.Scan(&e.ID, &kind, &e.Text, &createdAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadBlob loads the stored thumbnail bytes for an image entry.
func (s *Store) LoadBlob(entryID int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM blobs WHERE entry_id = ?`, entryID).Scan(&data)
	return data, err
}

// Close stops the write worker (dropping anything not yet persisted)
// and closes the database.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
