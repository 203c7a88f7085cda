// Package syncmirror maintains a file-based mirror of the note store: one
// JSON document per note in a mirror directory, refreshed incrementally
// from the notes' modification times. It stands in for a remote sync
// backend and exercises the same bookkeeping one would need: a persisted
// last-sync watermark, per-note change tags, and last-writer-wins conflict
// resolution on the modification time.
package syncmirror

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/logging"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/timex"
)

// LastSyncKey is the sync bookkeeping key holding the watermark, stored as
// Cocoa-epoch seconds.
const LastSyncKey = "last_sync_timestamp"

// DefaultInterval matches the periodic refresh cadence of the app.
const DefaultInterval = 5 * time.Minute

// Source is the slice of the note store the mirror consumes. It sees only
// already-decrypted notes and the sync key-value store; it has no access
// to keys or ciphertext.
type Source interface {
	NotesModifiedAfter(ctx context.Context, since time.Time) ([]models.Note, error)
	SetSyncRef(ctx context.Context, id, recordID, changeTag string) error
	SyncValue(ctx context.Context, key string) (string, bool, error)
	SetSyncValue(ctx context.Context, key, value string) error
}

// record is the on-disk form of one mirrored note.
type record struct {
	ID         string  `json:"id"`
	FolderID   *string `json:"folder_id,omitempty"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	IsFavorite bool    `json:"is_favorite"`
	IsDeleted  bool    `json:"is_deleted"`
	CreatedAt  float64 `json:"created_at"`
	ModifiedAt float64 `json:"modified_at"`
	ChangeTag  string  `json:"change_tag"`
}

// Mirror pushes changed notes into a directory of JSON documents.
type Mirror struct {
	src      Source
	dir      string
	interval time.Duration
	log      logging.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithInterval overrides the periodic refresh cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Mirror) { m.interval = d }
}

// New creates the mirror directory if needed.
func New(src Source, dir string, log logging.Logger, opts ...Option) (*Mirror, error) {
	m := &Mirror{src: src, dir: dir, interval: DefaultInterval, log: log}
	for _, o := range opts {
		o(m)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create mirror dir: %v", common.ErrStorage, err)
	}
	return m, nil
}

// SyncOnce mirrors every note modified since the stored watermark and
// advances it. Returns how many notes were written.
//
// Conflicts resolve last-writer-wins: a mirror document carrying a newer
// modification time than the local note is left in place.
func (m *Mirror) SyncOnce(ctx context.Context) (int, error) {
	since, err := m.watermark(ctx)
	if err != nil {
		return 0, err
	}

	changed, err := m.src.NotesModifiedAfter(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(changed) == 0 {
		return 0, nil
	}

	written := 0
	maxModified := timex.ToCocoa(since)
	for _, n := range changed {
		modified := timex.ToCocoa(n.ModifiedAt)
		if modified > maxModified {
			maxModified = modified
		}

		path := filepath.Join(m.dir, n.ID+".json")
		if existing, err := m.readRecord(path); err == nil && existing.ModifiedAt > modified {
			m.log.Warn(ctx, "mirror copy newer than local note, keeping mirror", "id", n.ID)
			continue
		}

		tag := uuid.NewString()
		if err := m.writeRecord(path, &n, tag); err != nil {
			return written, err
		}
		if err := m.src.SetSyncRef(ctx, n.ID, n.ID, tag); err != nil {
			return written, err
		}
		written++
	}

	value := strconv.FormatFloat(maxModified, 'f', -1, 64)
	if err := m.src.SetSyncValue(ctx, LastSyncKey, value); err != nil {
		return written, err
	}

	m.log.Info(ctx, "mirror refreshed", "written", written, "watermark", value)
	return written, nil
}

// Start launches Run on its own goroutine; it never blocks the caller.
func (m *Mirror) Start(ctx context.Context) {
	go m.Run(ctx)
}

// Run refreshes the mirror immediately and then on every interval tick
// until the context is cancelled. Errors are logged; a failed pass does
// not stop the loop.
func (m *Mirror) Run(ctx context.Context) {
	if _, err := m.SyncOnce(ctx); err != nil {
		m.log.Error(ctx, "mirror refresh failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SyncOnce(ctx); err != nil {
				m.log.Error(ctx, "mirror refresh failed", "error", err)
			}
		}
	}
}

// watermark returns the stored last-sync instant, or the zero time when no
// sync has happened yet.
func (m *Mirror) watermark(ctx context.Context) (time.Time, error) {
	value, ok, err := m.src.SyncValue(ctx, LastSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}
	ts, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad sync watermark %q: %v", common.ErrStorage, value, err)
	}
	return timex.FromCocoa(ts), nil
}

func (m *Mirror) readRecord(path string) (*record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mirror) writeRecord(path string, n *models.Note, changeTag string) error {
	rec := record{
		ID:         n.ID,
		FolderID:   n.FolderID,
		Title:      n.Title,
		Body:       n.Body,
		IsFavorite: n.IsFavorite,
		IsDeleted:  n.IsDeleted,
		CreatedAt:  timex.ToCocoa(n.CreatedAt),
		ModifiedAt: timex.ToCocoa(n.ModifiedAt),
		ChangeTag:  changeTag,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mirror record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write mirror record: %v", common.ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace mirror record: %v", common.ErrStorage, err)
	}
	return nil
}
