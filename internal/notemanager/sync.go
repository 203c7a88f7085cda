package notemanager

import (
	"context"
	"time"

	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/repositories/notes"
	"github.com/encnotes/mathnotes/internal/repositories/syncmeta"
	"github.com/encnotes/mathnotes/internal/timex"
)

// NotesModifiedAfter returns decrypted notes modified strictly after the
// given instant, newest first. Soft-deleted notes are included so a sync
// collaborator can propagate deletions.
func (m *Manager) NotesModifiedAfter(ctx context.Context, since time.Time) ([]models.Note, error) {
	var result []models.Note
	err := m.withKey(func(key []byte) error {
		recs, err := notes.NewSQLiteRepository(m.db).ModifiedAfter(ctx, timex.ToCocoa(since))
		if err != nil {
			return err
		}
		result = m.decryptAll(ctx, key, recs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetSyncRef records a note's remote correlation pair. Deliberately does
// not bump the modification time: acknowledging a push is not an edit and
// must not make the note look newer than the remote copy.
func (m *Manager) SetSyncRef(ctx context.Context, id, recordID, changeTag string) error {
	return notes.NewSQLiteRepository(m.db).SetSyncRef(ctx, id, recordID, changeTag)
}

// SyncValue reads one sync bookkeeping value; ok is false when unset.
func (m *Manager) SyncValue(ctx context.Context, key string) (string, bool, error) {
	return syncmeta.NewSQLiteRepository(m.db).Get(ctx, key)
}

// SetSyncValue stores one sync bookkeeping value.
func (m *Manager) SetSyncValue(ctx context.Context, key, value string) error {
	return syncmeta.NewSQLiteRepository(m.db).Set(ctx, key, value)
}

// DeleteSyncValue removes one sync bookkeeping value.
func (m *Manager) DeleteSyncValue(ctx context.Context, key string) error {
	return syncmeta.NewSQLiteRepository(m.db).Delete(ctx, key)
}
