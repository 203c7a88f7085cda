package notemanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/repositories/notes"
	"github.com/encnotes/mathnotes/internal/repositories/tags"
	"github.com/encnotes/mathnotes/internal/timex"
)

// CreateNote encrypts and stores a new note. An empty or whitespace-only
// title is rejected with common.ErrValidation.
func (m *Manager) CreateNote(ctx context.Context, title, body string, folderID *string) (*models.Note, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: note title must not be empty", common.ErrValidation)
	}

	var n *models.Note
	err := m.withKey(func(key []byte) error {
		ct, cb, err := encryptContent(key, title, body)
		if err != nil {
			return err
		}

		now := nowCocoa()
		rec := &models.NoteRecord{
			ID:         uuid.NewString(),
			FolderID:   folderID,
			Title:      ct,
			Body:       cb,
			CreatedAt:  now,
			ModifiedAt: now,
		}
		if err := notes.NewSQLiteRepository(m.db).Create(ctx, rec); err != nil {
			return err
		}

		n = &models.Note{
			ID:         rec.ID,
			FolderID:   folderID,
			Title:      title,
			Body:       body,
			CreatedAt:  timex.FromCocoa(now),
			ModifiedAt: timex.FromCocoa(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info(ctx, "note created", "id", n.ID)
	return n, nil
}

// GetNote returns one decrypted note, soft-deleted or not.
func (m *Manager) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var n *models.Note
	err := m.withKey(func(key []byte) error {
		rec, err := notes.NewSQLiteRepository(m.db).GetByID(ctx, id)
		if err != nil {
			return err
		}
		n, err = decryptRecord(key, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateNote replaces a note's content and bumps its modification time.
func (m *Manager) UpdateNote(ctx context.Context, id, title, body string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: note title must not be empty", common.ErrValidation)
	}
	return m.withKey(func(key []byte) error {
		ct, cb, err := encryptContent(key, title, body)
		if err != nil {
			return err
		}
		return notes.NewSQLiteRepository(m.db).UpdateContent(ctx, id, ct, cb, nowCocoa())
	})
}

// DeleteNote moves a note to the trash. The row and its attachments stay.
func (m *Manager) DeleteNote(ctx context.Context, id string) error {
	return notes.NewSQLiteRepository(m.db).SetDeleted(ctx, id, true, nowCocoa())
}

// RestoreNote brings a trashed note back.
func (m *Manager) RestoreNote(ctx context.Context, id string) error {
	return notes.NewSQLiteRepository(m.db).SetDeleted(ctx, id, false, nowCocoa())
}

// PurgeNote permanently removes a note: its row, its tag links, and its
// attachment references. Attachment blobs no other note references are
// unlinked as part of the cascade.
func (m *Manager) PurgeNote(ctx context.Context, id string) error {
	if err := m.blobs.RemoveAllForNote(ctx, id); err != nil {
		return err
	}
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := tags.NewSQLiteRepository(tx).ClearNote(ctx, id); err != nil {
			return err
		}
		return notes.NewSQLiteRepository(tx).Purge(ctx, id)
	})
	if err != nil {
		return err
	}
	m.log.Info(ctx, "note purged", "id", id)
	return nil
}

// ListNotes returns decrypted notes matching the filter, newest first.
// A record that fails to decrypt is logged and skipped rather than hiding
// the rest of the store.
func (m *Manager) ListNotes(ctx context.Context, f notes.Filter) ([]models.Note, error) {
	var result []models.Note
	err := m.withKey(func(key []byte) error {
		recs, err := notes.NewSQLiteRepository(m.db).List(ctx, f)
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

// ListAll returns all active notes.
func (m *Manager) ListAll(ctx context.Context) ([]models.Note, error) {
	return m.ListNotes(ctx, notes.Filter{})
}

// ListFavorites returns active favorited notes.
func (m *Manager) ListFavorites(ctx context.Context) ([]models.Note, error) {
	return m.ListNotes(ctx, notes.Filter{FavoritesOnly: true})
}

// ListTrash returns soft-deleted notes.
func (m *Manager) ListTrash(ctx context.Context) ([]models.Note, error) {
	return m.ListNotes(ctx, notes.Filter{InTrash: true})
}

// ListByFolder returns active notes inside one folder.
func (m *Manager) ListByFolder(ctx context.Context, folderID string) ([]models.Note, error) {
	return m.ListNotes(ctx, notes.Filter{FolderID: &folderID})
}

// Search returns active notes whose title or body contains the query,
// case-insensitively. Search happens after decryption; ciphertext is never
// indexed.
func (m *Manager) Search(ctx context.Context, query string) ([]models.Note, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var result []models.Note
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), needle) ||
			strings.Contains(strings.ToLower(n.Body), needle) {
			result = append(result, n)
		}
	}
	return result, nil
}

// SetFavorite sets or clears the favorite flag.
func (m *Manager) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return notes.NewSQLiteRepository(m.db).SetFavorite(ctx, id, favorite, nowCocoa())
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (m *Manager) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	rec, err := notes.NewSQLiteRepository(m.db).GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	next := !rec.IsFavorite
	if err := m.SetFavorite(ctx, id, next); err != nil {
		return false, err
	}
	return next, nil
}

// MoveNoteToFolder reassigns a note; nil folderID means "All Notes".
func (m *Manager) MoveNoteToFolder(ctx context.Context, id string, folderID *string) error {
	return notes.NewSQLiteRepository(m.db).MoveToFolder(ctx, id, folderID, nowCocoa())
}

func (m *Manager) decryptAll(ctx context.Context, key []byte, recs []models.NoteRecord) []models.Note {
	result := make([]models.Note, 0, len(recs))
	for i := range recs {
		n, err := decryptRecord(key, &recs[i])
		if err != nil {
			m.log.Error(ctx, "skipping undecryptable note", "id", recs[i].ID, "error", err)
			continue
		}
		result = append(result, *n)
	}
	return result
}
