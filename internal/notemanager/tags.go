package notemanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/repositories/notes"
	"github.com/encnotes/mathnotes/internal/repositories/tags"
)

// CreateTag adds a tag. Names are unique across the store.
func (m *Manager) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: tag name must not be empty", common.ErrValidation)
	}

	t := &models.Tag{ID: uuid.NewString(), Name: name}
	if err := tags.NewSQLiteRepository(m.db).Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTags returns all tags sorted by name.
func (m *Manager) ListTags(ctx context.Context) ([]models.Tag, error) {
	return tags.NewSQLiteRepository(m.db).GetAll(ctx)
}

// DeleteTag removes a tag and all its note associations.
func (m *Manager) DeleteTag(ctx context.Context, id string) error {
	return tags.NewSQLiteRepository(m.db).Delete(ctx, id)
}

// TagNote associates a tag with a note; already-tagged is a no-op.
func (m *Manager) TagNote(ctx context.Context, noteID, tagID string) error {
	return tags.NewSQLiteRepository(m.db).AddToNote(ctx, noteID, tagID)
}

// UntagNote removes one tag from a note.
func (m *Manager) UntagNote(ctx context.Context, noteID, tagID string) error {
	return tags.NewSQLiteRepository(m.db).RemoveFromNote(ctx, noteID, tagID)
}

// TagsForNote returns the tags on one note.
func (m *Manager) TagsForNote(ctx context.Context, noteID string) ([]models.Tag, error) {
	return tags.NewSQLiteRepository(m.db).ForNote(ctx, noteID)
}

// NotesWithTag returns the decrypted notes carrying a tag. Undecryptable
// notes are logged and skipped, as in listing.
func (m *Manager) NotesWithTag(ctx context.Context, tagID string) ([]models.Note, error) {
	var result []models.Note
	err := m.withKey(func(key []byte) error {
		ids, err := tags.NewSQLiteRepository(m.db).NoteIDsWithTag(ctx, tagID)
		if err != nil {
			return err
		}
		repo := notes.NewSQLiteRepository(m.db)
		for _, id := range ids {
			rec, err := repo.GetByID(ctx, id)
			if err != nil {
				m.log.Error(ctx, "skipping unreadable note", "id", id, "error", err)
				continue
			}
			n, err := decryptRecord(key, rec)
			if err != nil {
				m.log.Error(ctx, "skipping undecryptable note", "id", id, "error", err)
				continue
			}
			result = append(result, *n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
