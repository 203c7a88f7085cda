package notemanager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/repositories/folders"
	"github.com/encnotes/mathnotes/internal/repositories/notes"
)

// CreateFolder adds a folder at the end of the display order.
func (m *Manager) CreateFolder(ctx context.Context, name string) (*models.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: folder name must not be empty", common.ErrValidation)
	}

	repo := folders.NewSQLiteRepository(m.db)
	idx, err := repo.NextOrderIndex(ctx)
	if err != nil {
		return nil, err
	}

	f := &models.Folder{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		OrderIndex: idx,
	}
	if err := repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// RenameFolder changes a folder's display name.
func (m *Manager) RenameFolder(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: folder name must not be empty", common.ErrValidation)
	}
	return folders.NewSQLiteRepository(m.db).Rename(ctx, id, name)
}

// ListFolders returns folders in display order.
func (m *Manager) ListFolders(ctx context.Context) ([]models.Folder, error) {
	return folders.NewSQLiteRepository(m.db).GetAll(ctx)
}

// DeleteFolder removes a folder and reassigns its notes to "All Notes" in
// the same transaction. Notes are never deleted with their folder.
func (m *Manager) DeleteFolder(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := notes.NewSQLiteRepository(tx).ClearFolderRefs(ctx, id); err != nil {
			return err
		}
		return folders.NewSQLiteRepository(tx).Delete(ctx, id)
	})
}
