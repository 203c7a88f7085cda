package notes

import (
	"context"

	"github.com/encnotes/mathnotes/internal/models"
)

// Filter narrows List results. The zero value lists active (non-deleted)
// notes across all folders.
type Filter struct {
	// FolderID restricts to one folder when non-nil.
	FolderID *string
	// FavoritesOnly restricts to favorited notes.
	FavoritesOnly bool
	// InTrash lists soft-deleted notes instead of active ones.
	InTrash bool
}

// Repository describes persistence operations for note records. The store
// is encryption-agnostic: title/body are opaque ciphertext bytes.
type Repository interface {
	// Create inserts a new note record.
	Create(ctx context.Context, rec *models.NoteRecord) error

	// GetByID returns one record regardless of its deleted flag.
	GetByID(ctx context.Context, id string) (*models.NoteRecord, error)

	// List returns records matching the filter, newest-modified first.
	List(ctx context.Context, f Filter) ([]models.NoteRecord, error)

	// ListAll returns every record including soft-deleted ones (used by
	// re-keying, which must migrate the whole store).
	ListAll(ctx context.Context) ([]models.NoteRecord, error)

	// UpdateContent replaces title/body ciphertext and bumps modified_at.
	UpdateContent(ctx context.Context, id string, title, body []byte, modifiedAt float64) error

	// ReplaceCiphertext swaps ciphertext without touching modified_at
	// (re-keying is not a content mutation).
	ReplaceCiphertext(ctx context.Context, id string, title, body []byte) error

	// SetDeleted flips the soft-delete flag and bumps modified_at.
	SetDeleted(ctx context.Context, id string, deleted bool, modifiedAt float64) error

	// Purge physically removes the row.
	Purge(ctx context.Context, id string) error

	// SetFavorite sets the favorite flag and bumps modified_at.
	SetFavorite(ctx context.Context, id string, favorite bool, modifiedAt float64) error

	// MoveToFolder reassigns the folder reference and bumps modified_at.
	MoveToFolder(ctx context.Context, id string, folderID *string, modifiedAt float64) error

	// ClearFolderRefs detaches every note from a folder (folder deletion).
	ClearFolderRefs(ctx context.Context, folderID string) error

	// SetSyncRef records the remote correlation pair without bumping
	// modified_at.
	SetSyncRef(ctx context.Context, id, recordID, changeTag string) error

	// ModifiedAfter returns records with modified_at strictly greater than
	// ts, ordered newest first with id as tiebreak.
	ModifiedAfter(ctx context.Context, ts float64) ([]models.NoteRecord, error)
}
