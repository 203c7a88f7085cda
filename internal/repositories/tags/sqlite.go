// Package tags persists tags and their many-to-many note associations.
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/models"
)

// Repository describes tag persistence and note association.
type Repository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id string) (*models.Tag, error)
	GetAll(ctx context.Context) ([]models.Tag, error)
	Delete(ctx context.Context, id string) error
	AddToNote(ctx context.Context, noteID, tagID string) error
	RemoveFromNote(ctx context.Context, noteID, tagID string) error
	ForNote(ctx context.Context, noteID string) ([]models.Tag, error)
	NoteIDsWithTag(ctx context.Context, tagID string) ([]string, error)
	// ClearNote drops every tag association for a note (purge cascade).
	ClearNote(ctx context.Context, noteID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, tag *models.Tag) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES (?, ?)`, tag.ID, tag.Name)
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	tag := &models.Tag{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE id = ?`, id).
		Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select tag: %w", err)
	}
	return tag, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Tag, error) {
	return r.queryTags(ctx, `SELECT id, name FROM tags ORDER BY name ASC`)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM note_tags WHERE tag_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tag associations: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) AddToNote(ctx context.Context, noteID, tagID string) error {
	query := `INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)
			ON CONFLICT(note_id, tag_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, noteID, tagID); err != nil {
		return fmt.Errorf("failed to tag note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveFromNote(ctx context.Context, noteID, tagID string) error {
	query := `DELETE FROM note_tags WHERE note_id = ? AND tag_id = ?`
	if _, err := r.db.ExecContext(ctx, query, noteID, tagID); err != nil {
		return fmt.Errorf("failed to untag note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ForNote(ctx context.Context, noteID string) ([]models.Tag, error) {
	query := `SELECT t.id, t.name FROM tags t
			JOIN note_tags nt ON nt.tag_id = t.id
			WHERE nt.note_id = ? ORDER BY t.name ASC`
	return r.queryTags(ctx, query, noteID)
}

func (r *SQLiteRepository) NoteIDsWithTag(ctx context.Context, tagID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT note_id FROM note_tags WHERE tag_id = ?`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tagged notes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *SQLiteRepository) ClearNote(ctx context.Context, noteID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("failed to clear note tags: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) queryTags(ctx context.Context, query string, args ...any) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
