// Package attachments persists attachment metadata: one row per unique
// content hash plus an association table linking attachments to notes.
package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/timex"
)

// Repository describes attachment metadata persistence. Blob bytes live on
// the filesystem; this repository only tracks rows and associations.
type Repository interface {
	Insert(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	// GetByHash returns the attachment with the given content hash, or
	// common.ErrNotFound — the dedup lookup.
	GetByHash(ctx context.Context, contentHash string) (*models.Attachment, error)
	Delete(ctx context.Context, id string) error

	AddNoteRef(ctx context.Context, attachmentID, noteID string) error
	RemoveNoteRef(ctx context.Context, attachmentID, noteID string) error
	// RemoveAllRefsForNote detaches a note from every attachment and
	// returns the affected attachment ids (purge cascade input).
	RemoveAllRefsForNote(ctx context.Context, noteID string) ([]string, error)

	ForNote(ctx context.Context, noteID string) ([]models.Attachment, error)
	// Orphans returns attachments with an empty association set.
	Orphans(ctx context.Context) ([]models.Attachment, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, a *models.Attachment) error {
	query := `INSERT INTO attachments (id, content_hash, blob_name, original_name, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.ContentHash, a.BlobName, a.OriginalName, a.SizeBytes, timex.ToCocoa(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetByHash(ctx context.Context, contentHash string) (*models.Attachment, error) {
	return r.getOne(ctx, `WHERE content_hash = ?`, contentHash)
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, arg any) (*models.Attachment, error) {
	query := `SELECT id, content_hash, blob_name, original_name, size_bytes, created_at
			FROM attachments ` + where
	a, err := scanAttachment(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attachment %v: %w", arg, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select attachment: %w", err)
	}

	a.NoteIDs, err = r.noteRefs(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachment_notes WHERE attachment_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete attachment refs: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("attachment %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) AddNoteRef(ctx context.Context, attachmentID, noteID string) error {
	query := `INSERT INTO attachment_notes (attachment_id, note_id) VALUES (?, ?)
			ON CONFLICT(attachment_id, note_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, attachmentID, noteID); err != nil {
		return fmt.Errorf("failed to add attachment ref: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveNoteRef(ctx context.Context, attachmentID, noteID string) error {
	query := `DELETE FROM attachment_notes WHERE attachment_id = ? AND note_id = ?`
	if _, err := r.db.ExecContext(ctx, query, attachmentID, noteID); err != nil {
		return fmt.Errorf("failed to remove attachment ref: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveAllRefsForNote(ctx context.Context, noteID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT attachment_id FROM attachment_notes WHERE note_id = ?`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachment refs: %w", err)
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

	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachment_notes WHERE note_id = ?`, noteID); err != nil {
		return nil, fmt.Errorf("failed to remove attachment refs: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) ForNote(ctx context.Context, noteID string) ([]models.Attachment, error) {
	query := `SELECT a.id, a.content_hash, a.blob_name, a.original_name, a.size_bytes, a.created_at
			FROM attachments a
			JOIN attachment_notes an ON an.attachment_id = a.id
			WHERE an.note_id = ?
			ORDER BY a.created_at ASC`
	return r.queryMany(ctx, query, noteID)
}

func (r *SQLiteRepository) Orphans(ctx context.Context) ([]models.Attachment, error) {
	query := `SELECT a.id, a.content_hash, a.blob_name, a.original_name, a.size_bytes, a.created_at
			FROM attachments a
			WHERE NOT EXISTS (SELECT 1 FROM attachment_notes an WHERE an.attachment_id = a.id)`
	return r.queryMany(ctx, query)
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].NoteIDs, err = r.noteRefs(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *SQLiteRepository) noteRefs(ctx context.Context, attachmentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT note_id FROM attachment_notes WHERE attachment_id = ? ORDER BY note_id ASC`, attachmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachment refs: %w", err)
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
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(s scanner) (*models.Attachment, error) {
	a := &models.Attachment{}
	var createdAt float64
	err := s.Scan(&a.ID, &a.ContentHash, &a.BlobName, &a.OriginalName, &a.SizeBytes, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = timex.FromCocoa(createdAt)
	return a, nil
}
