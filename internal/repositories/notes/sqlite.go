// Package notes persists note records in SQLite.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/models"
)

const noteColumns = `id, folder_id, title, body, is_favorite, is_deleted, created_at, modified_at, sync_record_id, sync_change_tag`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, rec *models.NoteRecord) error {
	query := `INSERT INTO notes (` + noteColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.FolderID, rec.Title, rec.Body, rec.IsFavorite, rec.IsDeleted,
		rec.CreatedAt, rec.ModifiedAt, rec.SyncRecordID, rec.SyncChangeTag)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.NoteRecord, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	rec, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select note: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]models.NoteRecord, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE is_deleted = ?`
	args := []any{f.InTrash}

	if f.FolderID != nil {
		query += ` AND folder_id = ?`
		args = append(args, *f.FolderID)
	}
	if f.FavoritesOnly {
		query += ` AND is_favorite = 1`
	}
	query += ` ORDER BY modified_at DESC, id ASC`

	return r.queryNotes(ctx, query, args...)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]models.NoteRecord, error) {
	query := `SELECT ` + noteColumns + ` FROM notes ORDER BY modified_at DESC, id ASC`
	return r.queryNotes(ctx, query)
}

func (r *SQLiteRepository) UpdateContent(ctx context.Context, id string, title, body []byte, modifiedAt float64) error {
	query := `UPDATE notes SET title = ?, body = ?, modified_at = ? WHERE id = ?`
	return r.execOne(ctx, id, query, title, body, modifiedAt, id)
}

func (r *SQLiteRepository) ReplaceCiphertext(ctx context.Context, id string, title, body []byte) error {
	query := `UPDATE notes SET title = ?, body = ? WHERE id = ?`
	return r.execOne(ctx, id, query, title, body, id)
}

func (r *SQLiteRepository) SetDeleted(ctx context.Context, id string, deleted bool, modifiedAt float64) error {
	query := `UPDATE notes SET is_deleted = ?, modified_at = ? WHERE id = ? AND is_deleted = ?`
	return r.execOne(ctx, id, query, deleted, modifiedAt, id, !deleted)
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	return r.execOne(ctx, id, `DELETE FROM notes WHERE id = ?`, id)
}

func (r *SQLiteRepository) SetFavorite(ctx context.Context, id string, favorite bool, modifiedAt float64) error {
	query := `UPDATE notes SET is_favorite = ?, modified_at = ? WHERE id = ?`
	return r.execOne(ctx, id, query, favorite, modifiedAt, id)
}

func (r *SQLiteRepository) MoveToFolder(ctx context.Context, id string, folderID *string, modifiedAt float64) error {
	query := `UPDATE notes SET folder_id = ?, modified_at = ? WHERE id = ?`
	return r.execOne(ctx, id, query, folderID, modifiedAt, id)
}

func (r *SQLiteRepository) ClearFolderRefs(ctx context.Context, folderID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = ?`, folderID)
	if err != nil {
		return fmt.Errorf("failed to clear folder refs: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetSyncRef(ctx context.Context, id, recordID, changeTag string) error {
	query := `UPDATE notes SET sync_record_id = ?, sync_change_tag = ? WHERE id = ?`
	return r.execOne(ctx, id, query, recordID, changeTag, id)
}

func (r *SQLiteRepository) ModifiedAfter(ctx context.Context, ts float64) ([]models.NoteRecord, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE modified_at > ?
			ORDER BY modified_at DESC, id ASC`
	return r.queryNotes(ctx, query, ts)
}

// execOne runs a statement that must affect exactly one row and maps a
// zero-row result to common.ErrNotFound.
func (r *SQLiteRepository) execOne(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) queryNotes(ctx context.Context, query string, args ...any) ([]models.NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	var result []models.NoteRecord
	for rows.Next() {
		rec, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.NoteRecord, error) {
	rec := &models.NoteRecord{}
	err := s.Scan(&rec.ID, &rec.FolderID, &rec.Title, &rec.Body,
		&rec.IsFavorite, &rec.IsDeleted, &rec.CreatedAt, &rec.ModifiedAt,
		&rec.SyncRecordID, &rec.SyncChangeTag)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
