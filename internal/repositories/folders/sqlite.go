// Package folders persists folder records in SQLite.
package folders

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

// Repository describes folder persistence. Folder deletion never deletes
// notes; the caller detaches them first (notes.ClearFolderRefs) inside the
// same transaction.
type Repository interface {
	Create(ctx context.Context, f *models.Folder) error
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	GetAll(ctx context.Context) ([]models.Folder, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	// NextOrderIndex returns one past the highest existing order index.
	NextOrderIndex(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, f *models.Folder) error {
	query := `INSERT INTO folders (id, name, created_at, order_index) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, f.ID, f.Name, timex.ToCocoa(f.CreatedAt), f.OrderIndex)
	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := `SELECT id, name, created_at, order_index FROM folders WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	f := &models.Folder{}
	var createdAt float64
	if err := row.Scan(&f.ID, &f.Name, &createdAt, &f.OrderIndex); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	f.CreatedAt = timex.FromCocoa(createdAt)
	return f, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Folder, error) {
	query := `SELECT id, name, created_at, order_index FROM folders ORDER BY order_index ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []models.Folder
	for rows.Next() {
		var f models.Folder
		var createdAt float64
		if err := rows.Scan(&f.ID, &f.Name, &createdAt, &f.OrderIndex); err != nil {
			return nil, err
		}
		f.CreatedAt = timex.FromCocoa(createdAt)
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE folders SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	return oneRow(res, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return oneRow(res, id)
}

func (r *SQLiteRepository) NextOrderIndex(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(order_index) FROM folders`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max order index: %w", err)
	}
	return int(max.Int64) + 1, nil
}

func oneRow(res sql.Result, id string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("folder %s: %w", id, common.ErrNotFound)
	}
	return nil
}
