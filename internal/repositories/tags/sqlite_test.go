package tags

import (
	"context"
	"database/sql"
	"testing"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/migrations"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Run(context.Background(), db))
	return db
}

func TestCreateAndList(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t1", Name: "math"}))
	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t2", Name: "algorithms"}))

	// Duplicate names violate the unique constraint.
	require.Error(t, r.Create(ctx, &models.Tag{ID: "t3", Name: "math"}))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "algorithms", all[0].Name)
	assert.Equal(t, "math", all[1].Name)
}

func TestAssociations(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t1", Name: "math"}))
	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t2", Name: "go"}))

	require.NoError(t, r.AddToNote(ctx, "n1", "t1"))
	require.NoError(t, r.AddToNote(ctx, "n1", "t2"))
	require.NoError(t, r.AddToNote(ctx, "n2", "t1"))
	// Tagging twice is a no-op.
	require.NoError(t, r.AddToNote(ctx, "n1", "t1"))

	forNote, err := r.ForNote(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, forNote, 2)

	withTag, err := r.NoteIDsWithTag(ctx, "t1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "n2"}, withTag)

	require.NoError(t, r.RemoveFromNote(ctx, "n1", "t1"))
	withTag, err = r.NoteIDsWithTag(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n2"}, withTag)
}

func TestDelete_RemovesAssociations(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t1", Name: "math"}))
	require.NoError(t, r.AddToNote(ctx, "n1", "t1"))

	require.NoError(t, r.Delete(ctx, "t1"))

	forNote, err := r.ForNote(ctx, "n1")
	require.NoError(t, err)
	assert.Empty(t, forNote)

	require.ErrorIs(t, r.Delete(ctx, "t1"), common.ErrNotFound)
}

func TestClearNote(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t1", Name: "math"}))
	require.NoError(t, r.Create(ctx, &models.Tag{ID: "t2", Name: "go"}))
	require.NoError(t, r.AddToNote(ctx, "n1", "t1"))
	require.NoError(t, r.AddToNote(ctx, "n1", "t2"))

	require.NoError(t, r.ClearNote(ctx, "n1"))
	forNote, err := r.ForNote(ctx, "n1")
	require.NoError(t, err)
	assert.Empty(t, forNote)

	// Tags themselves survive.
	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
