package syncmirror

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encnotes/mathnotes/internal/logging"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/timex"
)

type syncRef struct {
	recordID  string
	changeTag string
}

// fakeSource is an in-memory Source.
type fakeSource struct {
	notes []models.Note
	refs  map[string]syncRef
	kv    map[string]string
}

func newFakeSource(notes ...models.Note) *fakeSource {
	return &fakeSource{
		notes: notes,
		refs:  make(map[string]syncRef),
		kv:    make(map[string]string),
	}
}

func (f *fakeSource) NotesModifiedAfter(_ context.Context, since time.Time) ([]models.Note, error) {
	var result []models.Note
	for _, n := range f.notes {
		if n.ModifiedAt.After(since) {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ModifiedAt.After(result[j].ModifiedAt)
	})
	return result, nil
}

func (f *fakeSource) SetSyncRef(_ context.Context, id, recordID, changeTag string) error {
	f.refs[id] = syncRef{recordID: recordID, changeTag: changeTag}
	return nil
}

func (f *fakeSource) SyncValue(_ context.Context, key string) (string, bool, error) {
	v, ok := f.kv[key]
	return v, ok, nil
}

func (f *fakeSource) SetSyncValue(_ context.Context, key, value string) error {
	f.kv[key] = value
	return nil
}

func note(id, title string, modified time.Time) models.Note {
	return models.Note{
		ID:         id,
		Title:      title,
		Body:       "body of " + title,
		CreatedAt:  modified.Add(-time.Hour),
		ModifiedAt: modified,
	}
}

func readMirror(t *testing.T, dir, id string) record {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	require.NoError(t, err)
	var rec record
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec
}

func TestSyncOnce_WritesChangedNotes(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := newFakeSource(
		note("n1", "first", base),
		note("n2", "second", base.Add(time.Minute)),
	)
	dir := t.TempDir()
	m, err := New(src, dir, logging.NewNopLogger())
	require.NoError(t, err)

	written, err := m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	rec := readMirror(t, dir, "n1")
	assert.Equal(t, "first", rec.Title)
	assert.Equal(t, "body of first", rec.Body)
	assert.NotEmpty(t, rec.ChangeTag)

	// Every mirrored note got a sync ref with the mirror's change tag.
	require.Contains(t, src.refs, "n1")
	assert.Equal(t, rec.ChangeTag, src.refs["n1"].changeTag)

	// The watermark is the newest mirrored modification time.
	watermark, ok := src.kv[LastSyncKey]
	require.True(t, ok)
	assert.Equal(t, timex.ToCocoa(base.Add(time.Minute)), mustParseFloat(t, watermark))
}

func TestSyncOnce_Incremental(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := newFakeSource(note("n1", "only", base))
	dir := t.TempDir()
	m, err := New(src, dir, logging.NewNopLogger())
	require.NoError(t, err)

	written, err := m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	// Nothing changed since the watermark: second pass writes nothing.
	written, err = m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	// A newer edit shows up on the next pass.
	src.notes = append(src.notes, note("n2", "newer", base.Add(time.Hour)))
	written, err = m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, "newer", readMirror(t, dir, "n2").Title)
}

func TestSyncOnce_DeletedNotesPropagate(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := note("n1", "trashed", base)
	n.IsDeleted = true
	src := newFakeSource(n)
	dir := t.TempDir()
	m, err := New(src, dir, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, readMirror(t, dir, "n1").IsDeleted)
}

func TestSyncOnce_NewerMirrorCopyWins(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := newFakeSource(note("n1", "local", base))
	dir := t.TempDir()
	m, err := New(src, dir, logging.NewNopLogger())
	require.NoError(t, err)

	// Pre-seed the mirror with a copy modified after the local note.
	newer := record{
		ID:         "n1",
		Title:      "mirror side",
		ModifiedAt: timex.ToCocoa(base.Add(time.Hour)),
		ChangeTag:  "remote-tag",
	}
	data, err := json.Marshal(newer)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "n1.json"), data, 0o600))

	written, err := m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, written)
	assert.Equal(t, "mirror side", readMirror(t, dir, "n1").Title)
	assert.NotContains(t, src.refs, "n1")
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := newFakeSource()
	m, err := New(src, t.TempDir(), logging.NewNopLogger(), WithInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func mustParseFloat(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return f
}
