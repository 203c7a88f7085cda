package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubExec records which commands the REPL dispatched.
type stubExec struct {
	unlocked bool
	calls    []string
}

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	return nil
}

func (s *stubExec) isUnlocked() bool                            { return s.unlocked }
func (s *stubExec) NewNote(ctx context.Context) error           { return s.record("new") }
func (s *stubExec) List(ctx context.Context) error              { return s.record("list") }
func (s *stubExec) ListFavorites(ctx context.Context) error     { return s.record("favs") }
func (s *stubExec) ListTrash(ctx context.Context) error         { return s.record("trash") }
func (s *stubExec) Show(ctx context.Context) error              { return s.record("show") }
func (s *stubExec) Edit(ctx context.Context) error              { return s.record("edit") }
func (s *stubExec) Delete(ctx context.Context) error            { return s.record("delete") }
func (s *stubExec) Restore(ctx context.Context) error           { return s.record("restore") }
func (s *stubExec) Purge(ctx context.Context) error             { return s.record("purge") }
func (s *stubExec) Search(ctx context.Context) error            { return s.record("search") }
func (s *stubExec) ToggleFavorite(ctx context.Context) error    { return s.record("fav") }
func (s *stubExec) Folders(ctx context.Context) error           { return s.record("folders") }
func (s *stubExec) NewFolder(ctx context.Context) error         { return s.record("newfolder") }
func (s *stubExec) Move(ctx context.Context) error              { return s.record("move") }
func (s *stubExec) Attach(ctx context.Context) error            { return s.record("attach") }
func (s *stubExec) OpenAttachment(ctx context.Context) error    { return s.record("open") }
func (s *stubExec) Sync(ctx context.Context) error              { return s.record("sync") }
func (s *stubExec) ChangePasswordCmd(ctx context.Context) error { return s.record("passwd") }
func (s *stubExec) LockCmd(ctx context.Context) error           { return s.record("lock") }

func runWithInput(t *testing.T, a execIface, input string) []string {
	t.Helper()

	var output []string
	origPrintln := printlnFn
	printlnFn = func(args ...any) (int, error) {
		parts := make([]string, len(args))
		for i, v := range args {
			parts[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(toString(v)), "\n"))
		}
		output = append(output, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrintln })

	scanner := bufio.NewScanner(strings.NewReader(input))
	runREPL(context.Background(), a, scanner)
	return output
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func TestREPL_DispatchesCommands(t *testing.T) {
	s := &stubExec{unlocked: true}
	runWithInput(t, s, "new\nlist\ntrash\nsync\nexit\n")

	assert.Equal(t, []string{"new", "list", "trash", "sync"}, s.calls)
}

func TestREPL_ShortList(t *testing.T) {
	s := &stubExec{unlocked: true}
	runWithInput(t, s, "l\nexit\n")
	assert.Equal(t, []string{"list"}, s.calls)
}

func TestREPL_UnknownCommand(t *testing.T) {
	s := &stubExec{unlocked: true}
	output := runWithInput(t, s, "frobnicate\nexit\n")

	assert.Empty(t, s.calls)
	assert.Contains(t, output, "Unknown command: frobnicate")
}

func TestREPL_EmptyLinesSkipped(t *testing.T) {
	s := &stubExec{unlocked: true}
	runWithInput(t, s, "\n\nlist\nexit\n")
	assert.Equal(t, []string{"list"}, s.calls)
}

func TestREPL_ExitsWhenLocked(t *testing.T) {
	s := &stubExec{unlocked: false}
	runWithInput(t, s, "list\nexit\n")
	assert.Empty(t, s.calls)
}

func TestREPL_EOFEndsLoop(t *testing.T) {
	s := &stubExec{unlocked: true}
	runWithInput(t, s, "list\n")
	assert.Equal(t, []string{"list"}, s.calls)
}
