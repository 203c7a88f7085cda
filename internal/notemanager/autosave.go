package notemanager

import (
	"context"
	"sync"
	"time"

	"github.com/encnotes/mathnotes/internal/logging"
)

// SaveFunc persists one note's content. The Autosaver calls it off the
// caller's goroutine once the debounce window closes.
type SaveFunc func(ctx context.Context, id, title, body string) error

// Autosaver coalesces rapid edits to the same note into one save per
// debounce window, trailing edge: each new edit restarts the timer and
// only the latest content is written. Different notes debounce
// independently.
type Autosaver struct {
	save     SaveFunc
	debounce time.Duration
	log      logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingEdit
}

type pendingEdit struct {
	timer *time.Timer
	title string
	body  string
}

// NewAutosaver returns an Autosaver writing through save after debounce of
// inactivity per note.
func NewAutosaver(debounce time.Duration, save SaveFunc, log logging.Logger) *Autosaver {
	return &Autosaver{
		save:     save,
		debounce: debounce,
		log:      log,
		pending:  make(map[string]*pendingEdit),
	}
}

// Queue records the latest content for a note and (re)starts its debounce
// timer. Returns immediately.
func (a *Autosaver) Queue(id, title, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.pending[id]; ok {
		p.title = title
		p.body = body
		p.timer.Reset(a.debounce)
		return
	}

	p := &pendingEdit{title: title, body: body}
	p.timer = time.AfterFunc(a.debounce, func() { a.fire(id) })
	a.pending[id] = p
}

// Flush saves every pending edit immediately, cancelling the timers.
// Call before shutdown so no edit is lost to an open debounce window.
func (a *Autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	snapshot := make(map[string]*pendingEdit, len(a.pending))
	for id, p := range a.pending {
		p.timer.Stop()
		snapshot[id] = p
		delete(a.pending, id)
	}
	a.mu.Unlock()

	for id, p := range snapshot {
		if err := a.save(ctx, id, p.title, p.body); err != nil {
			a.log.Error(ctx, "autosave failed", "id", id, "error", err)
		}
	}
}

func (a *Autosaver) fire(id string) {
	a.mu.Lock()
	p, ok := a.pending[id]
	if !ok {
		// Flushed between the timer firing and this goroutine running.
		a.mu.Unlock()
		return
	}
	delete(a.pending, id)
	a.mu.Unlock()

	ctx := context.Background()
	if err := a.save(ctx, id, p.title, p.body); err != nil {
		a.log.Error(ctx, "autosave failed", "id", id, "error", err)
	}
}
