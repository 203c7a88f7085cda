// Package notemanager is the service layer of the store. It owns the
// unlocked session key, translates between plaintext notes and their
// encrypted records, and coordinates the repositories, the attachment
// store, and the key manager into transactional operations.
package notemanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/encnotes/mathnotes/internal/attachmentstore"
	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/cryptox"
	"github.com/encnotes/mathnotes/internal/keymanager"
	"github.com/encnotes/mathnotes/internal/logging"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/timex"
)

// Manager exposes the note store operations. All content crosses the
// encryption boundary here: repositories below only ever see ciphertext.
type Manager struct {
	db    *sql.DB
	keys  *keymanager.Manager
	blobs *attachmentstore.Store
	log   logging.Logger

	// mu guards key. Every key-using operation holds the read lock from
	// key fetch through its last repository write (see withKey); a password
	// change takes the lock exclusively, so no encrypt or decrypt can
	// straddle the key swap and land old-key ciphertext after the rekey.
	mu  sync.RWMutex
	key []byte
}

// NewManager wires a Manager from its collaborators.
func NewManager(db *sql.DB, keys *keymanager.Manager, blobs *attachmentstore.Store, log logging.Logger) *Manager {
	return &Manager{db: db, keys: keys, blobs: blobs, log: log}
}

// IsInitialized reports whether a password has been set up.
func (m *Manager) IsInitialized() bool {
	return m.keys.IsInitialized()
}

// SetupPassword performs first-run setup and leaves the store unlocked.
func (m *Manager) SetupPassword(password []byte) error {
	key, err := m.keys.Setup(password)
	if err != nil {
		return err
	}
	m.adoptKey(key)
	return nil
}

// Unlock verifies the password and holds the derived key for the session.
func (m *Manager) Unlock(password []byte) error {
	key, err := m.keys.Unlock(password)
	if err != nil {
		return err
	}
	m.adoptKey(key)
	return nil
}

// AutoUnlock tries the wrapped key from the platform credential store.
// Returns keymanager.ErrNoWrappedKey when no usable entry exists, in which
// case the caller falls back to a password prompt.
func (m *Manager) AutoUnlock() error {
	key, err := m.keys.TryAutoUnlock()
	if err != nil {
		return err
	}
	m.adoptKey(key)
	return nil
}

// adoptKey installs the session key and settles any staged attachment blobs
// a crashed rekey left behind. A crash between the key-file replacement and
// the blob swap strands blobs under the old key; reconciling against the
// key that just unlocked finishes or discards the staging before anything
// reads an attachment.
func (m *Manager) adoptKey(key []byte) {
	m.setKey(key)
	ctx := context.Background()
	if err := m.blobs.ReconcileStaged(ctx, key); err != nil {
		m.log.Error(ctx, "staged attachment blobs not fully reconciled", "error", err)
	}
}

// Lock wipes the session key. Subsequent operations fail with
// common.ErrLocked until the next Unlock.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	common.WipeByteArray(m.key)
	m.key = nil
}

// Close releases session resources: wipes the key and removes the
// decrypted scratch copies the attachment store handed out.
func (m *Manager) Close() {
	m.Lock()
	m.blobs.Close()
}

// Attachments returns the attachment store for direct blob operations.
func (m *Manager) Attachments() *attachmentstore.Store {
	return m.blobs
}

func (m *Manager) setKey(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	common.WipeByteArray(m.key)
	m.key = key
}

// withKey runs fn with the session key while holding the read lock for the
// full call, or returns common.ErrLocked. Operations must do all their
// encrypting, decrypting, and persisting inside fn: only then is the
// "mutations exclude a password change" guarantee real. fn must not call
// another withKey operation (RLock is not reentrant under a waiting writer).
func (m *Manager) withKey(fn func(key []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == nil {
		return common.ErrLocked
	}
	return fn(m.key)
}

// encryptContent seals title and body separately so either can be replaced
// without re-sealing the other.
func encryptContent(key []byte, title, body string) ([]byte, []byte, error) {
	ct, err := cryptox.Encrypt(key, []byte(title))
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt title: %w", err)
	}
	cb, err := cryptox.Encrypt(key, []byte(body))
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt body: %w", err)
	}
	return ct, cb, nil
}

// decryptRecord converts an at-rest record to its plaintext form.
func decryptRecord(key []byte, rec *models.NoteRecord) (*models.Note, error) {
	title, err := cryptox.Decrypt(key, rec.Title)
	if err != nil {
		return nil, fmt.Errorf("note %s title: %w", rec.ID, err)
	}
	body, err := cryptox.Decrypt(key, rec.Body)
	if err != nil {
		return nil, fmt.Errorf("note %s body: %w", rec.ID, err)
	}

	return &models.Note{
		ID:            rec.ID,
		FolderID:      rec.FolderID,
		Title:         string(title),
		Body:          string(body),
		IsFavorite:    rec.IsFavorite,
		IsDeleted:     rec.IsDeleted,
		CreatedAt:     timex.FromCocoa(rec.CreatedAt),
		ModifiedAt:    timex.FromCocoa(rec.ModifiedAt),
		SyncRecordID:  rec.SyncRecordID,
		SyncChangeTag: rec.SyncChangeTag,
	}, nil
}

func nowCocoa() float64 {
	return timex.ToCocoa(time.Now().UTC())
}
