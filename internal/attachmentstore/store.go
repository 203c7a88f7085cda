// Package attachmentstore manages encrypted attachment blobs on disk,
// deduplicated by plaintext content hash. Metadata rows live in SQLite
// (internal/repositories/attachments); the ciphertext bytes live as files
// in a dedicated blob directory. A blob is written once per unique content
// and removed only when the last referencing note lets go of it.
package attachmentstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/cryptox"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/logging"
	"github.com/encnotes/mathnotes/internal/models"
	"github.com/encnotes/mathnotes/internal/repositories/attachments"
)

// TempFilePrefix marks decrypted scratch copies handed out by Open. Files
// with this prefix in the temp directory are safe to remove at startup:
// they only ever hold plaintext from a previous session.
const TempFilePrefix = "mathnotes_temp_"

// addRaceHook, when set, runs after the dedup lookup misses and before the
// metadata insert. Tests use it to wedge a competing Add into that gap.
var addRaceHook func()

// Store coordinates blob files and attachment metadata.
type Store struct {
	db      *sql.DB
	blobDir string
	tempDir string
	log     logging.Logger

	mu     sync.Mutex
	opened map[string]string // attachment id -> temp path handed out this session
}

// Option configures a Store.
type Option func(*Store)

// WithTempDir overrides the directory used for decrypted scratch copies.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *Store) { s.tempDir = dir }
}

// New creates the blob directory if needed and sweeps any decrypted scratch
// files a crashed previous session may have left behind.
func New(db *sql.DB, blobDir string, log logging.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		blobDir: blobDir,
		tempDir: os.TempDir(),
		log:     log,
		opened:  make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}

	if err := os.MkdirAll(s.blobDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create blob dir: %v", common.ErrStorage, err)
	}

	s.sweepTempFiles(context.Background())
	return s, nil
}

// Add stores the file at srcPath as an attachment of noteID. If an
// attachment with the same plaintext hash already exists, no new blob is
// written; the note is just linked to the existing attachment.
func (s *Store) Add(ctx context.Context, key []byte, noteID, srcPath string) (*models.Attachment, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read attachment source: %v", common.ErrStorage, err)
	}

	digest := sha256.Sum256(data)
	contentHash := hex.EncodeToString(digest[:])

	repo := attachments.NewSQLiteRepository(s.db)
	existing, err := repo.GetByHash(ctx, contentHash)
	if err == nil {
		if err := repo.AddNoteRef(ctx, existing.ID, noteID); err != nil {
			return nil, err
		}
		s.log.Debug(ctx, "attachment deduplicated", "id", existing.ID, "note", noteID)
		return repo.GetByID(ctx, existing.ID)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if addRaceHook != nil {
		addRaceHook()
	}

	a := &models.Attachment{
		ID:           uuid.NewString(),
		ContentHash:  contentHash,
		OriginalName: filepath.Base(srcPath),
		SizeBytes:    int64(len(data)),
		CreatedAt:    time.Now().UTC(),
	}
	a.BlobName = a.ID + ".enc"

	ciphertext, err := cryptox.Encrypt(key, data)
	if err != nil {
		return nil, err
	}
	blobPath := filepath.Join(s.blobDir, a.BlobName)
	if err := os.WriteFile(blobPath, ciphertext, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write blob: %v", common.ErrStorage, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := attachments.NewSQLiteRepository(tx)
		if err := txRepo.Insert(ctx, a); err != nil {
			return err
		}
		return txRepo.AddNoteRef(ctx, a.ID, noteID)
	})
	if err != nil {
		// The row never landed, so the blob must not survive either.
		_ = os.Remove(blobPath)

		// A concurrent Add of the same content may have won the unique
		// hash index between our lookup and the insert. Re-check and fold
		// into the winner's row instead of surfacing the constraint error.
		winner, lookupErr := repo.GetByHash(ctx, contentHash)
		if lookupErr != nil {
			return nil, err
		}
		if refErr := repo.AddNoteRef(ctx, winner.ID, noteID); refErr != nil {
			return nil, refErr
		}
		s.log.Debug(ctx, "attachment deduplicated after insert race", "id", winner.ID, "note", noteID)
		return repo.GetByID(ctx, winner.ID)
	}

	s.log.Info(ctx, "attachment stored", "id", a.ID, "size", a.SizeBytes)
	a.NoteIDs = []string{noteID}
	return a, nil
}

// Open decrypts the attachment into a scratch file in the temp directory
// and returns its path. The file is overwritten if a copy from this or a
// previous call already exists, and removed again on Close.
func (s *Store) Open(ctx context.Context, key []byte, attachmentID string) (string, error) {
	repo := attachments.NewSQLiteRepository(s.db)
	a, err := repo.GetByID(ctx, attachmentID)
	if err != nil {
		return "", err
	}

	plaintext, err := s.readBlob(key, a)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.tempDir, TempFilePrefix+a.ID+"_"+a.OriginalName)
	if err := os.WriteFile(path, plaintext, 0o600); err != nil {
		return "", fmt.Errorf("%w: write temp copy: %v", common.ErrStorage, err)
	}

	s.mu.Lock()
	s.opened[a.ID] = path
	s.mu.Unlock()
	return path, nil
}

// Export decrypts the attachment to destPath, outside the scratch registry.
func (s *Store) Export(ctx context.Context, key []byte, attachmentID, destPath string) error {
	repo := attachments.NewSQLiteRepository(s.db)
	a, err := repo.GetByID(ctx, attachmentID)
	if err != nil {
		return err
	}

	plaintext, err := s.readBlob(key, a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(destPath, plaintext, 0o600); err != nil {
		return fmt.Errorf("%w: write export: %v", common.ErrStorage, err)
	}
	return nil
}

// ListForNote returns the attachments referenced by a note.
func (s *Store) ListForNote(ctx context.Context, noteID string) ([]models.Attachment, error) {
	return attachments.NewSQLiteRepository(s.db).ForNote(ctx, noteID)
}

// RemoveAssociation detaches noteID from the attachment. When the last
// reference goes away the metadata row is deleted and the blob unlinked.
// A failed unlink is logged, not fatal: CleanupOrphaned will retry later.
func (s *Store) RemoveAssociation(ctx context.Context, attachmentID, noteID string) error {
	var blobName string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := attachments.NewSQLiteRepository(tx)
		if err := repo.RemoveNoteRef(ctx, attachmentID, noteID); err != nil {
			return err
		}
		a, err := repo.GetByID(ctx, attachmentID)
		if err != nil {
			return err
		}
		if len(a.NoteIDs) > 0 {
			return nil
		}
		blobName = a.BlobName
		return repo.Delete(ctx, attachmentID)
	})
	if err != nil {
		return err
	}

	if blobName != "" {
		s.removeBlobFile(ctx, blobName)
	}
	return nil
}

// RemoveAllForNote detaches every attachment from noteID (the purge
// cascade) and unlinks blobs that became orphaned.
func (s *Store) RemoveAllForNote(ctx context.Context, noteID string) error {
	var blobNames []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := attachments.NewSQLiteRepository(tx)
		affected, err := repo.RemoveAllRefsForNote(ctx, noteID)
		if err != nil {
			return err
		}
		for _, id := range affected {
			a, err := repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if len(a.NoteIDs) > 0 {
				continue
			}
			if err := repo.Delete(ctx, id); err != nil {
				return err
			}
			blobNames = append(blobNames, a.BlobName)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, name := range blobNames {
		s.removeBlobFile(ctx, name)
	}
	return nil
}

// CleanupOrphaned deletes attachments no note references anymore, retrying
// blob unlinks briefly in case another process still holds the file open.
// Returns how many attachments were removed.
func (s *Store) CleanupOrphaned(ctx context.Context) (int, error) {
	repo := attachments.NewSQLiteRepository(s.db)
	orphans, err := repo.Orphans(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, a := range orphans {
		if err := repo.Delete(ctx, a.ID); err != nil {
			return removed, err
		}

		path := filepath.Join(s.blobDir, a.BlobName)
		backoff := retry.WithMaxRetries(3, retry.NewConstant(100*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			s.log.Warn(ctx, "orphaned blob left on disk", "path", path, "error", err)
		}
		removed++
	}
	return removed, nil
}

// Close removes the decrypted scratch copies handed out during this session.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, path := range s.opened {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn(context.Background(), "failed to remove temp copy", "path", path, "error", err)
		}
		delete(s.opened, id)
	}
}

func (s *Store) readBlob(key []byte, a *models.Attachment) ([]byte, error) {
	ciphertext, err := os.ReadFile(filepath.Join(s.blobDir, a.BlobName))
	if err != nil {
		return nil, fmt.Errorf("%w: read blob: %v", common.ErrStorage, err)
	}
	return cryptox.Decrypt(key, ciphertext)
}

func (s *Store) removeBlobFile(ctx context.Context, blobName string) {
	path := filepath.Join(s.blobDir, blobName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn(ctx, "failed to remove blob", "path", path, "error", err)
	}
}

// sweepTempFiles removes scratch copies left over from earlier sessions.
func (s *Store) sweepTempFiles(ctx context.Context) {
	matches, err := filepath.Glob(filepath.Join(s.tempDir, TempFilePrefix+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			s.log.Warn(ctx, "failed to sweep stale temp file", "path", path, "error", err)
			continue
		}
		s.log.Debug(ctx, "removed stale temp file", "path", path)
	}
}
