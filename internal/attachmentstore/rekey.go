package attachmentstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/cryptox"
)

const stagedSuffix = ".new"

// StageRekey re-encrypts every blob under newKey into a staged sibling file
// (<blob>.new). The live blobs stay untouched, so a failure anywhere leaves
// the store fully usable under the old key; callers discard the staging on
// any error and commit it only after the rest of the rekey succeeded.
func (s *Store) StageRekey(ctx context.Context, oldKey, newKey []byte) error {
	rows, err := s.allBlobNames(ctx)
	if err != nil {
		return err
	}

	for _, name := range rows {
		path := filepath.Join(s.blobDir, name)
		ciphertext, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: read blob for rekey: %v", common.ErrStorage, err)
		}
		plaintext, err := cryptox.Decrypt(oldKey, ciphertext)
		if err != nil {
			return fmt.Errorf("blob %s: %w", name, err)
		}
		reencrypted, err := cryptox.Encrypt(newKey, plaintext)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path+stagedSuffix, reencrypted, 0o600); err != nil {
			return fmt.Errorf("%w: write staged blob: %v", common.ErrStorage, err)
		}
	}
	return nil
}

// CommitRekey replaces each live blob with its staged sibling. Renames are
// retried briefly; a blob whose rename keeps failing is reported but does
// not stop the rest, since the staged file remains on disk for manual
// recovery.
func (s *Store) CommitRekey(ctx context.Context) error {
	rows, err := s.allBlobNames(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, name := range rows {
		path := filepath.Join(s.blobDir, name)
		staged := path + stagedSuffix
		if _, err := os.Stat(staged); errors.Is(err, os.ErrNotExist) {
			continue
		}

		backoff := retry.WithMaxRetries(3, retry.NewConstant(100*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := os.Rename(staged, path); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			s.log.Error(ctx, "failed to swap rekeyed blob", "path", path, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: swap rekeyed blob %s: %v", common.ErrStorage, name, err)
			}
		}
	}
	return firstErr
}

// ReconcileStaged finishes or discards staged blobs a crashed rekey left
// behind, judged against the key that just unlocked the store:
//
//   - live blob decrypts under key: the rekey never became authoritative
//     (or this blob was already swapped), so the staged sibling is stale
//     and removed;
//   - only the staged blob decrypts: the key file was replaced but the
//     crash hit before the swap, so the staged file is renamed into place;
//   - neither decrypts: the staged file is junk and removed, the live blob
//     left for CleanupOrphaned or manual recovery.
//
// Called once per unlock, before any attachment is read.
func (s *Store) ReconcileStaged(ctx context.Context, key []byte) error {
	matches, err := filepath.Glob(filepath.Join(s.blobDir, "*"+stagedSuffix))
	if err != nil {
		return fmt.Errorf("%w: scan staged blobs: %v", common.ErrStorage, err)
	}

	for _, staged := range matches {
		live := staged[:len(staged)-len(stagedSuffix)]

		if blobDecrypts(live, key) {
			if err := os.Remove(staged); err != nil {
				s.log.Warn(ctx, "failed to remove stale staged blob", "path", staged, "error", err)
			}
			continue
		}

		if blobDecrypts(staged, key) {
			if err := os.Rename(staged, live); err != nil {
				return fmt.Errorf("%w: finish interrupted blob swap %s: %v", common.ErrStorage, filepath.Base(live), err)
			}
			s.log.Warn(ctx, "finished interrupted blob swap", "path", live)
			continue
		}

		s.log.Warn(ctx, "removing staged blob unreadable under the active key", "path", staged)
		if err := os.Remove(staged); err != nil {
			s.log.Warn(ctx, "failed to remove staged blob", "path", staged, "error", err)
		}
	}
	return nil
}

func blobDecrypts(path string, key []byte) bool {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	_, err = cryptox.Decrypt(key, ciphertext)
	return err == nil
}

// DiscardRekey removes any staged blobs from an abandoned rekey.
func (s *Store) DiscardRekey(ctx context.Context) {
	matches, err := filepath.Glob(filepath.Join(s.blobDir, "*"+stagedSuffix))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			s.log.Warn(ctx, "failed to remove staged blob", "path", path, "error", err)
		}
	}
}

func (s *Store) allBlobNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blob_name FROM attachments ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select blob names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
