package notemanager

import (
	"context"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/dbx"
	"github.com/encnotes/mathnotes/internal/repositories/notes"
)

// ChangePassword re-encrypts the entire store under a key derived from the
// new password. The change is all-or-nothing:
//
//  1. attachment blobs are re-encrypted into staged sibling files, the live
//     blobs untouched;
//  2. every note row — trashed ones included — is re-encrypted inside a
//     single transaction;
//  3. only after both succeed is the key file replaced, the step that makes
//     the new password authoritative;
//  4. the staged blobs are swapped in.
//
// A failure in steps 1-3 rolls everything back and the old password keeps
// working. Step 4 failures are retried and, as a last resort, leave staged
// files on disk next to the data they replace.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	// Exclusive: nothing may decrypt while the key changes underneath it.
	m.mu.Lock()
	defer m.mu.Unlock()

	rk, err := m.keys.BeginRekey(oldPassword, newPassword)
	if err != nil {
		return err
	}

	if err := m.blobs.StageRekey(ctx, rk.OldKey, rk.NewKey); err != nil {
		m.blobs.DiscardRekey(ctx)
		return err
	}

	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := notes.NewSQLiteRepository(tx)
		recs, err := repo.ListAll(ctx)
		if err != nil {
			return err
		}
		for i := range recs {
			n, err := decryptRecord(rk.OldKey, &recs[i])
			if err != nil {
				return err
			}
			ct, cb, err := encryptContent(rk.NewKey, n.Title, n.Body)
			if err != nil {
				return err
			}
			if err := repo.ReplaceCiphertext(ctx, recs[i].ID, ct, cb); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.blobs.DiscardRekey(ctx)
		return err
	}

	if err := m.keys.Commit(rk); err != nil {
		m.blobs.DiscardRekey(ctx)
		return err
	}

	if err := m.blobs.CommitRekey(ctx); err != nil {
		m.log.Error(ctx, "blob swap incomplete after rekey", "error", err)
		return err
	}

	common.WipeByteArray(m.key)
	m.key = rk.NewKey
	m.log.Info(ctx, "password changed")
	return nil
}
