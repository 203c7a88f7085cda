package keymanager

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyring struct {
	values map[string]string
	fail   bool
}

func newFakeKeyring() *fakeKeyring {
	return &fakeKeyring{values: make(map[string]string)}
}

func (f *fakeKeyring) Set(service, user, value string) error {
	if f.fail {
		return errors.New("keyring unavailable")
	}
	f.values[service+"/"+user] = value
	return nil
}

func (f *fakeKeyring) Get(service, user string) (string, error) {
	if f.fail {
		return "", errors.New("keyring unavailable")
	}
	v, ok := f.values[service+"/"+user]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (f *fakeKeyring) Delete(service, user string) error {
	delete(f.values, service+"/"+user)
	return nil
}

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "keyfile.json"), opts...)
}

func TestSetupAndUnlock(t *testing.T) {
	m := newManager(t)
	require.False(t, m.IsInitialized())

	key, err := m.Setup([]byte("hunter2"))
	require.NoError(t, err)
	require.Len(t, key, cryptox.KeySize)
	require.True(t, m.IsInitialized())

	got, err := m.Unlock([]byte("hunter2"))
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestUnlock_WrongPassword(t *testing.T) {
	m := newManager(t)
	_, err := m.Setup([]byte("hunter2"))
	require.NoError(t, err)

	_, err = m.Unlock([]byte("hunter3"))
	require.ErrorIs(t, err, common.ErrAuthentication)
}

func TestUnlock_MissingKeyFileIsStorageError(t *testing.T) {
	m := newManager(t)
	_, err := m.Unlock([]byte("whatever"))
	require.ErrorIs(t, err, common.ErrStorage)
	require.NotErrorIs(t, err, common.ErrAuthentication)
}

func TestSetup_Twice(t *testing.T) {
	m := newManager(t)
	_, err := m.Setup([]byte("hunter2"))
	require.NoError(t, err)

	_, err = m.Setup([]byte("other"))
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestSetup_EmptyPassword(t *testing.T) {
	m := newManager(t)
	_, err := m.Setup(nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestRekey_CommitSwitchesPassword(t *testing.T) {
	m := newManager(t)
	oldKey, err := m.Setup([]byte("old-pass"))
	require.NoError(t, err)

	r, err := m.BeginRekey([]byte("old-pass"), []byte("new-pass"))
	require.NoError(t, err)
	assert.Equal(t, oldKey, r.OldKey)
	assert.NotEqual(t, r.OldKey, r.NewKey)

	// Old password still works before Commit.
	_, err = m.Unlock([]byte("old-pass"))
	require.NoError(t, err)

	require.NoError(t, m.Commit(r))

	got, err := m.Unlock([]byte("new-pass"))
	require.NoError(t, err)
	assert.Equal(t, r.NewKey, got)

	_, err = m.Unlock([]byte("old-pass"))
	require.ErrorIs(t, err, common.ErrAuthentication)
}

func TestRekey_AbandonedKeepsOldPassword(t *testing.T) {
	m := newManager(t)
	_, err := m.Setup([]byte("old-pass"))
	require.NoError(t, err)

	_, err = m.BeginRekey([]byte("old-pass"), []byte("new-pass"))
	require.NoError(t, err)
	// No Commit.

	_, err = m.Unlock([]byte("old-pass"))
	require.NoError(t, err)
	_, err = m.Unlock([]byte("new-pass"))
	require.ErrorIs(t, err, common.ErrAuthentication)
}

func TestRekey_WrongOldPassword(t *testing.T) {
	m := newManager(t)
	_, err := m.Setup([]byte("old-pass"))
	require.NoError(t, err)

	_, err = m.BeginRekey([]byte("nope"), []byte("new-pass"))
	require.ErrorIs(t, err, common.ErrAuthentication)
}

func TestTryAutoUnlock(t *testing.T) {
	kr := newFakeKeyring()
	m := newManager(t, WithKeyring(kr))

	key, err := m.Setup([]byte("hunter2"))
	require.NoError(t, err)

	got, err := m.TryAutoUnlock()
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestTryAutoUnlock_StaleEntryRejected(t *testing.T) {
	kr := newFakeKeyring()
	m := newManager(t, WithKeyring(kr))

	oldKey, err := m.Setup([]byte("old-pass"))
	require.NoError(t, err)

	r, err := m.BeginRekey([]byte("old-pass"), []byte("new-pass"))
	require.NoError(t, err)
	require.NoError(t, m.Commit(r))

	// Put the pre-rekey wrapped key back, simulating a credential store
	// that missed the update. It must not unlock the re-keyed store.
	m.storeWrappedKey(oldKey)

	_, err = m.TryAutoUnlock()
	require.ErrorIs(t, err, ErrNoWrappedKey)
}

func TestTryAutoUnlock_NoKeyring(t *testing.T) {
	m := newManager(t)
	_, err := m.TryAutoUnlock()
	require.ErrorIs(t, err, ErrNoWrappedKey)
}

func TestKeyringFailureDegradesGracefully(t *testing.T) {
	kr := newFakeKeyring()
	kr.fail = true
	m := newManager(t, WithKeyring(kr))

	// Setup and unlock still succeed with a broken keyring.
	_, err := m.Setup([]byte("hunter2"))
	require.NoError(t, err)
	_, err = m.Unlock([]byte("hunter2"))
	require.NoError(t, err)

	_, err = m.TryAutoUnlock()
	require.ErrorIs(t, err, ErrNoWrappedKey)
}
