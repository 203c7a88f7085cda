// Package keymanager owns the master-key lifecycle: first-run setup,
// password unlock, re-keying, and the salt/verifier sidecar file. The
// derived key itself is never written to disk except, optionally, wrapped
// into the platform credential store for unattended unlock.
package keymanager

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/cryptox"
)

// keyFile is the persisted form of the salt/verifier pair.
type keyFile struct {
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

// Manager derives and verifies the master key against a key file on disk.
type Manager struct {
	path    string
	keyring Keyring
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeyring enables wrapped-key persistence in a platform credential
// store. Purely an optimization: every flow works with password-only
// unlock when the keyring is absent or failing.
func WithKeyring(k Keyring) Option {
	return func(m *Manager) { m.keyring = k }
}

// New returns a Manager using the given key file path.
func New(path string, opts ...Option) *Manager {
	m := &Manager{path: path}
	for _, o := range opts {
		o(m)
	}
	return m
}

// IsInitialized reports whether a key file exists, i.e. a password has been
// set up before.
func (m *Manager) IsInitialized() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Setup performs first-run password setup: generates a random salt, derives
// the master key, and persists salt plus verifier. Fails if a key file
// already exists.
func (m *Manager) Setup(password []byte) ([]byte, error) {
	if m.IsInitialized() {
		return nil, fmt.Errorf("%w: password already set", common.ErrValidation)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: empty password", common.ErrValidation)
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key := cryptox.DeriveKey(password, salt)
	verifier := cryptox.MakeVerifier(key)

	if err := m.write(salt, verifier); err != nil {
		return nil, err
	}

	m.storeWrappedKey(key)
	return key, nil
}

// Unlock derives the key from password and the stored salt and checks it
// against the stored verifier. A mismatch yields common.ErrAuthentication;
// a missing or unreadable key file is a storage error, not a wrong password.
func (m *Manager) Unlock(password []byte) ([]byte, error) {
	salt, verifier, err := m.read()
	if err != nil {
		return nil, err
	}

	key := cryptox.DeriveKey(password, salt)
	candidate := cryptox.MakeVerifier(key)

	if subtle.ConstantTimeCompare(verifier, candidate) == 0 {
		return nil, common.ErrAuthentication
	}

	m.storeWrappedKey(key)
	return key, nil
}

// Rekey holds both keys of an in-flight password change. The new salt and
// verifier are not persisted until Commit; abandoning the value leaves the
// old password fully active.
type Rekey struct {
	OldKey []byte
	NewKey []byte

	newSalt     []byte
	newVerifier []byte
}

// BeginRekey verifies the old password and derives the replacement key
// under a fresh salt. The caller must re-encrypt every note and attachment
// under NewKey and only then call Commit; on any failure it simply drops
// the Rekey value.
func (m *Manager) BeginRekey(oldPassword, newPassword []byte) (*Rekey, error) {
	oldKey, err := m.Unlock(oldPassword)
	if err != nil {
		if errors.Is(err, common.ErrAuthentication) {
			return nil, fmt.Errorf("old password: %w", common.ErrAuthentication)
		}
		return nil, err
	}
	if len(newPassword) == 0 {
		return nil, fmt.Errorf("%w: empty new password", common.ErrValidation)
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	newKey := cryptox.DeriveKey(newPassword, salt)

	return &Rekey{
		OldKey:      oldKey,
		NewKey:      newKey,
		newSalt:     salt,
		newVerifier: cryptox.MakeVerifier(newKey),
	}, nil
}

// Commit finalizes a password change by atomically replacing the key file.
// After Commit the old password no longer unlocks the store.
func (m *Manager) Commit(r *Rekey) error {
	if err := m.write(r.newSalt, r.newVerifier); err != nil {
		return err
	}
	m.storeWrappedKey(r.NewKey)
	return nil
}

func (m *Manager) read() ([]byte, []byte, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read key file: %v", common.ErrStorage, err)
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, nil, fmt.Errorf("%w: parse key file: %v", common.ErrStorage, err)
	}

	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode salt: %v", common.ErrStorage, err)
	}
	verifier, err := base64.StdEncoding.DecodeString(kf.Verifier)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode verifier: %v", common.ErrStorage, err)
	}
	return salt, verifier, nil
}

// write persists the key file via write-temp-then-rename so a torn write
// never corrupts the active salt/verifier.
func (m *Manager) write(salt, verifier []byte) error {
	kf := keyFile{
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Verifier: base64.StdEncoding.EncodeToString(verifier),
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("%w: create key dir: %v", common.ErrStorage, err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write key file: %v", common.ErrStorage, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace key file: %v", common.ErrStorage, err)
	}
	return nil
}
