package keymanager

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"github.com/encnotes/mathnotes/internal/cryptox"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "com.encnotes.encryption"
	keyringUser    = "master_key"
)

// Keyring abstracts the platform credential store so tests can substitute
// an in-memory fake.
type Keyring interface {
	Set(service, user, value string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// SystemKeyring talks to the real platform credential store
// (Keychain/Secret Service/Credential Manager).
type SystemKeyring struct{}

func (SystemKeyring) Set(service, user, value string) error { return keyring.Set(service, user, value) }
func (SystemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}
func (SystemKeyring) Delete(service, user string) error { return keyring.Delete(service, user) }

// storeWrappedKey best-effort persists the derived key for unattended
// unlock on next launch. Failures are ignored: the keyring is an
// optimization, never a correctness requirement.
func (m *Manager) storeWrappedKey(key []byte) {
	if m.keyring == nil {
		return
	}
	_ = m.keyring.Set(keyringService, keyringUser, base64.StdEncoding.EncodeToString(key))
}

// ErrNoWrappedKey means the credential store holds no usable key.
var ErrNoWrappedKey = errors.New("no wrapped key available")

// TryAutoUnlock attempts an unattended unlock from the credential store.
// The recovered key is validated against the on-disk verifier, so a stale
// keyring entry from a previous password never unlocks the store.
func (m *Manager) TryAutoUnlock() ([]byte, error) {
	if m.keyring == nil {
		return nil, ErrNoWrappedKey
	}

	value, err := m.keyring.Get(keyringService, keyringUser)
	if err != nil || value == "" {
		return nil, ErrNoWrappedKey
	}

	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrNoWrappedKey
	}

	_, verifier, err := m.read()
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
		return nil, ErrNoWrappedKey
	}
	return key, nil
}

// ClearWrappedKey removes the wrapped key from the credential store, e.g.
// when the user locks the app explicitly.
func (m *Manager) ClearWrappedKey() {
	if m.keyring == nil {
		return
	}
	_ = m.keyring.Delete(keyringService, keyringUser)
}
