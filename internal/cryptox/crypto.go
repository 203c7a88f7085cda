// Package cryptox implements the at-rest encryption primitives: AES-256-GCM
// over arbitrary byte payloads and PBKDF2 key derivation from a password.
// All functions are pure (no state, no I/O); callers own key handling.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"github.com/encnotes/mathnotes/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the per-installation KDF salt length in bytes.
	SaltSize = 32
	// Iterations is the PBKDF2 round count. Slow on purpose.
	Iterations = 100_000

	nonceSize = 12
)

// DeriveKey derives a fixed-length symmetric key from a password and salt
// using PBKDF2-HMAC-SHA256.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New)
}

// MakeVerifier returns a token stored alongside the salt so a later unlock
// can tell a wrong password apart from a corrupt store. It is a one-way
// digest of the derived key, never of the password itself.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// Encrypt seals plaintext under key with AES-256-GCM. A fresh random
// 12-byte nonce is generated per call and prepended to the returned blob,
// so the output is self-contained for Decrypt.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt. A truncated blob, a tampered
// ciphertext, or a wrong key all yield common.ErrDecryption so callers can
// distinguish bad data from missing data.
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", common.ErrDecryption)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}
