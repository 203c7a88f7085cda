// Package common defines shared constants and sentinel errors used across
// mathnotes components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrAuthentication means the supplied password did not verify against
	// the stored key material (unlock/rekey).
	ErrAuthentication = errors.New("authentication failed")

	// ErrDecryption means stored ciphertext failed its authentication tag:
	// the data is corrupt, tampered with, or encrypted under a different key.
	// Distinct from a missing record.
	ErrDecryption = errors.New("decryption failed")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors (malformed caller input).
	ErrValidation = errors.New("validation error")

	// ErrStorage wraps underlying I/O failures (disk full, permissions).
	ErrStorage = errors.New("storage error")

	// ErrLocked means an operation requiring the master key was called
	// before a successful unlock.
	ErrLocked = errors.New("store is locked")
)
