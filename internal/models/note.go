// Package models defines the typed records the store persists. Records are
// explicit structs with named fields; nothing is passed around as loose
// key-value maps.
package models

import "time"

// Note is the decrypted, caller-facing form of a note.
type Note struct {
	// ID is a globally unique identifier, immutable for the note's
	// lifetime including soft-delete/restore cycles.
	ID string

	// FolderID references a Folder; nil means "All Notes".
	FolderID *string

	Title string
	// Body may contain encoded rich text and embedded formula markers;
	// the store treats it as opaque text.
	Body string

	IsFavorite bool
	// IsDeleted is the soft-delete flag. A deleted note stays in the
	// store until an explicit purge.
	IsDeleted bool

	CreatedAt  time.Time
	ModifiedAt time.Time

	// SyncRecordID and SyncChangeTag correlate the note to its last-known
	// remote representation. Both are nil until a successful push.
	SyncRecordID  *string
	SyncChangeTag *string
}

// NoteRecord is the at-rest form of a note: title and body hold AEAD
// ciphertext (nonce-prefixed), timestamps are Cocoa-epoch seconds.
// The content store persists these bytes as given and never sees plaintext.
type NoteRecord struct {
	ID       string
	FolderID *string

	Title []byte
	Body  []byte

	IsFavorite bool
	IsDeleted  bool

	CreatedAt  float64
	ModifiedAt float64

	SyncRecordID  *string
	SyncChangeTag *string
}
