package models

import "time"

// Attachment describes one deduplicated encrypted blob. ContentHash is the
// SHA-256 digest of the plaintext bytes; at most one attachment row exists
// per hash, and the blob is removed only once NoteIDs is empty.
type Attachment struct {
	ID string

	ContentHash string
	// BlobName is the file name of the encrypted bytes inside the
	// attachment directory.
	BlobName string

	OriginalName string
	SizeBytes    int64

	// NoteIDs is the set of notes currently referencing this attachment.
	NoteIDs []string

	CreatedAt time.Time
}
