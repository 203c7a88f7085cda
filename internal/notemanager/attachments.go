package notemanager

import (
	"context"

	"github.com/encnotes/mathnotes/internal/models"
)

// AddAttachment encrypts the file at srcPath and attaches it to a note,
// deduplicating by plaintext content.
func (m *Manager) AddAttachment(ctx context.Context, noteID, srcPath string) (*models.Attachment, error) {
	var att *models.Attachment
	err := m.withKey(func(key []byte) error {
		var err error
		att, err = m.blobs.Add(ctx, key, noteID, srcPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// OpenAttachment decrypts an attachment into a scratch file and returns
// its path. The copy lives until Close.
func (m *Manager) OpenAttachment(ctx context.Context, attachmentID string) (string, error) {
	var path string
	err := m.withKey(func(key []byte) error {
		var err error
		path, err = m.blobs.Open(ctx, key, attachmentID)
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// ExportAttachment decrypts an attachment to a caller-chosen path.
func (m *Manager) ExportAttachment(ctx context.Context, attachmentID, destPath string) error {
	return m.withKey(func(key []byte) error {
		return m.blobs.Export(ctx, key, attachmentID, destPath)
	})
}

// ListAttachments returns the attachments of one note.
func (m *Manager) ListAttachments(ctx context.Context, noteID string) ([]models.Attachment, error) {
	return m.blobs.ListForNote(ctx, noteID)
}

// RemoveAttachment detaches an attachment from a note; the blob disappears
// with its last reference.
func (m *Manager) RemoveAttachment(ctx context.Context, attachmentID, noteID string) error {
	return m.blobs.RemoveAssociation(ctx, attachmentID, noteID)
}
