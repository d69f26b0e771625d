package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// AttachmentStore keeps entry attachments under one folder per employee.
// References are "<employee>/<uuid><ext>" relative to the storage root.
type AttachmentStore struct {
	files  port.FileStorage
	logger *zap.Logger
}

// NewAttachmentStore creates an attachment store over a file storage
func NewAttachmentStore(files port.FileStorage, logger *zap.Logger) *AttachmentStore {
	return &AttachmentStore{files: files, logger: logger}
}

// Put stores the content under a fresh name and returns its reference
func (s *AttachmentStore) Put(ctx context.Context, employeeCode, fileName string, content []byte) (string, error) {
	folder := SanitizeName(employeeCode)
	if folder == "" {
		return "", fmt.Errorf("invalid employee code for attachment: %q", employeeCode)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("attachment %q is empty", fileName)
	}

	ref := path.Join(folder, uuid.New().String()+extension(fileName))
	if err := s.files.Save(ctx, ref, content); err != nil {
		return "", err
	}

	s.logger.Info("Attachment stored",
		zap.String("employee_code", employeeCode),
		zap.String("file_name", fileName),
		zap.String("ref", ref))
	return ref, nil
}

// Get returns the content behind a reference
func (s *AttachmentStore) Get(ctx context.Context, ref string) ([]byte, error) {
	return s.files.Read(ctx, ref)
}

// Remove deletes the attachment behind a reference
func (s *AttachmentStore) Remove(ctx context.Context, ref string) error {
	return s.files.Delete(ctx, ref)
}

// SanitizeName strips everything but letters, digits, hyphens and underscores
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	return unsafeChars.ReplaceAllString(name, "")
}

func extension(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || SanitizeName(strings.TrimPrefix(ext, ".")) != strings.TrimPrefix(ext, ".") {
		return ""
	}
	return ext
}

// Verify interface compliance
var _ port.AttachmentStore = (*AttachmentStore)(nil)
