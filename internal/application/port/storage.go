package port

import "context"

// FileStorage defines file storage operations relative to a root directory
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// AttachmentStore keeps attachment bytes and hands back an opaque reference
type AttachmentStore interface {
	Put(ctx context.Context, employeeCode, fileName string, content []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Remove(ctx context.Context, ref string) error
}
