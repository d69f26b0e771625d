package port

import (
	"context"
	"io"

	"github.com/garyjia/ope-approval/internal/domain/entity"
)

// IdentityProvider turns a bearer credential into a verified employee code
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (string, error)
}

// DirectorySource reads an HRMS employee export
type DirectorySource interface {
	ReadEmployees(r io.Reader) ([]*entity.Employee, error)
}

// WorkQueueExporter renders a work queue as a downloadable document
type WorkQueueExporter interface {
	Export(status entity.QueueStatus, items []*entity.WorkQueueItem) ([]byte, error)
	ContentType() string
}
