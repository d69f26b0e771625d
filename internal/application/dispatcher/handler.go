package dispatcher

import (
	"context"

	"github.com/garyjia/ope-approval/internal/domain/event"
)

// Handler reacts to a chain event
type Handler func(ctx context.Context, evt *event.Event) error

// subscription pairs a handler with the name it was registered under
type subscription struct {
	name    string
	handler Handler
}
