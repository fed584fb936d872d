package mqtt

import (
	"context"

	"github.com/farreladriann/slc-backend/core/model"
)

// Publisher delivers relay commands to terminals. Delivery is fire and
// forget: a nil error means the broker accepted the message, not that the
// relay switched.
type Publisher interface {
	PublishCommand(ctx context.Context, cmd model.Command) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, cmd model.Command) error

func (f PublisherFunc) PublishCommand(ctx context.Context, cmd model.Command) error {
	return f(ctx, cmd)
}
