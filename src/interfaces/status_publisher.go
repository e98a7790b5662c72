package interfaces

import (
	"context"

	"stocks-ngine/src/models"
)

// -----------------------------------------------------------------------------
// IStatusPublisher accepts informational status messages. Publish must not block.
// -----------------------------------------------------------------------------

type IStatusPublisher interface {
	Publish(ctx context.Context, msg models.MStatusMessage)
}

// -----------------------------------------------------------------------------
// ISettingsProvider exposes the broker credential; it is read once per reset.
// -----------------------------------------------------------------------------

type ISettingsProvider interface {
	APIToken() string
}
