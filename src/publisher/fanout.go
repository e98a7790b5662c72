package publisher

import (
	"context"
	"sync"

	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/models"
)

// StatusFanout forwards status messages to every registered publisher.
type StatusFanout struct {
	mu      sync.RWMutex
	targets []interfaces.IStatusPublisher
}

// -----------------------------------------------------------------------------

func NewStatusFanout(targets ...interfaces.IStatusPublisher) *StatusFanout {
	return &StatusFanout{targets: targets}
}

// -----------------------------------------------------------------------------

func (f *StatusFanout) Add(target interfaces.IStatusPublisher) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (f *StatusFanout) Publish(ctx context.Context, msg models.MStatusMessage) {
	f.mu.RLock()
	targets := make([]interfaces.IStatusPublisher, len(f.targets))
	copy(targets, f.targets)
	f.mu.RUnlock()

	for _, t := range targets {
		t.Publish(ctx, msg)
	}
}
