package supervisor

import (
	"context"
	"errors"
	"fmt"

	"stocks-ngine/src/trace"
	"stocks-ngine/src/utils"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var errNoConnection = errors.New("no active broker connection")

// -----------------------------------------------------------------------------

// brokerQueueLoop drains the outbound FIFO against the current triple and runs
// the health check between drains.
func (m *StocksManager) brokerQueueLoop(ctx context.Context) {
	for ctx.Err() == nil {
		// 1. Execute pending actions in order; any failure forces a reconnect.
		// Nothing runs while a reset owns the queue.
		for ctx.Err() == nil && !m.resetting.Load() {
			act, ok := m.actions.TryPop()
			if !ok {
				break
			}
			if err := m.runAction(ctx, act); err != nil {
				m.ResetConnection(ctx, fmt.Sprintf("action '%s' failed: %v", act.Description, err))
			}
		}

		// 2. Health
		switch v := m.evaluateHealth(ctx); v.action {
		case healthQuiet:
			if utils.SleepContext(ctx, quietDelay) != nil {
				return
			}
			continue
		case healthReset:
			m.ResetConnection(ctx, v.reason)
		}

		if utils.SleepContext(ctx, idleDelay) != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------

// runAction executes one action, converting a panic into an error.
func (m *StocksManager) runAction(ctx context.Context, act BrokerAction) (err error) {
	conns := m.conns.Load()
	if conns == nil {
		return errNoConnection
	}

	ctx, span := trace.StartSpan(ctx, "broker.action",
		oteltrace.WithAttributes(attribute.String("description", act.Description)))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		trace.EndSpan(span, err)
	}()

	m.Logger.Debug("Executing %s", act.Description)
	return act.Action(ctx, conns)
}
