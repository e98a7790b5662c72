package supervisor

import (
	"context"

	"stocks-ngine/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------

// prepareConnection replaces the connection triple. Old connections are
// unsubscribed and closed; close errors are logged and otherwise ignored.
// Nothing is opened once the manager has been stopped.
func (m *StocksManager) prepareConnection(ctx context.Context) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if rs := m.run.Load(); rs != nil && rs.ctx.Err() != nil {
		m.Logger.Debug("Manager stopped, not opening broker connections")
		return
	}

	// 1. Tear down the previous triple
	m.detachConnections()

	// 2. Open a fresh triple with the current credential
	token := m.settings.APIToken()
	conns := &Connections{
		Common:         m.factory.NewConnection(token),
		Candle:         m.factory.NewConnection(token),
		InstrumentInfo: m.factory.NewConnection(token),
	}

	// Events from a triple that is no longer current are dropped
	handler := func(event models.MStreamEvent) {
		if m.conns.Load() == conns {
			m.onStreamEvent(event)
		}
	}
	m.conns.Store(conns)
	for _, c := range conns.all() {
		c.SetEventHandler(handler)
	}

	// 3. The backfill loop outlives resets
	m.startStatsLoop()

	now := m.Clock.Now()
	m.lastRestart.Store(now.UnixNano())
	sessionID := uuid.NewString()
	m.sessionID.Store(sessionID)

	m.Logger.Info("Broker connections prepared (session %s)", sessionID)
	m.publish(ctx, models.MConnectionStateMessage{
		State:     models.ConnectionStateConnected,
		SessionID: sessionID,
		Timestamp: now,
	})
}

// -----------------------------------------------------------------------------

// detachConnections clears the current triple so that its events are dropped
// and actions find no connection, then closes it.
func (m *StocksManager) detachConnections() {
	if old := m.conns.Swap(nil); old != nil {
		m.events.Clear()
		m.disposeConnections(old)
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) disposeConnections(conns *Connections) {
	for _, c := range conns.all() {
		if c == nil {
			continue
		}
		c.SetEventHandler(nil)
		if err := c.Close(); err != nil {
			m.Logger.Warning("Failed to close broker connection: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

// ResetConnection drops all pending work and subscriptions, waits out the cooldown
// and reconnects from scratch. Concurrent calls collapse into the one in flight.
// Only shutdown interrupts the cooldown.
func (m *StocksManager) ResetConnection(ctx context.Context, reason string) {
	if !m.resetting.CompareAndSwap(false, true) {
		m.Logger.Debug("Reset already in progress, ignoring: %s", reason)
		return
	}
	defer m.resetting.Store(false)

	ctx, cancel := m.lifetime(ctx)
	defer cancel()

	m.logError("Reconnecting: " + reason)
	m.publish(ctx, models.MConnectionStateMessage{
		State:     models.ConnectionStateResetting,
		Reason:    reason,
		SessionID: m.SessionID(),
		Timestamp: m.Clock.Now(),
	})

	// 1. Forget everything tied to the old triple; its late events are dropped
	m.connMu.Lock()
	m.detachConnections()
	m.connMu.Unlock()
	m.lastEvent.Store(0)
	dropped := m.events.Clear()
	discarded := m.clearSubscriptionState()
	m.Logger.Debug("Reset dropped %d inbound events and %d pending actions", dropped, discarded)

	// 2. Cooldown
	if err := m.Sleep(ctx, m.t.resetCooldown); err != nil {
		m.Logger.Info("Reset interrupted during cooldown: %v", err)
		return
	}

	// 3. Work queued during the cooldown belongs to no connection
	m.events.Clear()
	m.clearSubscriptionState()

	// 4. Reconnect and subscribe everything again
	m.prepareConnection(ctx)
	if m.conns.Load() == nil {
		return
	}
	if len(m.registry.Instruments()) == 0 {
		if err := m.UpdateStocks(ctx); err != nil {
			m.Logger.Warning("Instrument reload after reset failed: %v", err)
		}
		return
	}
	if err := m.UpdatePrices(ctx); err != nil {
		m.Logger.Warning("Resubscription interrupted: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) clearSubscriptionState() int {
	discarded := m.actions.Clear()
	m.daySubscribed.Clear()
	m.minuteSubscribed.Clear()
	return discarded
}
