package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stocks-ngine/src/analysis"
	"stocks-ngine/src/helpers"
	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/utils"

	"golang.org/x/sync/errgroup"
)

const (
	idleDelay       = 100 * time.Millisecond
	quietDelay      = time.Second
	statsPollPeriod = 100 * time.Millisecond
)

// Collaborators are the services the supervisor drives.
// Store and Publisher are optional.
type Collaborators struct {
	Registry  interfaces.IInstrumentRegistry
	Notifier  interfaces.IUpdateNotifier
	Publisher interfaces.IStatusPublisher
	Settings  interfaces.ISettingsProvider
	Factory   interfaces.IConnectionFactory
	Store     interfaces.IDatabase
}

// timings holds the durations and limits read from config.
type timings struct {
	resetCooldown     time.Duration
	gracePeriod       time.Duration
	inactivity        time.Duration
	minUpdated        int
	workers           int
	subscriptionBatch int
	subscriptionPause time.Duration
	orderbookDepth    int
	rescanInterval    time.Duration
	rescanBatch       int
	retryDelay        time.Duration
	retention         time.Duration
}

type runState struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// -----------------------------------------------------------------------------

// StocksManager supervises the broker connection triple and the loops around it:
// the outbound action dispatcher with its health check, the inbound event workers
// and the month-stats backfill.
type StocksManager struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Scheduler *utils.MarketScheduler
	Analyzer  *analysis.MonthStatsAnalyzer
	Clock     utils.Clock
	// Sleep waits for the reset cooldown, subscription pauses and fetch retries.
	Sleep func(ctx context.Context, d time.Duration) error

	registry  interfaces.IInstrumentRegistry
	notifier  interfaces.IUpdateNotifier
	publisher interfaces.IStatusPublisher
	settings  interfaces.ISettingsProvider
	factory   interfaces.IConnectionFactory
	store     interfaces.IDatabase

	t timings

	connMu     sync.Mutex // serializes replacing and detaching the triple
	conns      atomic.Pointer[Connections]
	actions    *utils.Queue[BrokerAction]
	events     *utils.Queue[inboundItem]
	statsQueue *utils.SetQueue[string, *models.MInstrument]

	daySubscribed    *utils.StringSet
	minuteSubscribed *utils.StringSet

	orderbooksMu sync.RWMutex
	orderbooks   map[string]models.MOrderbook

	lastEvent    atomic.Int64 // unix nanos, 0 when nothing arrived since the last reset
	lastRestart  atomic.Int64
	resetting    atomic.Bool
	apiCalls     atomic.Int64
	sessionID    atomic.Value // string
	statsRunning atomic.Bool

	initMu sync.Mutex
	run    atomic.Pointer[runState]
}

// -----------------------------------------------------------------------------

func NewStocksManager(cfg *models.MConfig, c Collaborators, log *logger.Logger) (*StocksManager, error) {
	scheduler, err := utils.NewMarketScheduler(
		cfg.Supervisor.ExchangeMIC,
		cfg.Supervisor.Timezone,
		cfg.Supervisor.QuietWindowStart,
		cfg.Supervisor.QuietWindowEnd,
		log,
	)
	if err != nil {
		return nil, helpers.NewConfigurationError("market scheduler", err)
	}

	m := &StocksManager{
		Config:    cfg,
		Logger:    log,
		Scheduler: scheduler,
		Analyzer:  analysis.NewMonthStatsAnalyzer(log),
		Clock:     utils.SystemClock{},
		Sleep:     utils.SleepContext,

		registry:  c.Registry,
		notifier:  c.Notifier,
		publisher: c.Publisher,
		settings:  c.Settings,
		factory:   c.Factory,
		store:     c.Store,

		t: timingsFromConfig(cfg),

		actions:          utils.NewQueue[BrokerAction](),
		events:           utils.NewQueue[inboundItem](),
		statsQueue:       utils.NewSetQueue[string, *models.MInstrument](),
		daySubscribed:    utils.NewStringSet(),
		minuteSubscribed: utils.NewStringSet(),
		orderbooks:       make(map[string]models.MOrderbook),
	}
	m.sessionID.Store("")
	return m, nil
}

// -----------------------------------------------------------------------------

func timingsFromConfig(cfg *models.MConfig) timings {
	s, ms := cfg.Supervisor, cfg.MonthStats
	return timings{
		resetCooldown:     seconds(s.ResetCooldownSeconds, 10),
		gracePeriod:       seconds(s.GracePeriodSeconds, 10),
		inactivity:        seconds(s.InactivitySeconds, 5),
		minUpdated:        orDefault(s.MinUpdatedInstruments, 10),
		workers:           orDefault(s.ResponseWorkers, 1),
		subscriptionBatch: orDefault(s.SubscriptionBatch, 100),
		subscriptionPause: millis(s.SubscriptionPauseMs, 1000),
		orderbookDepth:    orDefault(cfg.Broker.OrderbookDepth, 5),
		rescanInterval:    seconds(ms.RescanIntervalSeconds, 31),
		rescanBatch:       orDefault(ms.RescanBatch, 30),
		retryDelay:        millis(ms.RetryDelayMs, 500),
		retention:         time.Duration(orDefault(ms.RetentionDays, utils.DefaultRetentionDays)) * 24 * time.Hour,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func seconds(v, def int) time.Duration { return time.Duration(orDefault(v, def)) * time.Second }
func millis(v, def int) time.Duration  { return time.Duration(orDefault(v, def)) * time.Millisecond }

// -----------------------------------------------------------------------------

// Init opens the connection triple and starts the loops. Calling it again is a no-op.
func (m *StocksManager) Init(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.run.Load() != nil {
		return nil
	}

	// 1. Nothing works without a credential
	if m.settings == nil || m.settings.APIToken() == "" {
		return helpers.NewConfigurationError("broker api token is not configured", nil)
	}

	// 2. Loop lifecycle
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	m.run.Store(&runState{ctx: groupCtx, cancel: cancel, group: group})

	// 3. Connections, then the consumers
	m.prepareConnection(groupCtx)

	group.Go(func() error {
		m.brokerQueueLoop(groupCtx)
		return nil
	})
	for i := 0; i < m.t.workers; i++ {
		group.Go(func() error {
			m.responseLoop(groupCtx)
			return nil
		})
	}

	m.Logger.Info("StocksManager started with %d response worker(s)", m.t.workers)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels every loop, waits for them and disposes the connections.
func (m *StocksManager) Stop() {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	rs := m.run.Load()
	if rs == nil {
		return
	}

	rs.cancel()
	_ = rs.group.Wait()

	m.connMu.Lock()
	if old := m.conns.Swap(nil); old != nil {
		m.disposeConnections(old)
	}
	m.connMu.Unlock()
	m.Logger.Info("StocksManager stopped")
}

// -----------------------------------------------------------------------------

// SessionID identifies the current connection triple.
func (m *StocksManager) SessionID() string {
	id, _ := m.sessionID.Load().(string)
	return id
}

func (m *StocksManager) IsResetting() bool {
	return m.resetting.Load()
}

func (m *StocksManager) APICallCount() int64 {
	return m.apiCalls.Load()
}

// LastRestart is when the current connection triple was created.
func (m *StocksManager) LastRestart() time.Time {
	return unixNano(m.lastRestart.Load())
}

// -----------------------------------------------------------------------------

// lifetime derives a context that also ends when the manager stops.
func (m *StocksManager) lifetime(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(ctx)
	rs := m.run.Load()
	if rs == nil {
		return bound, cancel
	}
	stop := context.AfterFunc(rs.ctx, cancel)
	return bound, func() {
		stop()
		cancel()
	}
}

// -----------------------------------------------------------------------------

func (m *StocksManager) location() *time.Location {
	if m.Scheduler != nil && m.Scheduler.Location != nil {
		return m.Scheduler.Location
	}
	return time.Local
}

func (m *StocksManager) touchLastEvent() {
	m.lastEvent.Store(m.Clock.Now().UnixNano())
}

func (m *StocksManager) publish(ctx context.Context, msg models.MStatusMessage) {
	if m.publisher != nil {
		m.publisher.Publish(ctx, msg)
	}
}

func (m *StocksManager) notify(ctx context.Context, inst *models.MInstrument) {
	if m.notifier != nil {
		m.notifier.OnInstrumentUpdated(ctx, inst)
	}
}

// logError writes to the log and to the registry message log.
func (m *StocksManager) logError(msg string) {
	m.Logger.Error("%s", msg)
	m.registry.AddMessage("ERROR", m.Clock.Now(), msg)
}

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
