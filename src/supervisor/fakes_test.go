package supervisor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/registry"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

type fakeConnection struct {
	mu         sync.Mutex
	requests   []models.MStreamingRequest
	handler    func(models.MStreamEvent)
	closed     bool
	candles    []models.MCandle
	stocks     []models.MMarketInstrument
	stocksErr  error
	fetchErr   error
	fetchPanic bool
	fetches    int
}

func (c *fakeConnection) SendStreamingRequest(_ context.Context, req models.MStreamingRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("closed")
	}
	c.requests = append(c.requests, req)
	return nil
}

func (c *fakeConnection) MarketCandles(_ context.Context, _ string, _, _ time.Time, _ models.CandleInterval) ([]models.MCandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
	if c.fetchPanic {
		panic("malformed candle payload")
	}
	return c.candles, c.fetchErr
}

func (c *fakeConnection) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *fakeConnection) eventHandler() func(models.MStreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func (c *fakeConnection) MarketStocks(context.Context) ([]models.MMarketInstrument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stocks, c.stocksErr
}

func (c *fakeConnection) SetEventHandler(h func(models.MStreamEvent)) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) sent() []models.MStreamingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.MStreamingRequest(nil), c.requests...)
}

// -----------------------------------------------------------------------------

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeConnection
	tokens  []string
	setup   func(*fakeConnection)
}

func (f *fakeFactory) NewConnection(token string) interfaces.IBrokerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConnection{}
	if f.setup != nil {
		f.setup(c)
	}
	f.created = append(f.created, c)
	f.tokens = append(f.tokens, token)
	return c
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// -----------------------------------------------------------------------------

type tokenSettings string

func (s tokenSettings) APIToken() string { return string(s) }

// -----------------------------------------------------------------------------

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.MStatusMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg models.MStatusMessage) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
}

func (p *recordingPublisher) states() []models.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.ConnectionState
	for _, m := range p.msgs {
		if cs, ok := m.(models.MConnectionStateMessage); ok {
			out = append(out, cs.State)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

type recordingNotifier struct {
	mu    sync.Mutex
	count map[string]int
}

func (n *recordingNotifier) OnInstrumentUpdated(_ context.Context, inst *models.MInstrument) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.count == nil {
		n.count = make(map[string]int)
	}
	n.count[inst.Figi]++
}

func (n *recordingNotifier) of(figi string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count[figi]
}

// -----------------------------------------------------------------------------

type harness struct {
	m         *StocksManager
	clock     *fakeClock
	factory   *fakeFactory
	registry  *registry.MainModel
	publisher *recordingPublisher
	notifier  *recordingNotifier

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func (h *harness) sleepCalls(d time.Duration) int {
	h.sleepMu.Lock()
	defer h.sleepMu.Unlock()
	n := 0
	for _, s := range h.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

// 2025-03-04 is a Tuesday; 12:00 UTC is outside the quiet window.
var testNow = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &models.MConfig{}
	cfg.Supervisor.Timezone = "UTC"
	cfg.Supervisor.QuietWindowStart = "01:45"
	cfg.Supervisor.QuietWindowEnd = "10:00"

	log := logger.NewLogger(nil, "supervisor-test")
	h := &harness{
		clock:     &fakeClock{now: testNow},
		factory:   &fakeFactory{},
		registry:  registry.NewMainModel(cfg, nil, log),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}

	m, err := NewStocksManager(cfg, Collaborators{
		Registry:  h.registry,
		Notifier:  h.notifier,
		Publisher: h.publisher,
		Settings:  tokenSettings("token"),
		Factory:   h.factory,
	}, log)
	if err != nil {
		t.Fatalf("NewStocksManager failed: %v", err)
	}
	m.Clock = h.clock
	m.Sleep = func(ctx context.Context, d time.Duration) error {
		h.sleepMu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.sleepMu.Unlock()
		return ctx.Err()
	}
	h.m = m
	return h
}

// addInstruments registers n instruments with figis F000.. and tickers T000..
func (h *harness) addInstruments(t *testing.T, n int, init func(i int, inst *models.MInstrument)) []*models.MInstrument {
	t.Helper()
	out := make([]*models.MInstrument, 0, n)
	for i := 0; i < n; i++ {
		inst := h.registry.CreateInstrument(models.MMarketInstrument{
			Figi:   fmt.Sprintf("F%03d", i),
			Ticker: fmt.Sprintf("T%03d", i),
			Lot:    1,
		})
		if init != nil {
			init(i, inst)
		}
		out = append(out, inst)
	}
	if err := h.registry.AddInstruments(context.Background(), out); err != nil {
		t.Fatalf("AddInstruments failed: %v", err)
	}
	return out
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
