package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/registry"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type fakeController struct {
	mu      sync.Mutex
	resets  []string
	fresh   bool
	books   map[string]models.MOrderbook
	checked []string
}

func (f *fakeController) ResetConnection(_ context.Context, reason string) {
	f.mu.Lock()
	f.resets = append(f.resets, reason)
	f.mu.Unlock()
}

func (f *fakeController) CheckMonthStats(_ context.Context, inst *models.MInstrument) bool {
	f.mu.Lock()
	f.checked = append(f.checked, inst.Figi)
	f.mu.Unlock()
	return f.fresh
}

func (f *fakeController) Orderbook(ticker string) (models.MOrderbook, bool) {
	b, ok := f.books[ticker]
	return b, ok
}

func (f *fakeController) resetReasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resets...)
}

func newTestServer(t *testing.T) (*APIServer, *registry.MainModel, *fakeController) {
	t.Helper()
	cfg := &models.MConfig{}
	log := logger.NewLogger(nil, "server-test")
	reg := registry.NewMainModel(cfg, nil, log)

	insts := []*models.MInstrument{
		reg.CreateInstrument(models.MMarketInstrument{Figi: "F1", Ticker: "AAA", Lot: 1}),
		reg.CreateInstrument(models.MMarketInstrument{Figi: "F2", Ticker: "BBB", Lot: 10}),
	}
	if err := reg.AddInstruments(context.Background(), insts); err != nil {
		t.Fatalf("AddInstruments failed: %v", err)
	}

	ctrl := &fakeController{books: map[string]models.MOrderbook{
		"AAA": {Figi: "F1", Ticker: "AAA", Depth: 1, Bids: []models.MOrderbookLevel{{Price: decimal.NewFromInt(10), Quantity: decimal.NewFromInt(3)}}},
	}}
	s := NewAPIServer(cfg, reg, reg, ctrl, log)
	go s.runHub()
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s, reg, ctrl
}

func doRequest(t *testing.T, s *APIServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestInstrumentRoutes(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/instruments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []models.MInstrumentSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(list) != 2 || list[0].Ticker != "AAA" || list[1].Lot != 10 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/instruments/F2"); rec.Code != http.StatusOK {
		t.Fatalf("single instrument status = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/instruments/NOPE"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown instrument status = %d", rec.Code)
	}
}

func TestOrderbookRoute(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/orderbook/AAA")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ticker":"AAA"`) {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/orderbook/BBB"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing book status = %d", rec.Code)
	}
}

func TestResetRouteIsAsynchronous(t *testing.T) {
	s, _, ctrl := newTestServer(t)

	if rec := doRequest(t, s, http.MethodPost, "/api/reset"); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(ctrl.resetReasons()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("reset was never triggered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := ctrl.resetReasons()[0]; got != "manual reset" {
		t.Fatalf("reason = %q", got)
	}
}

func TestMonthStatsRoute(t *testing.T) {
	s, _, ctrl := newTestServer(t)

	if rec := doRequest(t, s, http.MethodPost, "/api/instruments/F1/month-stats?timeout=bad"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timeout status = %d", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/instruments/F1/month-stats?timeout=1s"); rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("stale status = %d", rec.Code)
	}

	ctrl.fresh = true
	rec := doRequest(t, s, http.MethodPost, "/api/instruments/F1/month-stats")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"fresh":true`) {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusAndHealthReflectPublishedMessages(t *testing.T) {
	s, reg, _ := newTestServer(t)

	s.Publish(context.Background(), models.MConnectionStateMessage{State: models.ConnectionStateConnected, SessionID: "sess-1"})
	s.Publish(context.Background(), models.MCommonInfoMessage{TotalStocksUpdatedInFiveSec: 42})
	reg.AddMessage("AAA", time.Now(), "hello")

	rec := doRequest(t, s, http.MethodGet, "/api/health")
	if !strings.Contains(rec.Body.String(), `"session_id":"sess-1"`) || !strings.Contains(rec.Body.String(), `"connection_state":"connected"`) {
		t.Fatalf("health = %s", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/status")
	if !strings.Contains(rec.Body.String(), `"total_stocks_updated_in_five_sec":42`) {
		t.Fatalf("status = %s", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/messages")
	if !strings.Contains(rec.Body.String(), `"text":"hello"`) {
		t.Fatalf("messages = %s", rec.Body.String())
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return env.Type, env.Data
}

func TestWebSocketPushAndTickerFilter(t *testing.T) {
	s, reg, _ := newTestServer(t)
	s.Publish(context.Background(), models.MStatsUpdateMessage{Completed: 1, Total: 2})

	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Latest status is replayed on connect
	if kind, _ := readEnvelope(t, conn); kind != "stats_update" {
		t.Fatalf("first message = %s", kind)
	}

	if err := conn.WriteJSON(MSubscribeCommand{Command: "subscribe", Tickers: []string{"BBB"}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if kind, _ := readEnvelope(t, conn); kind != "subscribed" {
		t.Fatalf("ack = %s", kind)
	}

	aaa, _ := reg.Get("F1")
	bbb, _ := reg.Get("F2")
	s.OnInstrumentUpdated(context.Background(), aaa)
	s.OnInstrumentUpdated(context.Background(), bbb)

	kind, data := readEnvelope(t, conn)
	if kind != "instrument_update" || !strings.Contains(string(data), `"ticker":"BBB"`) {
		t.Fatalf("got %s %s", kind, data)
	}
}

func TestSubscribeAckToDroppedClient(t *testing.T) {
	s, _, _ := newTestServer(t)
	cmd := []byte(`{"command":"subscribe","tickers":["AAA"]}`)

	client := newClient(s, nil)
	s.HandleClientMessage(client, cmd)
	select {
	case ack := <-client.send:
		if !strings.Contains(string(ack), `"subscribed"`) {
			t.Fatalf("unexpected ack: %s", ack)
		}
	default:
		t.Fatalf("no ack queued for a live client")
	}

	// Dropped by the hub while its read pump still handles a command
	client.closeSend()
	client.closeSend()
	s.HandleClientMessage(client, cmd)

	if client.trySend([]byte("late")) {
		t.Fatalf("send accepted after the channel was closed")
	}
	if !client.follows("AAA") || client.follows("BBB") {
		t.Errorf("filter not applied")
	}
}

func TestSlowClientIsDroppedWithoutPanic(t *testing.T) {
	s, _, _ := newTestServer(t)
	client := newClient(s, nil)
	for i := 0; i < clientBuffer; i++ {
		client.send <- []byte("filler")
	}
	s.register <- client
	waitForClients(t, s, 1)

	s.broadcast <- outbound{payload: []byte("status")}
	waitForClients(t, s, 0)

	s.HandleClientMessage(client, []byte(`{"command":"subscribe","tickers":[]}`))
}

func waitForClients(t *testing.T, s *APIServer, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.clientCount.Load() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", s.clientCount.Load(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
