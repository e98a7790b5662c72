package tinkoff

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/network"

	"github.com/gorilla/websocket"
)

func testConfig(restURL, wsURL string) *models.MConfig {
	cfg := &models.MConfig{}
	cfg.Broker.RestURL = restURL
	cfg.Broker.StreamingURL = wsURL
	cfg.Network.RequestTimeout = 5
	return cfg
}

func newFactory(cfg *models.MConfig) *ConnectionFactory {
	log := logger.NewLogger(nil, "tinkoff-test")
	return NewConnectionFactory(cfg, network.NewAsyncNetworkManager(cfg, nil, log), nil, log)
}

func TestRestMarketCandles(t *testing.T) {
	var gotAuth, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/candles" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotInterval = r.URL.Query().Get("interval")
		w.Write([]byte(`{"trackingId":"t1","status":"Ok","payload":{"figi":"F","interval":"day","candles":[
			{"o":10,"c":11,"h":12,"l":9,"v":100,"time":"2025-03-03T07:00:00Z","interval":"day","figi":"F"},
			{"o":11,"c":14,"h":15,"l":10,"v":300,"time":"2025-03-04T07:00:00Z","interval":"day","figi":"F"}]}}`))
	}))
	defer srv.Close()

	conn := newFactory(testConfig(srv.URL, "ws://unused")).NewConnection("secret")
	defer conn.Close()

	from := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	candles, err := conn.MarketCandles(context.Background(), "F", from, from.AddDate(0, 1, 1), models.CandleIntervalDay)
	if err != nil {
		t.Fatalf("MarketCandles failed: %v", err)
	}
	if len(candles) != 2 || candles[1].High.IntPart() != 15 {
		t.Fatalf("unexpected candles: %+v", candles)
	}
	if gotAuth != "Bearer secret" || gotInterval != "day" {
		t.Errorf("unexpected request: auth=%q interval=%q", gotAuth, gotInterval)
	}
}

func TestRestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trackingId":"t2","status":"Error","payload":{"message":"Invalid token","code":"Unauthorized"}}`))
	}))
	defer srv.Close()

	conn := newFactory(testConfig(srv.URL, "ws://unused")).NewConnection("bad")
	defer conn.Close()

	_, err := conn.MarketStocks(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Invalid token") {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestRestMarketStocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trackingId":"t3","status":"Ok","payload":{"total":1,"instruments":[
			{"figi":"BBG000B9XRY4","ticker":"AAPL","isin":"US0378331005","minPriceIncrement":0.01,"lot":1,"currency":"USD","name":"Apple","type":"Stock"}]}}`))
	}))
	defer srv.Close()

	conn := newFactory(testConfig(srv.URL, "ws://unused")).NewConnection("secret")
	defer conn.Close()

	stocks, err := conn.MarketStocks(context.Background())
	if err != nil {
		t.Fatalf("MarketStocks failed: %v", err)
	}
	if len(stocks) != 1 || stocks[0].Ticker != "AAPL" || stocks[0].Lot != 1 {
		t.Fatalf("unexpected stocks: %+v", stocks)
	}
}

func TestStreamingSubscribeAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)

		ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"instrument_info","payload":{"figi":"F","trade_status":"normal_trading"}}`))
		// Hold the socket open until the client closes it
		ws.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn := newFactory(testConfig(srv.URL, wsURL)).NewConnection("secret")

	var mu sync.Mutex
	var events []models.MStreamEvent
	got := make(chan struct{}, 1)
	conn.SetEventHandler(func(e models.MStreamEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.SendStreamingRequest(ctx, models.SubscribeInstrumentInfo("F")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case msg := <-received:
		if !strings.Contains(msg, `"event":"instrument_info:subscribe"`) {
			t.Errorf("unexpected request on the wire: %s", msg)
		}
	case <-ctx.Done():
		t.Fatalf("server never received the subscribe")
	}

	select {
	case <-got:
	case <-ctx.Done():
		t.Fatalf("no event delivered")
	}

	if err := conn.Close(); err != nil {
		t.Logf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if info, ok := events[0].(models.MInstrumentInfoEvent); !ok || info.Figi != "F" {
		t.Errorf("unexpected first event: %#v", events[0])
	}

	if err := conn.SendStreamingRequest(ctx, models.SubscribeInstrumentInfo("F")); err != ErrConnectionClosed {
		t.Errorf("send after close = %v, want ErrConnectionClosed", err)
	}
}
