package publisher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
)

type collector struct {
	mu   sync.Mutex
	msgs []models.MStatusMessage
}

func (c *collector) Publish(_ context.Context, msg models.MStatusMessage) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func TestStatusFanout(t *testing.T) {
	a, b := &collector{}, &collector{}
	f := NewStatusFanout(a)
	f.Add(b)

	f.Publish(context.Background(), models.MCommonInfoMessage{TotalStocksUpdatedInFiveSec: 3})

	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("fan-out reached %d and %d targets", len(a.msgs), len(b.msgs))
	}
}

func TestEncodeStatus(t *testing.T) {
	data, err := EncodeStatus(models.MStatsUpdateMessage{Completed: 2, Total: 4, APICallCount: 9})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var env struct {
		Type string                     `json:"type"`
		Data models.MStatsUpdateMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if env.Type != "stats_update" || env.Data.Total != 4 || env.Data.APICallCount != 9 {
		t.Fatalf("unexpected envelope: %s", data)
	}
}

func TestRedisPublishNeverBlocks(t *testing.T) {
	p := newRedisStatusPublisher(models.MRedisConfig{Channel: "c"}, nil, logger.NewLogger(nil, "redis-test"))

	done := make(chan struct{})
	go func() {
		for i := 0; i < redisBufferSize+10; i++ {
			p.Publish(context.Background(), models.MCommonInfoMessage{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked with a full buffer")
	}
	if p.dropped.Load() != 10 {
		t.Errorf("dropped = %d, want 10", p.dropped.Load())
	}
}

func TestAMQPNotifierQueuesSnapshots(t *testing.T) {
	n := newAMQPNotifier(models.MAMQPConfig{BufferSize: 1, RoutingKey: "instrument.updated"}, logger.NewLogger(nil, "amqp-test"))
	inst := models.NewInstrument(models.MMarketInstrument{Figi: "F", Ticker: "TCK"}, 0)

	n.OnInstrumentUpdated(context.Background(), inst)
	n.OnInstrumentUpdated(context.Background(), inst)

	if n.dropped.Load() != 1 {
		t.Fatalf("dropped = %d, want 1", n.dropped.Load())
	}
	item := <-n.updates
	if item.ticker != "TCK" {
		t.Fatalf("queued ticker %q", item.ticker)
	}

	var env struct {
		Type string                     `json:"type"`
		Data models.MInstrumentSnapshot `json:"data"`
	}
	if err := json.Unmarshal(item.payload, &env); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if env.Type != InstrumentUpdateType || env.Data.Figi != "F" {
		t.Fatalf("unexpected payload: %s", item.payload)
	}
}
