package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"github.com/go-redis/redis/v8"
)

const redisBufferSize = 256

type redisItem struct {
	kind    string
	payload []byte
}

// RedisStatusPublisher mirrors status messages to a Redis channel and keeps the
// latest message of each type under "<channel>:<type>".
type RedisStatusPublisher struct {
	Config  models.MRedisConfig
	Client  *redis.Client
	Logger  *logger.Logger
	queue   chan redisItem
	dropped atomic.Int64
}

// -----------------------------------------------------------------------------

// NewRedisStatusPublisher connects and pings Redis.
func NewRedisStatusPublisher(ctx context.Context, cfg *models.MConfig, log *logger.Logger) (*RedisStatusPublisher, error) {
	rc := cfg.Publisher.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, helpers.NewNetworkError(fmt.Sprintf("redis ping %s", rc.Addr), err)
	}

	log.Info("Redis status publisher connected to %s (channel %s)", rc.Addr, rc.Channel)
	return newRedisStatusPublisher(rc, client, log), nil
}

func newRedisStatusPublisher(rc models.MRedisConfig, client *redis.Client, log *logger.Logger) *RedisStatusPublisher {
	return &RedisStatusPublisher{
		Config: rc,
		Client: client,
		Logger: log,
		queue:  make(chan redisItem, redisBufferSize),
	}
}

// -----------------------------------------------------------------------------

// Publish queues the message; when the buffer is full the message is dropped.
func (p *RedisStatusPublisher) Publish(_ context.Context, msg models.MStatusMessage) {
	payload, err := EncodeStatus(msg)
	if err != nil {
		p.Logger.Warning("%v", err)
		return
	}

	select {
	case p.queue <- redisItem{kind: msg.MessageType(), payload: payload}:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			p.Logger.Warning("Redis publish buffer full, %d messages dropped so far", n)
		}
	}
}

// -----------------------------------------------------------------------------

// Run writes queued messages until ctx ends.
func (p *RedisStatusPublisher) Run(ctx context.Context) {
	ttl := time.Duration(p.Config.KeyTTL) * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			if err := p.Client.Publish(ctx, p.Config.Channel, item.payload).Err(); err != nil {
				p.Logger.Warning("Redis publish failed: %v", err)
				continue
			}
			if err := p.Client.Set(ctx, p.Config.Channel+":"+item.kind, item.payload, ttl).Err(); err != nil {
				p.Logger.Warning("Redis set failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (p *RedisStatusPublisher) Close() error {
	return p.Client.Close()
}
