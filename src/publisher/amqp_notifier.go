package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 10 * time.Second

type amqpItem struct {
	ticker  string
	payload []byte
}

// AMQPNotifier publishes instrument updates to a topic exchange. The routing key
// is "<routing_key>.<ticker>".
type AMQPNotifier struct {
	Config  models.MAMQPConfig
	Logger  *logger.Logger
	conn    *amqp091.Connection
	channel *amqp091.Channel
	updates chan amqpItem
	dropped atomic.Int64
}

// -----------------------------------------------------------------------------

// NewAMQPNotifier connects with retries and declares the exchange.
func NewAMQPNotifier(ctx context.Context, cfg *models.MConfig, log *logger.Logger) (*AMQPNotifier, error) {
	ac := cfg.Publisher.AMQP

	// 1. Connect
	var conn *amqp091.Connection
	err := helpers.RetryWithBackoff(ctx, log, "amqp dial", 5, 2*time.Second, func() error {
		var dialErr error
		conn, dialErr = amqp091.Dial(ac.URL)
		return dialErr
	})
	if err != nil {
		return nil, helpers.NewNetworkError("failed to connect to RabbitMQ", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// 2. Publisher confirms are best effort
	if err := ch.Confirm(false); err != nil {
		log.Warning("Failed to enable publisher confirms: %v", err)
	}

	// 3. Exchange
	err = ch.ExchangeDeclare(
		ac.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", ac.Exchange, err)
	}

	log.Info("AMQP notifier publishing to exchange %s", ac.Exchange)
	n := newAMQPNotifier(ac, log)
	n.conn = conn
	n.channel = ch
	return n, nil
}

func newAMQPNotifier(ac models.MAMQPConfig, log *logger.Logger) *AMQPNotifier {
	size := ac.BufferSize
	if size <= 0 {
		size = 1024
	}
	return &AMQPNotifier{
		Config:  ac,
		Logger:  log,
		updates: make(chan amqpItem, size),
	}
}

// -----------------------------------------------------------------------------

// OnInstrumentUpdated queues a snapshot without blocking the caller.
func (n *AMQPNotifier) OnInstrumentUpdated(_ context.Context, inst *models.MInstrument) {
	snapshot := inst.Snapshot()
	payload, err := EncodeInstrument(snapshot)
	if err != nil {
		n.Logger.Warning("%v", err)
		return
	}

	select {
	case n.updates <- amqpItem{ticker: snapshot.Ticker, payload: payload}:
	default:
		if d := n.dropped.Add(1); d%1000 == 1 {
			n.Logger.Warning("AMQP buffer full, %d updates dropped so far", d)
		}
	}
}

// -----------------------------------------------------------------------------

// Run publishes queued updates until ctx ends.
func (n *AMQPNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-n.updates:
			if err := n.publish(ctx, item); err != nil {
				n.Logger.Warning("%v", err)
			}
		}
	}
}

func (n *AMQPNotifier) publish(ctx context.Context, item amqpItem) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := n.Config.RoutingKey + "." + item.ticker
	err := n.channel.PublishWithContext(ctx,
		n.Config.Exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        item.payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish update to %s/%s: %w", n.Config.Exchange, key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
