package tinkoff

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	dialRetries  = 3
	dialBackoff  = time.Second
)

var ErrConnectionClosed = errors.New("connection closed")

// -----------------------------------------------------------------------------

// Connection is one broker session: a lazily dialled streaming websocket plus REST.
type Connection struct {
	StreamingURL string
	Token        string
	Rest         *RestClient
	Dialer       *websocket.Dialer
	Logger       *logger.Logger

	handler atomic.Value // func(models.MStreamEvent)
	closed  atomic.Bool

	mu      sync.Mutex // guards conn
	conn    *websocket.Conn
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewConnection(streamingURL, token string, rest *RestClient, dialer *websocket.Dialer, log *logger.Logger) *Connection {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Connection{
		StreamingURL: streamingURL,
		Token:        token,
		Rest:         rest,
		Dialer:       dialer,
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) SetEventHandler(handler func(models.MStreamEvent)) {
	c.handler.Store(handler)
}

// -----------------------------------------------------------------------------

func (c *Connection) MarketCandles(ctx context.Context, figi string, from, to time.Time, interval models.CandleInterval) ([]models.MCandle, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.Rest.MarketCandles(ctx, figi, from, to, interval)
}

// -----------------------------------------------------------------------------

func (c *Connection) MarketStocks(ctx context.Context) ([]models.MMarketInstrument, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.Rest.MarketStocks(ctx)
}

// -----------------------------------------------------------------------------

// SendStreamingRequest writes a subscribe command, dialling the websocket first if needed.
func (c *Connection) SendStreamingRequest(ctx context.Context, req models.MStreamingRequest) error {
	payload, err := encodeRequest(req, uuid.NewString())
	if err != nil {
		return err
	}

	conn, err := c.ensureConnected(ctx)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.dropConn(conn)
		return helpers.NewBrokerError(fmt.Sprintf("send %s for %s", req.Kind, req.Figi), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close disposes the websocket and waits for the read loop to exit.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}

// -----------------------------------------------------------------------------

func (c *Connection) ensureConnected(ctx context.Context) (*websocket.Conn, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	var conn *websocket.Conn
	err := helpers.RetryWithBackoff(ctx, c.Logger, "websocket dial", dialRetries, dialBackoff, func() error {
		var dialErr error
		var resp *http.Response
		conn, resp, dialErr = c.Dialer.DialContext(ctx, c.StreamingURL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return dialErr
	})
	if err != nil {
		return nil, helpers.NewNetworkError("streaming dial failed", err)
	}

	// Close may have raced with the dial
	if c.closed.Load() {
		conn.Close()
		return nil, ErrConnectionClosed
	}

	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)

	c.Logger.Debug("Streaming connection established to %s", c.StreamingURL)
	return conn, nil
}

// -----------------------------------------------------------------------------

func (c *Connection) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.Logger.Warning("Streaming read failed: %v", err)
				c.emit(models.MStreamErrorEvent{Error: err.Error()})
			}
			c.dropConn(conn)
			return
		}

		event, err := decodeEvent(data)
		if err != nil {
			c.Logger.Warning("Dropping malformed streaming frame: %v", err)
			continue
		}
		if event != nil {
			c.emit(event)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) emit(event models.MStreamEvent) {
	handler, _ := c.handler.Load().(func(models.MStreamEvent))
	if handler != nil {
		handler(event)
	}
}

// -----------------------------------------------------------------------------

// dropConn forgets a broken websocket so the next request redials.
func (c *Connection) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}
