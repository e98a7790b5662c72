package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/publisher"

	"github.com/gin-gonic/gin"
)

const broadcastBufferSize = 1024

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

// APIServer serves the REST API and pushes status messages and instrument
// updates to websocket clients.
type APIServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Registry   interfaces.IInstrumentRegistry
	Messages   interfaces.IMessageLog
	Controller interfaces.IStocksController

	engine *gin.Engine
	http   *http.Server

	// WebSocket clients, owned by the hub loop
	clients     map[*Client]struct{}
	clientCount atomic.Int64
	broadcast   chan outbound
	register    chan *Client
	unregister  chan *Client
	quit        chan struct{}
	quitOnce    sync.Once
	dropped     atomic.Int64

	// Latest status message per type
	statusMu sync.RWMutex
	statuses map[string]models.MStatusMessage
	payloads map[string][]byte
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, registry interfaces.IInstrumentRegistry, messages interfaces.IMessageLog,
	controller interfaces.IStocksController, log *logger.Logger) *APIServer {
	// Set Gin mode
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		Registry:   registry,
		Messages:   messages,
		Controller: controller,
		engine:     gin.Default(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		statuses:   make(map[string]models.MStatusMessage),
		payloads:   make(map[string][]byte),
	}

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/status", s.getStatus)
	api.GET("/instruments", s.getInstruments)
	api.GET("/instruments/:figi", s.getInstrument)
	api.POST("/instruments/:figi/month-stats", s.postMonthStats)
	api.GET("/orderbook/:ticker", s.getOrderbook)
	api.GET("/messages", s.getMessages)
	api.POST("/reset", s.postReset)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	s.Logger.Info("Starting server on %s", addr)

	go s.runHub()

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", addr, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Data Exchange Implementation
// -----------------------------------------------------------------------------

// Publish stores the message as the latest of its type and broadcasts it.
func (s *APIServer) Publish(_ context.Context, msg models.MStatusMessage) {
	payload, err := publisher.EncodeStatus(msg)
	if err != nil {
		s.Logger.Warning("%v", err)
		return
	}

	s.statusMu.Lock()
	s.statuses[msg.MessageType()] = msg
	s.payloads[msg.MessageType()] = payload
	s.statusMu.Unlock()

	s.enqueue(outbound{payload: payload})
}

// -----------------------------------------------------------------------------

// OnInstrumentUpdated broadcasts a snapshot to clients following the ticker.
func (s *APIServer) OnInstrumentUpdated(_ context.Context, inst *models.MInstrument) {
	if s.clientCount.Load() == 0 {
		return
	}

	snapshot := inst.Snapshot()
	payload, err := publisher.EncodeInstrument(snapshot)
	if err != nil {
		s.Logger.Warning("%v", err)
		return
	}
	s.enqueue(outbound{ticker: snapshot.Ticker, payload: payload})
}

// -----------------------------------------------------------------------------

func (s *APIServer) enqueue(msg outbound) {
	select {
	case s.broadcast <- msg:
	default:
		if n := s.dropped.Add(1); n%1000 == 1 {
			s.Logger.Warning("Broadcast queue full, %d messages dropped so far", n)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) latestStatus(kind string) models.MStatusMessage {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.statuses[kind]
}
