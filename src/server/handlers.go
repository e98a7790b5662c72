package server

import (
	"context"
	"net/http"
	"time"

	"stocks-ngine/src/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultMonthStatsTimeout = 30 * time.Second
	maxMonthStatsTimeout     = 5 * time.Minute
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	resp := gin.H{
		"status":      "ok",
		"connections": s.clientCount.Load(),
	}
	if state, ok := s.latestStatus("connection_state").(models.MConnectionStateMessage); ok {
		resp["connection_state"] = state.State
		resp["session_id"] = state.SessionID
	}
	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"common_info":      s.latestStatus("common_info"),
		"stats_update":     s.latestStatus("stats_update"),
		"connection_state": s.latestStatus("connection_state"),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getInstruments(c *gin.Context) {
	instruments := s.Registry.Instruments()
	out := make([]models.MInstrumentSnapshot, 0, len(instruments))
	for _, inst := range instruments {
		out = append(out, inst.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getInstrument(c *gin.Context) {
	inst, ok := s.Registry.Get(c.Param("figi"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instrument not found"})
		return
	}
	c.JSON(http.StatusOK, inst.Snapshot())
}

// -----------------------------------------------------------------------------

// postMonthStats waits for fresh monthly aggregates, bounded by ?timeout=.
func (s *APIServer) postMonthStats(c *gin.Context) {
	inst, ok := s.Registry.Get(c.Param("figi"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instrument not found"})
		return
	}

	timeout := defaultMonthStatsTimeout
	if raw := c.Query("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		timeout = min(d, maxMonthStatsTimeout)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	fresh := s.Controller.CheckMonthStats(ctx, inst)
	status := http.StatusOK
	if !fresh {
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"fresh": fresh, "instrument": inst.Snapshot()})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getOrderbook(c *gin.Context) {
	book, ok := s.Controller.Orderbook(c.Param("ticker"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no order book"})
		return
	}
	c.JSON(http.StatusOK, book)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getMessages(c *gin.Context) {
	c.JSON(http.StatusOK, s.Messages.Messages())
}

// -----------------------------------------------------------------------------

// postReset starts a reconnect and returns immediately.
func (s *APIServer) postReset(c *gin.Context) {
	go s.Controller.ResetConnection(context.Background(), "manual reset")
	c.JSON(http.StatusAccepted, gin.H{"status": "resetting"})
}
