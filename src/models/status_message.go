package models

import "time"

// -----------------------------------------------------------------------------
// Status messages published to external observers
// -----------------------------------------------------------------------------

type MStatusMessage interface {
	MessageType() string
}

// MCommonInfoMessage carries the update cadence seen by the health monitor.
type MCommonInfoMessage struct {
	TotalStocksUpdatedInFiveSec int       `json:"total_stocks_updated_in_five_sec"`
	TotalStocksUpdatedInLastSec int       `json:"total_stocks_updated_in_last_sec"`
	Timestamp                   time.Time `json:"timestamp"`
}

func (MCommonInfoMessage) MessageType() string { return "common_info" }

// MStatsUpdateMessage reports historical-stats backfill progress.
type MStatsUpdateMessage struct {
	Completed    int       `json:"completed"`
	Total        int       `json:"total"`
	IsComplete   bool      `json:"is_complete"`
	APICallCount int64     `json:"api_call_count"`
	Timestamp    time.Time `json:"timestamp"`
}

func (MStatsUpdateMessage) MessageType() string { return "stats_update" }

type ConnectionState string

const (
	ConnectionStateResetting ConnectionState = "resetting"
	ConnectionStateConnected ConnectionState = "connected"
)

// MConnectionStateMessage is published when the connection triple is torn down or recreated.
type MConnectionStateMessage struct {
	State     ConnectionState `json:"state"`
	Reason    string          `json:"reason,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (MConnectionStateMessage) MessageType() string { return "connection_state" }

// MLogMessage is an entry of the registry message log.
type MLogMessage struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Text   string    `json:"text"`
}
