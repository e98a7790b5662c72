package tinkoff

import (
	"encoding/json"
	"fmt"
	"time"

	"stocks-ngine/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Streaming wire format (OpenAPI v1 market-data websocket)
// -----------------------------------------------------------------------------

type streamingRequest struct {
	Event     string `json:"event"`
	Figi      string `json:"figi"`
	Interval  string `json:"interval,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type streamingEnvelope struct {
	Event   string          `json:"event"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

type candlePayload struct {
	Open     decimal.Decimal `json:"o"`
	Close    decimal.Decimal `json:"c"`
	High     decimal.Decimal `json:"h"`
	Low      decimal.Decimal `json:"l"`
	Volume   decimal.Decimal `json:"v"`
	Time     time.Time       `json:"time"`
	Interval string          `json:"interval"`
	Figi     string          `json:"figi"`
}

type orderbookPayload struct {
	Figi  string               `json:"figi"`
	Depth int                  `json:"depth"`
	Bids  [][2]decimal.Decimal `json:"bids"`
	Asks  [][2]decimal.Decimal `json:"asks"`
}

type instrumentInfoPayload struct {
	Figi        string `json:"figi"`
	TradeStatus string `json:"trade_status"`
}

type errorPayload struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// -----------------------------------------------------------------------------

func encodeRequest(req models.MStreamingRequest, requestID string) ([]byte, error) {
	if req.Figi == "" {
		return nil, fmt.Errorf("streaming request %s without figi", req.Kind)
	}
	return json.Marshal(streamingRequest{
		Event:     string(req.Kind),
		Figi:      req.Figi,
		Interval:  string(req.Interval),
		Depth:     req.Depth,
		RequestID: requestID,
	})
}

// -----------------------------------------------------------------------------

// decodeEvent parses one websocket frame. Unknown events yield (nil, nil).
func decodeEvent(data []byte) (models.MStreamEvent, error) {
	var env streamingEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	switch env.Event {
	case "candle":
		var p candlePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad candle payload: %w", err)
		}
		return models.MCandleEvent{Candle: p.toModel()}, nil

	case "orderbook":
		var p orderbookPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad orderbook payload: %w", err)
		}
		return models.MOrderbookEvent{
			Figi:  p.Figi,
			Depth: p.Depth,
			Bids:  toLevels(p.Bids),
			Asks:  toLevels(p.Asks),
		}, nil

	case "instrument_info":
		var p instrumentInfoPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad instrument_info payload: %w", err)
		}
		return models.MInstrumentInfoEvent{Figi: p.Figi, TradeStatus: p.TradeStatus}, nil

	case "error":
		var p errorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad error payload: %w", err)
		}
		return models.MStreamErrorEvent{Error: p.Error, RequestID: p.RequestID}, nil
	}

	return nil, nil
}

// -----------------------------------------------------------------------------

func (p candlePayload) toModel() models.MCandle {
	return models.MCandle{
		Figi:     p.Figi,
		Time:     p.Time,
		Interval: models.CandleInterval(p.Interval),
		Open:     p.Open,
		Close:    p.Close,
		High:     p.High,
		Low:      p.Low,
		Volume:   p.Volume,
	}
}

func toLevels(raw [][2]decimal.Decimal) []models.MOrderbookLevel {
	out := make([]models.MOrderbookLevel, len(raw))
	for i, lvl := range raw {
		out[i] = models.MOrderbookLevel{Price: lvl[0], Quantity: lvl[1]}
	}
	return out
}

// -----------------------------------------------------------------------------
// REST wire format
// -----------------------------------------------------------------------------

type restResponse struct {
	TrackingID string          `json:"trackingId"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload"`
}

type restErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type candlesPayload struct {
	Figi     string          `json:"figi"`
	Interval string          `json:"interval"`
	Candles  []candlePayload `json:"candles"`
}

type marketInstrumentListPayload struct {
	Total       int                        `json:"total"`
	Instruments []models.MMarketInstrument `json:"instruments"`
}

// -----------------------------------------------------------------------------

// decodeRestPayload checks the status of a REST envelope and unmarshals its payload into out.
func decodeRestPayload(data []byte, out interface{}) error {
	var resp restResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	if resp.Status != "Ok" {
		var p restErrorPayload
		_ = json.Unmarshal(resp.Payload, &p)
		return fmt.Errorf("broker returned %s (tracking %s): %s %s", resp.Status, resp.TrackingID, p.Code, p.Message)
	}

	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}
	return nil
}
