package models

// -----------------------------------------------------------------------------
// Stream events delivered by a broker connection.
// MStreamEvent is a closed set: only the types in this file implement it.
// -----------------------------------------------------------------------------

type MStreamEvent interface {
	streamEvent()
}

type MCandleEvent struct {
	Candle MCandle
}

type MOrderbookEvent struct {
	Figi  string
	Depth int
	Bids  []MOrderbookLevel
	Asks  []MOrderbookLevel
}

type MInstrumentInfoEvent struct {
	Figi        string
	TradeStatus string
}

// MStreamErrorEvent is an error the broker reports for a streaming request.
type MStreamErrorEvent struct {
	Error     string
	RequestID string
}

func (MCandleEvent) streamEvent()         {}
func (MOrderbookEvent) streamEvent()      {}
func (MInstrumentInfoEvent) streamEvent() {}
func (MStreamErrorEvent) streamEvent()    {}

// -----------------------------------------------------------------------------
// Streaming requests
// -----------------------------------------------------------------------------

type StreamingRequestKind string

const (
	SubscribeCandleKind         StreamingRequestKind = "candle:subscribe"
	UnsubscribeCandleKind       StreamingRequestKind = "candle:unsubscribe"
	SubscribeOrderbookKind      StreamingRequestKind = "orderbook:subscribe"
	SubscribeInstrumentInfoKind StreamingRequestKind = "instrument_info:subscribe"
)

// MStreamingRequest is a subscription command sent over a streaming connection.
type MStreamingRequest struct {
	Kind     StreamingRequestKind
	Figi     string
	Interval CandleInterval
	Depth    int
}

func SubscribeCandle(figi string, interval CandleInterval) MStreamingRequest {
	return MStreamingRequest{Kind: SubscribeCandleKind, Figi: figi, Interval: interval}
}

func SubscribeOrderbook(figi string, depth int) MStreamingRequest {
	return MStreamingRequest{Kind: SubscribeOrderbookKind, Figi: figi, Depth: depth}
}

func SubscribeInstrumentInfo(figi string) MStreamingRequest {
	return MStreamingRequest{Kind: SubscribeInstrumentInfoKind, Figi: figi}
}
