package tinkoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"golang.org/x/time/rate"
)

// RestClient issues the REST calls of one broker connection.
// The limiter is shared by every client created from the same factory.
type RestClient struct {
	BaseURL string
	Token   string
	Network interfaces.INetworkManager
	Limiter *rate.Limiter
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRestClient(baseURL, token string, network interfaces.INetworkManager, limiter *rate.Limiter, log *logger.Logger) *RestClient {
	return &RestClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Network: network,
		Limiter: limiter,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// MarketCandles fetches candles for [from, to).
func (c *RestClient) MarketCandles(ctx context.Context, figi string, from, to time.Time, interval models.CandleInterval) ([]models.MCandle, error) {
	params := map[string]string{
		"figi":     figi,
		"from":     from.Format(time.RFC3339),
		"to":       to.Format(time.RFC3339),
		"interval": string(interval),
	}

	var payload candlesPayload
	if err := c.get(ctx, "/market/candles", params, &payload); err != nil {
		return nil, helpers.NewBrokerError(fmt.Sprintf("candles for %s", figi), err)
	}

	candles := make([]models.MCandle, 0, len(payload.Candles))
	for _, p := range payload.Candles {
		candle := p.toModel()
		if candle.Figi == "" {
			candle.Figi = figi
		}
		if candle.Interval == "" {
			candle.Interval = interval
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

// MarketStocks lists the stock universe.
func (c *RestClient) MarketStocks(ctx context.Context) ([]models.MMarketInstrument, error) {
	var payload marketInstrumentListPayload
	if err := c.get(ctx, "/market/stocks", nil, &payload); err != nil {
		return nil, helpers.NewBrokerError("market stocks", err)
	}
	c.Logger.Info("Broker listed %d stocks", len(payload.Instruments))
	return payload.Instruments, nil
}

// -----------------------------------------------------------------------------

func (c *RestClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	// 1. Respect the broker rate limit
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	// 2. Perform the request
	headers := map[string]string{"Authorization": "Bearer " + c.Token}
	body, err := c.Network.Get(ctx, c.BaseURL+path, params, headers)
	if err != nil {
		return err
	}

	// 3. Unwrap the response envelope
	return decodeRestPayload(body, out)
}
