package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/utils"
)

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, proxyManager interfaces.IProxyManager, log *logger.Logger) *AsyncNetworkManager {
	if proxyManager == nil {
		var proxies []string
		if cfg.Network.Enabled {
			proxies = cfg.Network.Proxies
		}
		proxyManager = helpers.NewProxyManager(proxies, cfg.Network.UserAgent)
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: proxyManager,
		Logger:       log,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nm.ProxyManager.ProxyFunc()

	timeout := time.Duration(nm.Config.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
// Client errors other than 429 are returned without retrying.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Quadratic backoff, interrupted by ctx
			if err := utils.SleepContext(ctx, time.Duration(i*i)*time.Second); err != nil {
				return nil, err
			}
			nm.ProxyManager.RotateProxy()
		}

		body, status, err := nm.do(ctx, finalURL, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			nm.Logger.Warning("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("bad status: %d", status)
			nm.Logger.Warning("Request to %s got status %d (attempt %d/%d)", reqURL.Path, status, i+1, maxRetries+1)
			continue
		default:
			return nil, helpers.NewNetworkError(fmt.Sprintf("GET %s returned status %d", reqURL.Path, status), nil)
		}
	}

	return nil, helpers.NewNetworkError("max retries exceeded", lastErr)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
