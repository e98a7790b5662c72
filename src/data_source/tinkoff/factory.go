package tinkoff

import (
	"time"

	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ConnectionFactory opens Tinkoff connections that share one REST rate limiter.
type ConnectionFactory struct {
	Config       *models.MConfig
	Network      interfaces.INetworkManager
	ProxyManager interfaces.IProxyManager
	Limiter      *rate.Limiter
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewConnectionFactory(cfg *models.MConfig, network interfaces.INetworkManager, proxyManager interfaces.IProxyManager, log *logger.Logger) *ConnectionFactory {
	rps := cfg.Broker.RequestsPerSecond
	burst := cfg.Broker.RequestBurst
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &ConnectionFactory{
		Config:       cfg,
		Network:      network,
		ProxyManager: proxyManager,
		Limiter:      rate.NewLimiter(limit, burst),
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

// NewConnection never dials; the websocket opens on the first streaming request.
func (f *ConnectionFactory) NewConnection(token string) interfaces.IBrokerConnection {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if f.ProxyManager != nil {
		dialer.Proxy = f.ProxyManager.ProxyFunc()
	}

	rest := NewRestClient(f.Config.Broker.RestURL, token, f.Network, f.Limiter, f.Logger)
	return NewConnection(f.Config.Broker.StreamingURL, token, rest, dialer, f.Logger)
}
