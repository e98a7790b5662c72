package main

import (
	"context"

	"stocks-ngine/src/data_source/tinkoff"
	"stocks-ngine/src/helpers"
	"stocks-ngine/src/interfaces"
	"stocks-ngine/src/logger"
	"stocks-ngine/src/models"
	"stocks-ngine/src/network"
	"stocks-ngine/src/publisher"
	"stocks-ngine/src/registry"
	"stocks-ngine/src/storage"
)

// -----------------------------------------------------------------------------

// setupDatabase returns nil when storage is disabled.
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	if !config.Storage.Enabled {
		appLogger.Info("Storage disabled, history stays in memory")
		return nil, nil
	}

	db, err := storage.NewDatabase(config)
	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		return nil, err
	}
	appLogger.Info("Storage ready (%s)", config.Storage.DBType)
	return db, nil
}

// -----------------------------------------------------------------------------

// setupNetwork builds the proxy rotation shared by REST and streaming.
func setupNetwork(config *models.MConfig) (interfaces.IProxyManager, interfaces.INetworkManager) {
	var proxies []string
	if config.Network.Enabled {
		proxies = config.Network.Proxies
	}
	proxyManager := helpers.NewProxyManager(proxies, config.Network.UserAgent)

	networkLogger := logger.NewLogger(config, "NetworkManager")
	return proxyManager, network.NewAsyncNetworkManager(config, proxyManager, networkLogger)
}

// -----------------------------------------------------------------------------

func setupBroker(config *models.MConfig, nm interfaces.INetworkManager, pm interfaces.IProxyManager) interfaces.IConnectionFactory {
	return tinkoff.NewConnectionFactory(config, nm, pm, logger.NewLogger(config, "Tinkoff"))
}

// -----------------------------------------------------------------------------

// setupPublishers wires the optional Redis and AMQP outputs. A broker that
// cannot be reached is logged and skipped.
func setupPublishers(ctx context.Context, config *models.MConfig, fanout *publisher.StatusFanout,
	model *registry.MainModel, appLogger *logger.Logger) []func() {
	var closers []func()

	if config.Publisher.Redis.Enabled {
		rp, err := publisher.NewRedisStatusPublisher(ctx, config, logger.NewLogger(config, "RedisPublisher"))
		if err != nil {
			appLogger.Error("Redis publisher disabled: %v", err)
		} else {
			go rp.Run(ctx)
			fanout.Add(rp)
			closers = append(closers, func() { rp.Close() })
		}
	}

	if config.Publisher.AMQP.Enabled {
		an, err := publisher.NewAMQPNotifier(ctx, config, logger.NewLogger(config, "AMQPNotifier"))
		if err != nil {
			appLogger.Error("AMQP notifier disabled: %v", err)
		} else {
			go an.Run(ctx)
			model.AddNotifier(an)
			closers = append(closers, an.Close)
		}
	}

	return closers
}
