package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"stocks-ngine/src/helpers"
	"stocks-ngine/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const tokenEnvVar = "TINKOFF_API_TOKEN"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from raw YAML, applying defaults and environment overrides.
func Parse(data []byte) (*Config, error) {
	// 1. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 2. .env is optional; a present but broken file is an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, helpers.NewConfigurationError("failed to load .env", err)
	}
	if token := strings.TrimSpace(os.Getenv(tokenEnvVar)); token != "" {
		config.Broker.APIToken = token
	}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills zero values with the production settings.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "stocks-ngine"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = c.Host
	}
	if c.GrpcPort == 0 {
		c.GrpcPort = 50051
	}

	b := &c.Broker
	if b.RestURL == "" {
		b.RestURL = "https://api-invest.tinkoff.ru/openapi"
	}
	if b.StreamingURL == "" {
		b.StreamingURL = "wss://api-invest.tinkoff.ru/openapi/md/v1/md-openapi/ws"
	}
	if b.RequestsPerSecond <= 0 {
		b.RequestsPerSecond = 2
	}
	if b.RequestBurst <= 0 {
		b.RequestBurst = 1
	}
	if b.OrderbookDepth <= 0 {
		b.OrderbookDepth = 5
	}

	s := &c.Supervisor
	if s.ResetCooldownSeconds <= 0 {
		s.ResetCooldownSeconds = 10
	}
	if s.GracePeriodSeconds <= 0 {
		s.GracePeriodSeconds = 10
	}
	if s.InactivitySeconds <= 0 {
		s.InactivitySeconds = 5
	}
	if s.MinUpdatedInstruments <= 0 {
		s.MinUpdatedInstruments = 10
	}
	if s.QuietWindowStart == "" {
		s.QuietWindowStart = "01:45"
	}
	if s.QuietWindowEnd == "" {
		s.QuietWindowEnd = "10:00"
	}
	if s.Timezone == "" {
		s.Timezone = "Local"
	}
	if s.ResponseWorkers <= 0 {
		s.ResponseWorkers = 1
	}
	if s.SubscriptionBatch <= 0 {
		s.SubscriptionBatch = 100
	}
	if s.SubscriptionPauseMs <= 0 {
		s.SubscriptionPauseMs = 1000
	}

	m := &c.MonthStats
	if m.StalenessHours <= 0 {
		m.StalenessHours = 24
	}
	if m.RescanIntervalSeconds <= 0 {
		m.RescanIntervalSeconds = 31
	}
	if m.RescanBatch <= 0 {
		m.RescanBatch = 30
	}
	if m.RetryDelayMs <= 0 {
		m.RetryDelayMs = 500
	}
	if m.RetentionDays <= 0 {
		m.RetentionDays = 32
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = "stocks.db"
	}

	if c.Network.RequestTimeout <= 0 {
		c.Network.RequestTimeout = 30
	}
	if c.Network.MaxRetries < 0 {
		c.Network.MaxRetries = 0
	}

	if c.Publisher.Redis.Channel == "" {
		c.Publisher.Redis.Channel = "stocks-ngine:status"
	}
	if c.Publisher.AMQP.Exchange == "" {
		c.Publisher.AMQP.Exchange = "stocks-ngine"
	}
	if c.Publisher.AMQP.RoutingKey == "" {
		c.Publisher.AMQP.RoutingKey = "instrument.updated"
	}
	if c.Publisher.AMQP.BufferSize <= 0 {
		c.Publisher.AMQP.BufferSize = 1024
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return helpers.NewValidationError("application name cannot be empty", nil)
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return helpers.NewValidationError("server host cannot be empty", nil)
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return helpers.NewValidationError(fmt.Sprintf("invalid server port number: %d (must be between 1025 and 65535)", c.Port), nil)
	}
	if c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port {
		return helpers.NewValidationError(fmt.Sprintf("invalid grpc port number: %d", c.GrpcPort), nil)
	}

	// Validate Broker configuration
	if c.Broker.APIToken == "" {
		return helpers.NewValidationError("broker api token is empty (set broker.api_token or "+tokenEnvVar+")", nil)
	}
	if !strings.HasPrefix(c.Broker.StreamingURL, "ws://") && !strings.HasPrefix(c.Broker.StreamingURL, "wss://") {
		return helpers.NewValidationError(fmt.Sprintf("streaming url must be a websocket url: %q", c.Broker.StreamingURL), nil)
	}

	// Validate Supervisor configuration
	for _, clock := range []string{c.Supervisor.QuietWindowStart, c.Supervisor.QuietWindowEnd} {
		var h, m int
		if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return helpers.NewValidationError(fmt.Sprintf("invalid quiet window bound %q (want HH:MM)", clock), err)
		}
	}

	// Validate Storage configuration
	if c.Storage.Enabled {
		switch c.Storage.DBType {
		case "sqlite":
			if c.Storage.DBPath == "" {
				return helpers.NewValidationError("database path cannot be empty for sqlite", nil)
			}
		case "postgres":
			if c.Storage.DBConnectionString == "" {
				return helpers.NewValidationError("connection string cannot be empty for postgres", nil)
			}
		default:
			return helpers.NewValidationError(fmt.Sprintf("unsupported database type: %s", c.Storage.DBType), nil)
		}
	}

	// Validate Publisher configuration
	if c.Publisher.Redis.Enabled && c.Publisher.Redis.Addr == "" {
		return helpers.NewValidationError("redis address cannot be empty", nil)
	}
	if c.Publisher.AMQP.Enabled && c.Publisher.AMQP.URL == "" {
		return helpers.NewValidationError("amqp url cannot be empty", nil)
	}

	return nil
}

// -----------------------------------------------------------------------------

// APIToken implements ISettingsProvider.
func (c *Config) APIToken() string {
	return c.Broker.APIToken
}
