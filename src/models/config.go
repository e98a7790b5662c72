package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port"`
	Broker     MBrokerConfig     `yaml:"broker"`
	Supervisor MSupervisorConfig `yaml:"supervisor"`
	MonthStats MMonthStatsConfig `yaml:"month_stats"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	Publisher  MPublisherConfig  `yaml:"publisher"`
	Tracing    MTracingConfig    `yaml:"tracing"`
}

// GetLogLevel lets the logger pick its level without importing models.
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

type MBrokerConfig struct {
	APIToken          string  `yaml:"api_token"`
	RestURL           string  `yaml:"rest_url"`
	StreamingURL      string  `yaml:"streaming_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestBurst      int     `yaml:"request_burst"`
	OrderbookDepth    int     `yaml:"orderbook_depth"`
}

type MSupervisorConfig struct {
	ResetCooldownSeconds  int    `yaml:"reset_cooldown_seconds"`
	GracePeriodSeconds    int    `yaml:"grace_period_seconds"`
	InactivitySeconds     int    `yaml:"inactivity_seconds"`
	MinUpdatedInstruments int    `yaml:"min_updated_instruments"`
	QuietWindowStart      string `yaml:"quiet_window_start"`
	QuietWindowEnd        string `yaml:"quiet_window_end"`
	Timezone              string `yaml:"timezone"`
	ExchangeMIC           string `yaml:"exchange_mic"`
	ResponseWorkers       int    `yaml:"response_workers"`
	SubscriptionBatch     int    `yaml:"subscription_batch"`
	SubscriptionPauseMs   int    `yaml:"subscription_pause_ms"`
}

type MMonthStatsConfig struct {
	StalenessHours        int `yaml:"staleness_hours"`
	RescanIntervalSeconds int `yaml:"rescan_interval_seconds"`
	RescanBatch           int `yaml:"rescan_batch"`
	RetryDelayMs          int `yaml:"retry_delay_ms"`
	RetentionDays         int `yaml:"retention_days"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MPublisherConfig struct {
	Redis MRedisConfig `yaml:"redis"`
	AMQP  MAMQPConfig  `yaml:"amqp"`
}

type MRedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	KeyTTL   int    `yaml:"key_ttl_seconds"`
}

type MAMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	BufferSize int    `yaml:"buffer_size"`
}

type MTracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}
