// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Wallet transports.
const (
	TransportWS   = "ws"
	TransportHTTP = "http"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Contract  ContractConfig  `mapstructure:"contract"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Events    EventsConfig    `mapstructure:"events"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// WalletConfig describes how to reach the wallet provider.
type WalletConfig struct {
	Transport           string        `mapstructure:"transport"` // ws | http
	URL                 string        `mapstructure:"url"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"` // bound on the account-access prompt
	AccountPollInterval time.Duration `mapstructure:"account_poll_interval"`
}

// EthereumConfig holds node configuration used for reads, logs and receipts.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// ContractConfig holds the addresses the dashboard binds to.
type ContractConfig struct {
	EventDemoAddress string `mapstructure:"event_demo_address"`
	SIMTokenAddress  string `mapstructure:"sim_token_address"`
}

// PipelineConfig bounds transaction confirmation tracking.
type PipelineConfig struct {
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
}

// EventsConfig controls history paging and resubscription.
type EventsConfig struct {
	FromBlock         uint64        `mapstructure:"from_block"`
	HistoryBatchSize  uint64        `mapstructure:"history_batch_size"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	PollInterval      time.Duration `mapstructure:"poll_interval"` // used when the node cannot push logs
	BufferSize        int           `mapstructure:"buffer_size"`
	ResubscribeMin    time.Duration `mapstructure:"resubscribe_min"`
	ResubscribeMax    time.Duration `mapstructure:"resubscribe_max"`
}

// StorageConfig holds the transaction journal location.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Exporter       string `mapstructure:"exporter"` // otlp-grpc | otlp-http | zipkin | console
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	ZipkinURL      string `mapstructure:"zipkin_url"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DAPP_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DAPP_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DAPP_LOG_LEVEL", "LOG_LEVEL")

	// Wallet
	v.BindEnv("wallet.transport", "DAPP_WALLET_TRANSPORT")
	v.BindEnv("wallet.url", "DAPP_WALLET_URL", "WALLET_URL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "DAPP_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "DAPP_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "DAPP_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Contracts
	v.BindEnv("contract.event_demo_address", "DAPP_EVENT_DEMO_ADDRESS", "CONTRACT_ADDRESS")
	v.BindEnv("contract.sim_token_address", "DAPP_SIM_TOKEN_ADDRESS", "SIM_TOKEN_ADDRESS")

	// Storage
	v.BindEnv("storage.db_path", "DAPP_DB_PATH")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DAPP_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DAPP_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DAPP_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "DAPP_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dapp-bridge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Wallet defaults
	v.SetDefault("wallet.transport", TransportWS)
	v.SetDefault("wallet.url", "ws://127.0.0.1:8546")
	v.SetDefault("wallet.request_timeout", "30s")
	v.SetDefault("wallet.connect_timeout", "2m")
	v.SetDefault("wallet.account_poll_interval", "5s")

	// Ethereum defaults
	v.SetDefault("ethereum.http_url", "http://127.0.0.1:8545")
	v.SetDefault("ethereum.chain_id", 11155111)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")

	// Pipeline defaults
	v.SetDefault("pipeline.confirmation_timeout", "3m")
	v.SetDefault("pipeline.poll_interval", "2s")

	// Events defaults
	v.SetDefault("events.from_block", 0)
	v.SetDefault("events.history_batch_size", 5000)
	v.SetDefault("events.requests_per_minute", 300)
	v.SetDefault("events.poll_interval", "4s")
	v.SetDefault("events.buffer_size", 64)
	v.SetDefault("events.resubscribe_min", "500ms")
	v.SetDefault("events.resubscribe_max", "30s")

	// Storage defaults
	v.SetDefault("storage.db_path", "dapp-bridge.db")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dapp-bridge")
	v.SetDefault("telemetry.exporter", "otlp-grpc")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Wallet.Transport {
	case TransportWS, TransportHTTP:
	default:
		return fmt.Errorf("wallet.transport must be %q or %q, got %q", TransportWS, TransportHTTP, c.Wallet.Transport)
	}
	if c.Wallet.URL == "" {
		return fmt.Errorf("wallet.url is required")
	}
	if _, err := url.Parse(c.Wallet.URL); err != nil {
		return fmt.Errorf("invalid wallet.url: %w", err)
	}
	if c.Ethereum.WebSocketURL == "" && c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("one of ethereum.websocket_url or ethereum.http_url is required")
	}
	if c.Contract.EventDemoAddress == "" {
		return fmt.Errorf("contract.event_demo_address is required")
	}
	if c.Contract.SIMTokenAddress != "" && !common.IsHexAddress(strings.TrimSpace(c.Contract.SIMTokenAddress)) {
		return fmt.Errorf("invalid contract.sim_token_address: %s", c.Contract.SIMTokenAddress)
	}
	if c.Pipeline.ConfirmationTimeout <= 0 {
		return fmt.Errorf("pipeline.confirmation_timeout must be positive")
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline.poll_interval must be positive")
	}
	if c.Events.HistoryBatchSize == 0 {
		return fmt.Errorf("events.history_batch_size must be positive")
	}
	return nil
}

// NodeURL returns the preferred node endpoint (websocket first).
func (c *EthereumConfig) NodeURL() string {
	if c.WebSocketURL != "" {
		return c.WebSocketURL
	}
	return c.HTTPURL
}
