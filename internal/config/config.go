// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Batching  BatchingConfig  `mapstructure:"batching"`
	Logtail   LogtailConfig   `mapstructure:"logtail"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds chain access configuration.
type EthereumConfig struct {
	HTTPURL          string `mapstructure:"http_url"`
	ChainID          uint64 `mapstructure:"chain_id"` // 0 = ask the node
	PrivateKey       string `mapstructure:"private_key"`
	MulticallAddress string `mapstructure:"multicall_address"`
}

// MulticallAddressHex returns the aggregator address as common.Address.
func (c *EthereumConfig) MulticallAddressHex() common.Address {
	return common.HexToAddress(c.MulticallAddress)
}

// BatchingConfig holds batch cycle configuration.
type BatchingConfig struct {
	Interval                 time.Duration `mapstructure:"interval"`
	CycleTimeout             time.Duration `mapstructure:"cycle_timeout"` // 0 disables the deadline
	GasPriceCeiling          string        `mapstructure:"gas_price_ceiling"`
	FailurePolicy            string        `mapstructure:"failure_policy"`
	EstimationConcurrency    int           `mapstructure:"estimation_concurrency"`
	EstimationRatePerSecond  float64       `mapstructure:"estimation_rate_per_second"` // 0 = unlimited
	ConfirmationPollInterval time.Duration `mapstructure:"confirmation_poll_interval"`
	Calls                    []CallConfig  `mapstructure:"calls"`
}

// CallConfig is a call seeded into the queue at startup.
type CallConfig struct {
	Target       string `mapstructure:"target"`
	CallData     string `mapstructure:"call_data"`
	AllowFailure bool   `mapstructure:"allow_failure"`
}

// LogtailConfig holds the remote log sink configuration.
type LogtailConfig struct {
	SourceToken string        `mapstructure:"source_token"`
	Endpoint    string        `mapstructure:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether remote log shipping is configured.
func (c *LogtailConfig) Enabled() bool {
	return c.SourceToken != ""
}

// AMQPConfig holds the message exchange configuration.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Enabled reports whether publishing is configured.
func (c *AMQPConfig) Enabled() bool {
	return c.URL != "" && c.Exchange != ""
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MCB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
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
	v.BindEnv("app.name", "MCB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MCB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MCB_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.http_url", "MCB_RPC_URL", "RPC_URL")
	v.BindEnv("ethereum.chain_id", "MCB_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("ethereum.private_key", "MCB_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("ethereum.multicall_address", "MCB_MULTICALL3_ADDRESS", "MULTICALL3_ADDRESS")

	// Batching
	v.BindEnv("batching.interval", "MCB_BATCH_INTERVAL")
	v.BindEnv("batching.cycle_timeout", "MCB_CYCLE_TIMEOUT")
	v.BindEnv("batching.gas_price_ceiling", "MCB_GAS_PRICE_CEILING", "GAS_PRICE_CEILING_WEI")
	v.BindEnv("batching.failure_policy", "MCB_FAILURE_POLICY")

	// Notification
	v.BindEnv("logtail.source_token", "MCB_LOGTAIL_SOURCE_TOKEN", "LOGTAIL_SOURCE_TOKEN")
	v.BindEnv("amqp.url", "MCB_AMQP_URL", "AMQP_URL")
	v.BindEnv("amqp.exchange", "MCB_AMQP_EXCHANGE", "AMQP_EXCHANGE")

	// Telemetry
	v.BindEnv("telemetry.enabled", "MCB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MCB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "MCB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "MCB_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "multicall-batcher")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 0)
	v.SetDefault("ethereum.multicall_address", "0xcA11bde05977b3631167028862bE2a173976CA11") // canonical Multicall3

	// Batching defaults
	v.SetDefault("batching.interval", "1m")
	v.SetDefault("batching.cycle_timeout", "5m")
	v.SetDefault("batching.failure_policy", "drop")
	v.SetDefault("batching.estimation_concurrency", 16)
	v.SetDefault("batching.estimation_rate_per_second", 0)
	v.SetDefault("batching.confirmation_poll_interval", "2s")

	// Notification defaults
	v.SetDefault("logtail.endpoint", "https://in.logs.betterstack.com")
	v.SetDefault("logtail.timeout", "10s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "multicall-batcher")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if c.Ethereum.PrivateKey == "" {
		return fmt.Errorf("ethereum.private_key is required")
	}
	if !common.IsHexAddress(c.Ethereum.MulticallAddress) {
		return fmt.Errorf("invalid ethereum.multicall_address: %s", c.Ethereum.MulticallAddress)
	}
	if _, err := domain.ParseFailurePolicy(c.Batching.FailurePolicy); err != nil {
		return fmt.Errorf("batching.failure_policy: %w", err)
	}
	if _, err := domain.ParseGasPriceCeiling(c.Batching.GasPriceCeiling); err != nil {
		return fmt.Errorf("batching.gas_price_ceiling: %w", err)
	}
	if c.Batching.Interval <= 0 {
		return fmt.Errorf("batching.interval must be positive")
	}
	if c.Batching.EstimationConcurrency < 1 {
		return fmt.Errorf("batching.estimation_concurrency must be at least 1")
	}
	for i, call := range c.Batching.Calls {
		if !common.IsHexAddress(call.Target) {
			return fmt.Errorf("batching.calls[%d]: invalid target %q", i, call.Target)
		}
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		return fmt.Errorf("amqp.exchange is required when amqp.url is set")
	}
	return nil
}
