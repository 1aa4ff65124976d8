package config

import (
	"fmt"
	"os"
	"strings"

	"flight_surety/internal/models"
	"flight_surety/internal/surety"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon
type Config struct {
	DBPath        string
	HTTPAddr      string
	MetricsAddr   string
	BatchSize     int
	BatchTimeout  int // seconds
	StatsInterval int // seconds
	Log           LogConfig
	Surety        SuretyConfig
	Kafka         KafkaConfig
	Genesis       map[models.Address]decimal.Decimal
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// SuretyConfig holds the deployment parameters of the engine
type SuretyConfig struct {
	Owner        models.Address
	FirstAirline models.Address
	Contract     models.Address
	Seed         uint64 // 0 draws a seed from crypto/rand
	Params       surety.Params
}

// KafkaConfig holds the event publisher configuration; empty brokers disables publishing
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	RelayInterval int // seconds between outbox relay runs
}

// Load loads configuration from config file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", "flight_surety.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("batch_size", 100)
	v.SetDefault("batch_timeout", 1)
	v.SetDefault("stats_interval", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("surety.owner", models.AddressFromIndex(1).String())
	v.SetDefault("surety.first_airline", models.AddressFromIndex(2).String())
	v.SetDefault("surety.contract", models.AddressFromIndex(0xc0).String())
	v.SetDefault("surety.seed", 0)
	v.SetDefault("surety.airline_fee", "10")
	v.SetDefault("surety.max_insurance", "1")
	v.SetDefault("surety.oracle_fee", "1")
	v.SetDefault("surety.index_bound", 10)
	v.SetDefault("surety.min_responses", 3)
	v.SetDefault("surety.bootstrap_airlines", 4)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "flight-surety-events")
	v.SetDefault("kafka.relay_interval", 5)
	v.SetDefault("genesis", map[string]string{})

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/flight_surety")
	v.AddConfigPath(".")

	if configPath := os.Getenv("FLIGHT_SURETY_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	}

	// A missing config file is fine: defaults and env vars apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FLIGHT_SURETY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := build(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// build converts raw viper values into typed configuration
func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DBPath:        v.GetString("db_path"),
		HTTPAddr:      v.GetString("http_addr"),
		MetricsAddr:   v.GetString("metrics_addr"),
		BatchSize:     v.GetInt("batch_size"),
		BatchTimeout:  v.GetInt("batch_timeout"),
		StatsInterval: v.GetInt("stats_interval"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Kafka: KafkaConfig{
			Brokers:       nonEmpty(v.GetStringSlice("kafka.brokers")),
			Topic:         v.GetString("kafka.topic"),
			RelayInterval: v.GetInt("kafka.relay_interval"),
		},
		Genesis: make(map[models.Address]decimal.Decimal),
	}

	var err error
	s := &cfg.Surety
	if s.Owner, err = models.ParseAddress(v.GetString("surety.owner")); err != nil {
		return nil, fmt.Errorf("surety.owner: %w", err)
	}
	if s.FirstAirline, err = models.ParseAddress(v.GetString("surety.first_airline")); err != nil {
		return nil, fmt.Errorf("surety.first_airline: %w", err)
	}
	if s.Contract, err = models.ParseAddress(v.GetString("surety.contract")); err != nil {
		return nil, fmt.Errorf("surety.contract: %w", err)
	}
	s.Seed = v.GetUint64("surety.seed")

	if s.Params.AirlineFee, err = models.Ether(v.GetString("surety.airline_fee")); err != nil {
		return nil, fmt.Errorf("surety.airline_fee: %w", err)
	}
	if s.Params.MaxInsurance, err = models.Ether(v.GetString("surety.max_insurance")); err != nil {
		return nil, fmt.Errorf("surety.max_insurance: %w", err)
	}
	if s.Params.OracleFee, err = models.Ether(v.GetString("surety.oracle_fee")); err != nil {
		return nil, fmt.Errorf("surety.oracle_fee: %w", err)
	}
	bound := v.GetInt("surety.index_bound")
	if bound <= 0 || bound > 255 {
		return nil, fmt.Errorf("surety.index_bound must be in [1, 255], got %d", bound)
	}
	s.Params.IndexBound = uint8(bound)
	s.Params.MinResponses = v.GetInt("surety.min_responses")
	s.Params.BootstrapAirlines = v.GetInt("surety.bootstrap_airlines")

	for raw, amount := range v.GetStringMapString("genesis") {
		addr, err := models.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("genesis: %w", err)
		}
		wei, err := models.Ether(amount)
		if err != nil {
			return nil, fmt.Errorf("genesis %s: %w", addr, err)
		}
		cfg.Genesis[addr] = wei
	}

	return cfg, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}

	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be greater than 0")
	}

	if cfg.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be greater than 0")
	}

	if cfg.StatsInterval <= 0 {
		return fmt.Errorf("stats_interval must be greater than 0")
	}

	if err := cfg.Surety.Params.Validate(); err != nil {
		return fmt.Errorf("surety: %w", err)
	}

	if cfg.Surety.Contract == cfg.Surety.Owner || cfg.Surety.Contract == cfg.Surety.FirstAirline {
		return fmt.Errorf("surety.contract must differ from owner and first airline")
	}

	for addr, wei := range cfg.Genesis {
		if wei.IsNegative() {
			return fmt.Errorf("genesis balance of %s must not be negative", addr)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
		}
		if cfg.Kafka.RelayInterval <= 0 {
			return fmt.Errorf("kafka.relay_interval must be greater than 0")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	return nil
}
