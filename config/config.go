// Package config loads the core's configuration from environment
// variables, matching every option spec §6 ("Configuration (recognized
// options)") names, plus the wiring needed for the ambient stack (Redis
// rate cache, Postgres archive, Prometheus).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Environment string
	ServerAddr  string

	OrderManager OrderManagerConfig
	Execution    ExecutionConfig
	Settlement   SettlementConfig
	Analytics    AnalyticsConfig

	Redis    RedisConfig
	Postgres PostgresConfig
	Metrics  MetricsConfig
}

// OrderManagerConfig covers spec §6's OM-facing options.
type OrderManagerConfig struct {
	SupportedOrderTypes []string
	MinOrderSize        string // decimal literal; parsed by callers via money.Parse
	MaxOrderSize        string
	MaxOrdersPerUser    int
	OrderExpiryHours    int
	SlippageTolerance   float64
}

// ExecutionConfig covers spec §6's EE-facing options.
type ExecutionConfig struct {
	Algorithms                []string
	LiquidityProviders        []string
	MaxSlippage               float64
	ExecutionTimeout          time.Duration
	PriceImprovementThreshold string // in price units, e.g. one pip
	EnableSmartRouting        bool
	TickInterval              time.Duration
	MaxPartialFills           int
}

// SettlementConfig covers spec §6's SE-facing options.
type SettlementConfig struct {
	SupportedCycles     []string
	DefaultCycle        string
	CutoffTimes         map[string]string // cycle -> "HH:MM"
	EnableNetting       bool
	RetryAttempts       int
	RetryDelay          time.Duration
	MaxSettlementAmount string
	ProcessorInterval   time.Duration
	CommissionRate      string
}

// AnalyticsConfig covers spec §6's AE-facing options.
type AnalyticsConfig struct {
	BaseCurrency           string
	PnLCalculationInterval time.Duration
	ReportingCurrencies    []string
	RiskMetricsEnabled     bool
	RateValidityPeriod     time.Duration
}

// RedisConfig configures the rate/quote cache (package ratecache).
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// PostgresConfig configures the settlement/order archival sink (package archive).
type PostgresConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// MetricsConfig configures the Prometheus exporter (package metrics).
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load loads configuration from environment variables, falling back to the
// spec-documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),

		OrderManager: OrderManagerConfig{
			SupportedOrderTypes: getEnvAsSlice("OM_ORDER_TYPES", []string{"market", "limit", "stop", "stop_limit", "trailing_stop"}, ","),
			MinOrderSize:        getEnv("OM_MIN_ORDER_SIZE", "0.01"),
			MaxOrderSize:        getEnv("OM_MAX_ORDER_SIZE", "100000000"),
			MaxOrdersPerUser:    getEnvAsInt("OM_MAX_ORDERS_PER_USER", 200),
			OrderExpiryHours:    getEnvAsInt("OM_ORDER_EXPIRY_HOURS", 24),
			SlippageTolerance:   getEnvAsFloat("OM_SLIPPAGE_TOLERANCE", 0.01),
		},

		Execution: ExecutionConfig{
			Algorithms:                getEnvAsSlice("EE_ALGORITHMS", []string{"TWAP", "VWAP", "Implementation_Shortfall", "POV", "Market_Making"}, ","),
			LiquidityProviders:        getEnvAsSlice("EE_LIQUIDITY_PROVIDERS", []string{}, ","),
			MaxSlippage:               getEnvAsFloat("EE_MAX_SLIPPAGE", 0.005),
			ExecutionTimeout:          getEnvAsDuration("EE_EXECUTION_TIMEOUT", 30*time.Second),
			PriceImprovementThreshold: getEnv("EE_PRICE_IMPROVEMENT_THRESHOLD", "0.0001"),
			EnableSmartRouting:        getEnvAsBool("EE_ENABLE_SMART_ROUTING", true),
			TickInterval:              getEnvAsDuration("EE_TICK_INTERVAL", 100*time.Millisecond),
			MaxPartialFills:           getEnvAsInt("EE_MAX_PARTIAL_FILLS", 3),
		},

		Settlement: SettlementConfig{
			SupportedCycles:     getEnvAsSlice("SE_SUPPORTED_CYCLES", []string{"T+0", "T+1", "T+2"}, ","),
			DefaultCycle:        getEnv("SE_DEFAULT_CYCLE", "T+2"),
			CutoffTimes:         map[string]string{"T+0": "17:00", "T+1": "17:00", "T+2": "17:00"},
			EnableNetting:       getEnvAsBool("SE_ENABLE_NETTING", true),
			RetryAttempts:       getEnvAsInt("SE_RETRY_ATTEMPTS", 5),
			RetryDelay:          getEnvAsDuration("SE_RETRY_DELAY", 30*time.Second),
			MaxSettlementAmount: getEnv("SE_MAX_SETTLEMENT_AMOUNT", "500000000"),
			ProcessorInterval:   getEnvAsDuration("SE_PROCESSOR_INTERVAL", 60*time.Second),
			CommissionRate:      getEnv("SE_COMMISSION_RATE", "0.001"),
		},

		Analytics: AnalyticsConfig{
			BaseCurrency:           getEnv("AE_BASE_CURRENCY", "USD"),
			PnLCalculationInterval: getEnvAsDuration("AE_PNL_INTERVAL", 60*time.Second),
			ReportingCurrencies:    getEnvAsSlice("AE_REPORTING_CURRENCIES", []string{"USD", "EUR", "GBP", "JPY"}, ","),
			RiskMetricsEnabled:     getEnvAsBool("AE_RISK_METRICS_ENABLED", true),
			RateValidityPeriod:     getEnvAsDuration("AE_RATE_VALIDITY_PERIOD", 60*time.Second),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "fxcore"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},

		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Addr:    getEnv("METRICS_ADDR", ":9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field invariants the spec requires at boot.
func (c *Config) Validate() error {
	switch c.Settlement.DefaultCycle {
	case "T+0", "T+1", "T+2":
	default:
		return fmt.Errorf("SE_DEFAULT_CYCLE must be one of T+0, T+1, T+2, got %q", c.Settlement.DefaultCycle)
	}
	if c.OrderManager.MaxOrdersPerUser <= 0 {
		return fmt.Errorf("OM_MAX_ORDERS_PER_USER must be positive")
	}
	return nil
}

// PostgresDSN builds the libpq connection string for pgxpool.
func (p PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Name, p.User, p.Password, p.SSLMode)
}

// RedisAddr builds the "host:port" address go-redis expects.
func (r RedisConfig) RedisAddr() string {
	return r.Host + ":" + r.Port
}

// Helper functions

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	return strings.Split(valueStr, sep)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultVal
	}
	return d
}
