package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// IndicatorConfig enumerates the feature-engineering options.
type IndicatorConfig struct {
	SMAWindows       []int
	EMAPeriod        int
	RSIPeriod        int
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int
	ROCPeriod        int
	VolWindow        int
	LagDepth         int
	Horizon          int
	FlatEpsilon      float64 // |forward return| below this is FLAT
}

// Config holds all application configuration.
type Config struct {
	Symbol         string
	DataFile       string
	APIKey         string
	APIBaseURL     string
	LogLevel       string
	RequestTimeout int // seconds

	Indicators IndicatorConfig

	// Walk-forward settings
	TrainSize int
	TestSize  int
	Workers   int
	FitBudget time.Duration

	// Backtest settings
	CostBps float64

	// Postgres persistence; disabled when DBHost is empty
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	PolicyFile string
}

// Load initializes configuration from environment variables.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		Symbol:         getEnvWithDefault("SYMBOL", "SPY"),
		DataFile:       os.Getenv("DATA_FILE"),
		APIKey:         os.Getenv("MARKET_API_KEY"),
		APIBaseURL:     getEnvWithDefault("MARKET_API_URL", "https://api.twelvedata.com"),
		LogLevel:       getEnvWithDefault("LOG_LEVEL", "info"),
		RequestTimeout: getEnvIntWithDefault("REQUEST_TIMEOUT", 30),

		Indicators: IndicatorConfig{
			SMAWindows:       []int{getEnvIntWithDefault("SMA_FAST", 10), getEnvIntWithDefault("SMA_SLOW", 20)},
			EMAPeriod:        getEnvIntWithDefault("EMA_PERIOD", 10),
			RSIPeriod:        getEnvIntWithDefault("RSI_PERIOD", 14),
			MACDFastPeriod:   getEnvIntWithDefault("MACD_FAST_PERIOD", 12),
			MACDSlowPeriod:   getEnvIntWithDefault("MACD_SLOW_PERIOD", 26),
			MACDSignalPeriod: getEnvIntWithDefault("MACD_SIGNAL_PERIOD", 9),
			ROCPeriod:        getEnvIntWithDefault("ROC_PERIOD", 10),
			VolWindow:        getEnvIntWithDefault("VOL_WINDOW", 20),
			LagDepth:         getEnvIntWithDefault("LAG_DEPTH", 5),
			Horizon:          getEnvIntWithDefault("TARGET_HORIZON", 1),
			FlatEpsilon:      getEnvFloatWithDefault("FLAT_EPSILON", 0.0005),
		},

		TrainSize: getEnvIntWithDefault("TRAIN_SIZE", 252),
		TestSize:  getEnvIntWithDefault("TEST_SIZE", 21),
		Workers:   getEnvIntWithDefault("WORKERS", 4),
		FitBudget: time.Duration(getEnvIntWithDefault("FIT_BUDGET_SEC", 60)) * time.Second,

		CostBps: getEnvFloatWithDefault("COST_BPS", 5),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     getEnvWithDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnvWithDefault("DB_NAME", "foresight"),
		DBSSLMode:  getEnvWithDefault("DB_SSL_MODE", "disable"),

		PolicyFile: os.Getenv("ENSEMBLE_POLICY_FILE"),
	}

	return cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
