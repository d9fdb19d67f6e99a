package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AccountConfig      AccountConfig      `json:"account"`
	StrategyConfig     StrategyConfig     `json:"strategy"`
	RiskConfig         RiskConfig         `json:"risk"`
	TradingConfig      TradingConfig      `json:"trading"`
	MarketConfig       MarketConfig       `json:"market"`
	NotificationConfig NotificationConfig `json:"notification"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// AccountConfig holds the simulated account settings
type AccountConfig struct {
	InitialEquity float64 `json:"initial_equity"`
}

// StrategyConfig holds indicator windows and exit distances
type StrategyConfig struct {
	SMAFast       int     `json:"sma_fast"`
	SMASlow       int     `json:"sma_slow"`
	RSIPeriod     int     `json:"rsi_period"`
	RSILower      float64 `json:"rsi_lower"`
	RSIUpper      float64 `json:"rsi_upper"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
}

// RiskConfig holds per-trade and account-level risk limits
type RiskConfig struct {
	MaxRiskPerTrade   float64 `json:"max_risk_per_trade"`
	MaxPositionSize   float64 `json:"max_position_size"`
	ConservativeLimit float64 `json:"conservative_limit"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDailyLoss      float64 `json:"max_daily_loss"`
	MaxPositions      int     `json:"max_positions"`
	CapitalBuffer     float64 `json:"capital_buffer"`
}

// TradingConfig holds the trading loop settings
type TradingConfig struct {
	Symbols           []string `json:"symbols"`
	CheckIntervalSecs int      `json:"check_interval_secs"`
	HistoryInterval   string   `json:"history_interval"`
	HistoryBars       int      `json:"history_bars"`
	MarketOpen        string   `json:"market_open"`
	MarketClose       string   `json:"market_close"`
	IgnoreWeekends    bool     `json:"ignore_weekends"`
	TestMode          bool     `json:"test_mode"`
}

// MarketConfig holds market data provider settings
type MarketConfig struct {
	BaseURL      string `json:"base_url"`
	MockMode     bool   `json:"mock_mode"`
	CacheTTLSecs int    `json:"cache_ttl_secs"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for quote caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ServerConfig holds the web API settings
type ServerConfig struct {
	Enabled        bool     `json:"enabled"`
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `json:"level"` // debug, info, warn, error
	Pretty bool   `json:"pretty"`
}

// Load reads the config file when present, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		AccountConfig: AccountConfig{InitialEquity: 10000},
		StrategyConfig: StrategyConfig{
			SMAFast:       10,
			SMASlow:       25,
			RSIPeriod:     14,
			RSILower:      25,
			RSIUpper:      75,
			StopLossPct:   0.05,
			TakeProfitPct: 0.10,
		},
		RiskConfig: RiskConfig{
			MaxRiskPerTrade:   0.005,
			MaxPositionSize:   0.10,
			ConservativeLimit: 0.05,
			MaxDrawdown:       0.15,
			MaxDailyLoss:      0.03,
			MaxPositions:      2,
			CapitalBuffer:     0.95,
		},
		TradingConfig: TradingConfig{
			Symbols:           []string{"AAPL", "MSFT"},
			CheckIntervalSecs: 60,
			HistoryInterval:   "5m",
			HistoryBars:       50,
			MarketOpen:        "09:30",
			MarketClose:       "16:00",
		},
		MarketConfig: MarketConfig{
			CacheTTLSecs: 5,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "trading_bot",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Address: "localhost:6379",
		},
		ServerConfig: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		LoggingConfig: LoggingConfig{
			Level: "info",
		},
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.AccountConfig.InitialEquity = getEnvFloatOrDefault("INITIAL_EQUITY", cfg.AccountConfig.InitialEquity)

	if symbols := os.Getenv("TRADING_SYMBOLS"); symbols != "" {
		var out []string
		for _, p := range strings.Split(symbols, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		cfg.TradingConfig.Symbols = out
	}
	cfg.TradingConfig.CheckIntervalSecs = getEnvIntOrDefault("CHECK_INTERVAL_SECS", cfg.TradingConfig.CheckIntervalSecs)
	cfg.TradingConfig.TestMode = getEnvBoolOrDefault("TEST_MODE", cfg.TradingConfig.TestMode)

	cfg.MarketConfig.BaseURL = getEnvOrDefault("MARKET_BASE_URL", cfg.MarketConfig.BaseURL)
	cfg.MarketConfig.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.MarketConfig.MockMode)

	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)

	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.ServerConfig.ProductionMode)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvBoolOrDefault("LOG_PRETTY", cfg.LoggingConfig.Pretty)
}

// Validate rejects configurations the engine must not start with.
func (c *Config) Validate() error {
	if c.AccountConfig.InitialEquity <= 0 {
		return fmt.Errorf("initial_equity must be positive, got %v", c.AccountConfig.InitialEquity)
	}

	s := c.StrategyConfig
	if s.SMAFast <= 0 || s.SMASlow <= 0 {
		return fmt.Errorf("sma windows must be positive, got %d/%d", s.SMAFast, s.SMASlow)
	}
	if s.SMAFast >= s.SMASlow {
		return fmt.Errorf("sma_fast (%d) must be smaller than sma_slow (%d)", s.SMAFast, s.SMASlow)
	}
	if s.RSIPeriod <= 0 {
		return fmt.Errorf("rsi_period must be positive, got %d", s.RSIPeriod)
	}
	if s.RSILower < 0 || s.RSIUpper > 100 || s.RSILower >= s.RSIUpper {
		return fmt.Errorf("rsi bounds must satisfy 0 <= lower < upper <= 100, got %v/%v", s.RSILower, s.RSIUpper)
	}
	if s.StopLossPct <= 0 || s.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0, 1), got %v", s.StopLossPct)
	}
	if s.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be positive, got %v", s.TakeProfitPct)
	}

	r := c.RiskConfig
	for name, v := range map[string]float64{
		"max_risk_per_trade": r.MaxRiskPerTrade,
		"max_position_size":  r.MaxPositionSize,
		"conservative_limit": r.ConservativeLimit,
		"max_drawdown":       r.MaxDrawdown,
		"max_daily_loss":     r.MaxDailyLoss,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be in (0, 1), got %v", name, v)
		}
	}
	if r.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive, got %d", r.MaxPositions)
	}
	if r.CapitalBuffer <= 0 || r.CapitalBuffer > 1 {
		return fmt.Errorf("capital_buffer must be in (0, 1], got %v", r.CapitalBuffer)
	}

	if len(c.TradingConfig.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol required")
	}
	if c.TradingConfig.CheckIntervalSecs <= 0 {
		return fmt.Errorf("check_interval_secs must be positive, got %d", c.TradingConfig.CheckIntervalSecs)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
