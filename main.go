package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stock-trading-bot/config"
	"stock-trading-bot/internal/api"
	"stock-trading-bot/internal/broker"
	"stock-trading-bot/internal/engine"
	"stock-trading-bot/internal/events"
	"stock-trading-bot/internal/ledger"
	"stock-trading-bot/internal/market"
	"stock-trading-bot/internal/notify"
	"stock-trading-bot/internal/risk"
	"stock-trading-bot/internal/stats"
	"stock-trading-bot/internal/store"
	"stock-trading-bot/internal/strategy"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("starting stock trading bot")

	bus := events.NewEventBus()

	// Market data: mock, HTTP, optionally fronted by a Redis cache.
	var provider market.Provider
	if cfg.MarketConfig.MockMode {
		logger.Warn().Msg("mock market data enabled")
		provider = market.NewMockProvider(logger)
	} else {
		provider = market.NewHTTPProvider(cfg.MarketConfig.BaseURL, logger)
	}

	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, quote cache disabled")
			redisClient = nil
		}
		cancel()
		if redisClient != nil {
			provider = market.NewCachedProvider(provider, redisClient,
				time.Duration(cfg.MarketConfig.CacheTTLSecs)*time.Second, logger)
			defer redisClient.Close()
		}
	}

	// Persistence is optional; the bot trades in memory without it.
	var repo *store.Repository
	var engineStore engine.Store
	if cfg.DatabaseConfig.Enabled {
		db, err := store.NewDB(store.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("migrations failed")
		}
		cancel()

		repo = store.NewRepository(db)
		engineStore = repo
	}

	notifier := notify.NewManager(logger)
	if cfg.NotificationConfig.Enabled {
		notifier.AddNotifier(notify.NewTelegramNotifier(notify.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  cfg.NotificationConfig.Telegram.Enabled,
		}))
		wireNotifications(bus, notifier)
	}

	strat := strategy.NewSMARSIStrategy(strategy.Params{
		FastWindow: cfg.StrategyConfig.SMAFast,
		SlowWindow: cfg.StrategyConfig.SMASlow,
		RSIPeriod:  cfg.StrategyConfig.RSIPeriod,
		RSILower:   cfg.StrategyConfig.RSILower,
		RSIUpper:   cfg.StrategyConfig.RSIUpper,
	})
	riskMgr := risk.NewManager(risk.Config{
		MaxRiskPerTrade:   cfg.RiskConfig.MaxRiskPerTrade,
		MaxPositionSize:   cfg.RiskConfig.MaxPositionSize,
		ConservativeLimit: cfg.RiskConfig.ConservativeLimit,
		MaxDrawdown:       cfg.RiskConfig.MaxDrawdown,
		MaxDailyLoss:      cfg.RiskConfig.MaxDailyLoss,
		MaxPositions:      cfg.RiskConfig.MaxPositions,
	}, logger)
	book := ledger.NewLedger(cfg.AccountConfig.InitialEquity)
	gateway := broker.NewSimulatedGateway(logger)

	eng, err := engine.NewEngine(engine.Config{
		Symbols:              cfg.TradingConfig.Symbols,
		InitialEquity:        cfg.AccountConfig.InitialEquity,
		Interval:             cfg.TradingConfig.HistoryInterval,
		HistoryBars:          cfg.TradingConfig.HistoryBars,
		StopLossPct:          cfg.StrategyConfig.StopLossPct,
		TakeProfitPct:        cfg.StrategyConfig.TakeProfitPct,
		CapitalBuffer:        cfg.RiskConfig.CapitalBuffer,
		CheckInterval:        time.Duration(cfg.TradingConfig.CheckIntervalSecs) * time.Second,
		MarketClosedInterval: 5 * time.Minute,
		ErrorBackoff:         time.Minute,
		MarketOpen:           cfg.TradingConfig.MarketOpen,
		MarketClose:          cfg.TradingConfig.MarketClose,
		IgnoreWeekends:       cfg.TradingConfig.IgnoreWeekends,
		TestMode:             cfg.TradingConfig.TestMode,
	}, strat, riskMgr, provider, gateway, book, engineStore, bus, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine setup failed")
	}

	var recorder *stats.Recorder
	if repo != nil {
		recorder = stats.NewRecorder(eng, repo, logger)
		if err := recorder.Start(); err != nil {
			logger.Fatal().Err(err).Msg("stats recorder setup failed")
		}
	}

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			ProductionMode: cfg.ServerConfig.ProductionMode,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		}, eng, repo, cfg, bus, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Fatal().Err(err).Msg("API server failed")
			}
		}()
	}

	if err := eng.Start(); err != nil {
		logger.Fatal().Err(err).Msg("engine start failed")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	eng.Stop()
	if recorder != nil {
		recorder.Stop()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
		cancel()
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// wireNotifications forwards trading events to the notification
// channels.
func wireNotifications(bus *events.EventBus, notifier *notify.Manager) {
	bus.Subscribe(events.EventTradeOpened, func(e events.Event) {
		notifier.SendTradeOpen(
			asString(e.Data["symbol"]),
			asFloat(e.Data["entry_price"]),
			asFloat(e.Data["quantity"]),
			asFloat(e.Data["stop_loss"]),
			asFloat(e.Data["take_profit"]),
		)
	})
	bus.Subscribe(events.EventTradeClosed, func(e events.Event) {
		notifier.SendTradeClose(
			asString(e.Data["symbol"]),
			asFloat(e.Data["entry_price"]),
			asFloat(e.Data["exit_price"]),
			asFloat(e.Data["pnl"]),
			asString(e.Data["reason"]),
		)
	})
	bus.Subscribe(events.EventRiskHalt, func(e events.Event) {
		notifier.SendRiskHalt(asString(e.Data["reason"]), asFloat(e.Data["equity"]))
	})
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
