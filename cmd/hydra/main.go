package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/api/twelvedata"
	"github.com/Alias1177/HydraX/internal/bot"
	"github.com/Alias1177/HydraX/internal/config"
	"github.com/Alias1177/HydraX/internal/database"
	"github.com/Alias1177/HydraX/internal/exchange"
	"github.com/Alias1177/HydraX/internal/market"
	"github.com/Alias1177/HydraX/internal/notification"
	hsignal "github.com/Alias1177/HydraX/internal/signal"
	"github.com/Alias1177/HydraX/internal/storage/state"
	"github.com/Alias1177/HydraX/internal/trading/execution"
	"github.com/Alias1177/HydraX/internal/trading/risk"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load configuration
	cfg, err := config.Load("")
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	// 2. Configure logging
	closeLog := setupLogging(cfg.LogLevel, cfg.LogFile)
	defer closeLog()
	log.Info().Msg("Starting HydraX")
	printConfig(cfg)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Durable state
	store, err := state.NewStore(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open data directory")
		return 1
	}
	riskEngine := risk.NewEngine(cfg.RiskConfig(), store)

	// 4. Notifications outlive the signal context so shutdown messages still go out
	dispatcher := notification.NewDispatcher(newSender(cfg), notification.DefaultBuffer)
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	// 5. Market data and paper exchange
	source := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	paper := exchange.NewPaper(source, cfg.PaperConfig())

	// 6. Optional trade journal and signal mirror
	opts := []execution.Option{execution.WithNotifier(dispatcher)}
	if cfg.Database.Host != "" {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Trade journal unavailable, continuing with JSON history only")
		} else {
			defer db.Close()
			opts = append(opts, execution.WithJournal(db))
		}
	}

	var mirror hsignal.Mirror
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, signal mirror disabled")
		} else {
			mirror = hsignal.NewRedisMirror(rdb, "", hsignal.DefaultLogSize)
		}
	}

	// 7. Execution and scheduler
	executor := execution.NewExecutor(cfg.ExecutionConfig(), paper, riskEngine, store, opts...)
	if required, reason := executor.ProbeRequired(); required {
		log.Warn().Str("reason", reason).Msg("Safety probe pending, the first signal will be traded at minimum risk")
	}
	summary := bot.NewSummaryTracker(store, riskEngine, dispatcher, cfg.Leverage)

	b := bot.New(cfg.BotConfig(), bot.Deps{
		Exchange:  paper,
		Candles:   market.NewStore(market.DefaultCapacity),
		Generator: hsignal.NewGenerator(cfg.SignalConfig()),
		Signals:   hsignal.NewLog(hsignal.DefaultLogSize, mirror),
		Risk:      riskEngine,
		Executor:  executor,
		Summary:   summary,
		Caches:    store,
	})

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Bot stopped with error")
	}

	// 8. Graceful shutdown
	log.Info().Msg("Shutting down")
	code := 0
	if err := executor.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
		if errors.Is(err, execution.ErrShutdownTimeout) {
			code = 1
		}
	}
	summary.Stop(executor.Positions())
	if n := dispatcher.Dropped(); n > 0 {
		log.Warn().Int64("dropped", n).Msg("Notifications dropped during run")
	}
	log.Info().Int("exit_code", code).Msg("HydraX stopped")
	return code
}

func newSender(cfg *config.Config) notification.Sender {
	if !cfg.Telegram.Enabled {
		log.Info().Msg("Telegram disabled, notifications go to the log")
		return notification.NewLogSender()
	}
	sender, err := notification.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram unavailable, notifications go to the log")
		return notification.NewLogSender()
	}
	return sender
}

// setupLogging configures the logger; the returned func closes the log file
func setupLogging(logLevel, logFile string) func() {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	closer := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Warn().Err(err).Str("path", logFile).Msg("Cannot open log file")
		} else {
			out = zerolog.MultiLevelWriter(out, f)
			closer = func() { _ = f.Close() }
		}
	}
	log.Logger = log.Output(out)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
	return closer
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	log.Info().
		Strs("Symbols", cfg.Symbols).
		Int("SignalInterval", cfg.SignalInterval).
		Str("DataDir", cfg.DataDir).
		Str("EntryTF", cfg.Timeframes.Entry).
		Str("MidTF", cfg.Timeframes.Mid).
		Str("HigherTF", cfg.Timeframes.Higher).
		Float64("AccountBalance", cfg.Risk.AccountBalance).
		Float64("RiskPercent", cfg.Risk.RiskPercent).
		Float64("MaxSpreadPoints", cfg.Risk.MaxSpreadPoints).
		Int("MinConfirmations", cfg.Signal.MinConfirmations).
		Bool("Telegram", cfg.Telegram.Enabled).
		Bool("Journal", cfg.Database.Host != "").
		Bool("RedisMirror", cfg.RedisAddr != "").
		Msg("Configuration loaded")
}
