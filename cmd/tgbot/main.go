package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/config"
	"github.com/Alias1177/HydraX/internal/notification"
	hsignal "github.com/Alias1177/HydraX/internal/signal"
	"github.com/Alias1177/HydraX/internal/storage/state"
)

// tgbot answers operator commands from the state files written by cmd/hydra.
// It never places orders.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)

	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Fatal().Msg("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set")
	}

	store, err := state.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open data directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var signals notification.SignalReader
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, /signals disabled")
		} else {
			signals = hsignal.NewRedisMirror(rdb, "", hsignal.DefaultLogSize)
		}
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	cmds := notification.NewCommands(store, signals, cfg.Symbols, cfg.Risk.AccountBalance)
	if err := notification.ServeCommands(ctx, api, cfg.Telegram.ChatID, cmds); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Command loop stopped")
	}
	log.Info().Msg("Operator bot stopped")
}
