package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/api/twelvedata"
	"github.com/Alias1177/HydraX/internal/config"
	"github.com/Alias1177/HydraX/internal/database"
	"github.com/Alias1177/HydraX/internal/report"
	"github.com/Alias1177/HydraX/internal/storage/state"
	"github.com/Alias1177/HydraX/internal/trading/backtest"
	"github.com/Alias1177/HydraX/models"
)

func main() {
	dataDir := flag.String("data-dir", "data", "Directory holding trade_history.json")
	balance := flag.Float64("balance", 10000, "Starting balance for the equity curve")
	fromDB := flag.Bool("from-db", false, "Read the PostgreSQL trade journal (DB_* env vars) instead of the JSON history")
	days := flag.Int("days", 0, "Only include trades closed in the last N days (0 = all)")
	replayDays := flag.Int("replay-days", 0, "Replay the last N days of TwelveData history through the strategy instead of reading trades")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to replay")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.InfoLevel)
	_ = godotenv.Load()

	if *replayDays > 0 {
		if err := replay(*symbol, *replayDays); err != nil {
			fmt.Fprintf(os.Stderr, "Error running replay: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var since time.Time
	if *days > 0 {
		since = time.Now().UTC().AddDate(0, 0, -*days)
	}

	trades, err := loadTrades(*dataDir, *fromDB, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trades: %v\n", err)
		os.Exit(1)
	}

	report.Build(trades, *balance).Print(os.Stdout)
}

func loadTrades(dataDir string, fromDB bool, since time.Time) ([]models.TradeRecord, error) {
	if fromDB {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := database.New(ctx, database.ConnectionParams{
			Host:     os.Getenv("DB_HOST"),
			Port:     envOr("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  os.Getenv("DB_SSLMODE"),
		})
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.Trades(ctx, since, time.Now().UTC())
	}

	store, err := state.NewStore(dataDir)
	if err != nil {
		return nil, err
	}
	all, err := store.LoadTradeHistory()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return all, nil
	}
	out := all[:0]
	for _, t := range all {
		if !t.ExitTime.Before(since) {
			out = append(out, t)
		}
	}
	log.Debug().Int("total", len(all)).Int("selected", len(out)).Msg("Filtered trade history")
	return out, nil
}

// replay runs the live stack over history and prints the resulting report
func replay(symbol string, days int) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	bc := cfg.BotConfig()
	engine := backtest.NewEngine(source, backtest.Config{
		EntryTimeframe:  bc.EntryTimeframe,
		MidTimeframe:    bc.MidTimeframe,
		HigherTimeframe: bc.HigherTimeframe,
		Days:            days,
		CandleLimit:     bc.CandleLimit,
	}, cfg.SignalConfig(), cfg.RiskConfig(), cfg.ExecutionConfig())

	res, err := engine.Run(ctx, symbol)
	if err != nil {
		return err
	}
	fmt.Printf("Replay %s over %d days: %d steps, %d signals, %d positions still open\n\n",
		res.Symbol, days, res.Steps, res.Signals, len(res.OpenAtEnd))
	report.Build(res.Trades, cfg.Risk.AccountBalance).Print(os.Stdout)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
