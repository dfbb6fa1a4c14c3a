package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/HydraX/internal/bot"
	"github.com/Alias1177/HydraX/internal/database"
	"github.com/Alias1177/HydraX/internal/exchange"
	"github.com/Alias1177/HydraX/internal/retry"
	"github.com/Alias1177/HydraX/internal/signal"
	"github.com/Alias1177/HydraX/internal/trading/execution"
	"github.com/Alias1177/HydraX/internal/trading/risk"
	"github.com/Alias1177/HydraX/models"
)

// DefaultPath is read when HYDRA_CONFIG is not set
const DefaultPath = "config.yaml"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Symbols        []string `yaml:"symbols"`
	SignalInterval int      `yaml:"signal_interval"` // seconds
	DataDir        string   `yaml:"data_dir"`
	LogLevel       string   `yaml:"log_level"`
	LogFile        string   `yaml:"log_file"`
	Leverage       float64  `yaml:"leverage"`

	Timeframes Timeframes `yaml:"timeframes"`
	Risk       Risk       `yaml:"risk_management"`
	Signal     Signal     `yaml:"signal"`
	Execution  Execution  `yaml:"execution"`
	Paper      Paper      `yaml:"paper"`
	Telegram   Telegram   `yaml:"telegram"`

	TwelveAPIKey   string `yaml:"-"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
	RequestsPerSec int    `yaml:"requests_per_sec"`

	Database database.ConnectionParams `yaml:"-"`
	RedisAddr string                   `yaml:"-"`
}

// Timeframes for the three analysis layers
type Timeframes struct {
	Entry  string `yaml:"entry"`
	Mid    string `yaml:"mid"`
	Higher string `yaml:"higher"`
	Limit  int    `yaml:"candle_limit"`
}

// Risk mirrors the risk engine settings
type Risk struct {
	AccountBalance       float64 `yaml:"account_balance"`
	RiskPercent          float64 `yaml:"risk_percent"`
	MaxSpreadPoints      float64 `yaml:"max_spread_points"`
	MaxDailyLoss         float64 `yaml:"max_daily_loss"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	MinLotSize           float64 `yaml:"exchange_min_lot_size"`
	MaxSlippagePct       float64 `yaml:"max_slippage_pct"`
}

// Signal holds the orchestrator gates
type Signal struct {
	MinConfirmations int     `yaml:"min_confirmations"`
	MinStrength      float64 `yaml:"min_signal_strength"`
	TP1Multiple      float64 `yaml:"atr_multiplier_tp1"`
	TP2Multiple      float64 `yaml:"atr_multiplier_tp2"`
	EMAFast          int     `yaml:"ema_fast"`
	EMASlow          int     `yaml:"ema_slow"`
}

// Execution holds camouflage and retry settings
type Execution struct {
	LotVariancePct   float64 `yaml:"lot_variance_pct"`
	PriceVariancePct float64 `yaml:"tp_sl_variance_pct"`
	MinHumanDelay    float64 `yaml:"min_human_delay"` // seconds
	MaxHumanDelay    float64 `yaml:"max_human_delay"`
	MaxRetries       int     `yaml:"max_retries"`
	RetryInitial     float64 `yaml:"retry_initial_delay"`
	RetryMax         float64 `yaml:"retry_max_delay"`
	RetryMultiplier  float64 `yaml:"retry_backoff_multiplier"`
}

// Paper configures the simulated exchange
type Paper struct {
	HalfSpreadPct float64 `yaml:"half_spread_pct"`
}

// Telegram notification settings; token and chat come from the environment
type Telegram struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  int64  `yaml:"-"`
}

// Default returns the production defaults before any file or env override
func Default() Config {
	rc := risk.DefaultConfig()
	sc := signal.DefaultConfig()
	rp := retry.DefaultPolicy()
	cam := execution.DefaultCamouflage()
	return Config{
		Symbols:        []string{"BTCUSDT", "XAUTUSDT"},
		SignalInterval: 5,
		DataDir:        "data",
		LogLevel:       "info",
		Leverage:       10,
		Timeframes:     Timeframes{Entry: "M5", Mid: "M15", Higher: "H1", Limit: 250},
		Risk: Risk{
			AccountBalance:       rc.AccountBalance,
			RiskPercent:          rc.RiskPercent,
			MaxSpreadPoints:      rc.MaxSpreadPoints,
			MaxDailyLoss:         rc.MaxDailyLossPct,
			MaxConsecutiveLosses: rc.MaxConsecutiveLosses,
			MinLotSize:           rc.MinLotSize,
			MaxSlippagePct:       rc.MaxSlippagePct,
		},
		Signal: Signal{
			MinConfirmations: sc.MinConfirmations,
			MinStrength:      sc.MinStrength,
			TP1Multiple:      sc.TP1Multiple,
			TP2Multiple:      sc.TP2Multiple,
			EMAFast:          sc.Trend.FastPeriod,
			EMASlow:          sc.Trend.SlowPeriod,
		},
		Execution: Execution{
			LotVariancePct:   cam.LotVariancePct,
			PriceVariancePct: cam.PriceVariancePct,
			MinHumanDelay:    cam.MinDelay.Seconds(),
			MaxHumanDelay:    cam.MaxDelay.Seconds(),
			MaxRetries:       rp.MaxAttempts,
			RetryInitial:     rp.InitialDelay.Seconds(),
			RetryMax:         rp.MaxDelay.Seconds(),
			RetryMultiplier:  rp.Multiplier,
		},
		Paper:          Paper{HalfSpreadPct: exchange.DefaultConfig().HalfSpreadPct},
		RequestTimeout: 30,
		RequestsPerSec: 5,
	}
}

// Load initializes configuration from .env, the YAML file at path (or
// HYDRA_CONFIG) and environment variables, in that order of precedence
func Load(path string) (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := Default()

	if path == "" {
		path = getEnvWithDefault("HYDRA_CONFIG", DefaultPath)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("Loaded config file")
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if s := os.Getenv("SYMBOLS"); s != "" {
		c.Symbols = splitList(s)
	}
	c.SignalInterval = getEnvIntWithDefault("SIGNAL_INTERVAL", c.SignalInterval)
	c.DataDir = getEnvWithDefault("DATA_DIR", c.DataDir)
	c.LogLevel = getEnvWithDefault("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnvWithDefault("LOG_FILE", c.LogFile)
	c.Risk.AccountBalance = getEnvFloatWithDefault("ACCOUNT_BALANCE", c.Risk.AccountBalance)
	c.Risk.RiskPercent = getEnvFloatWithDefault("RISK_PERCENT", c.Risk.RiskPercent)
	c.Risk.MaxSpreadPoints = getEnvFloatWithDefault("MAX_SPREAD_POINTS", c.Risk.MaxSpreadPoints)
	c.Signal.MinConfirmations = getEnvIntWithDefault("MIN_CONFIRMATIONS", c.Signal.MinConfirmations)
	c.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", c.RequestTimeout)

	c.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")

	c.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	if id := os.Getenv("TELEGRAM_CHAT_ID"); id != "" {
		if v, err := strconv.ParseInt(id, 10, 64); err == nil {
			c.Telegram.ChatID = v
		} else {
			log.Warn().Str("value", id).Msg("TELEGRAM_CHAT_ID is not a number, ignoring")
		}
	}
	c.Telegram.Enabled = getEnvBoolWithDefault("TELEGRAM_ENABLED", c.Telegram.Enabled || c.Telegram.Token != "")

	c.Database = database.ConnectionParams{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}
	c.RedisAddr = os.Getenv("REDIS_ADDR")
}

// Validate enforces the hard limits on trading parameters
func (c *Config) Validate() error {
	var errs []error
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("at least one symbol is required"))
	}
	if c.Risk.AccountBalance <= 0 {
		errs = append(errs, fmt.Errorf("account_balance must be positive, got %v", c.Risk.AccountBalance))
	}
	if c.Risk.RiskPercent < 1.5 || c.Risk.RiskPercent > 2.0 {
		errs = append(errs, fmt.Errorf("risk_percent must be within [1.5, 2.0], got %v", c.Risk.RiskPercent))
	}
	if c.Signal.MinConfirmations < 1 || c.Signal.MinConfirmations > 3 {
		errs = append(errs, fmt.Errorf("min_confirmations must be within [1, 3], got %d", c.Signal.MinConfirmations))
	}
	if c.Risk.MaxSpreadPoints <= 0 {
		errs = append(errs, fmt.Errorf("max_spread_points must be positive, got %v", c.Risk.MaxSpreadPoints))
	}
	for _, tf := range []string{c.Timeframes.Entry, c.Timeframes.Mid, c.Timeframes.Higher} {
		if _, err := models.ParseTimeframe(tf); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("telegram enabled but TELEGRAM_TOKEN or TELEGRAM_CHAT_ID missing"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// RiskConfig builds the risk engine settings
func (c *Config) RiskConfig() risk.Config {
	rc := risk.DefaultConfig()
	rc.AccountBalance = c.Risk.AccountBalance
	rc.RiskPercent = c.Risk.RiskPercent
	rc.MaxSpreadPoints = c.Risk.MaxSpreadPoints
	rc.MaxDailyLossPct = c.Risk.MaxDailyLoss
	rc.MaxConsecutiveLosses = c.Risk.MaxConsecutiveLosses
	rc.MinLotSize = c.Risk.MinLotSize
	rc.MaxSlippagePct = c.Risk.MaxSlippagePct
	return rc
}

// SignalConfig builds the orchestrator settings
func (c *Config) SignalConfig() signal.Config {
	sc := signal.DefaultConfig()
	sc.MinConfirmations = c.Signal.MinConfirmations
	sc.MinStrength = c.Signal.MinStrength
	sc.MaxSpreadPoints = c.Risk.MaxSpreadPoints
	sc.TP1Multiple = c.Signal.TP1Multiple
	sc.TP2Multiple = c.Signal.TP2Multiple
	if c.Signal.EMAFast > 0 {
		sc.Trend.FastPeriod = c.Signal.EMAFast
	}
	if c.Signal.EMASlow > 0 {
		sc.Trend.SlowPeriod = c.Signal.EMASlow
	}
	return sc
}

// ExecutionConfig builds the executor settings
func (c *Config) ExecutionConfig() execution.Config {
	ec := execution.DefaultConfig()
	e := c.Execution
	ec.Camouflage.LotVariancePct = e.LotVariancePct
	ec.Camouflage.PriceVariancePct = e.PriceVariancePct
	ec.Camouflage.MinDelay = seconds(e.MinHumanDelay)
	ec.Camouflage.MaxDelay = seconds(e.MaxHumanDelay)
	if e.MaxRetries > 0 {
		ec.Retry.MaxAttempts = e.MaxRetries
	}
	if e.RetryInitial > 0 {
		ec.Retry.InitialDelay = seconds(e.RetryInitial)
	}
	if e.RetryMax > 0 {
		ec.Retry.MaxDelay = seconds(e.RetryMax)
	}
	if e.RetryMultiplier > 0 {
		ec.Retry.Multiplier = e.RetryMultiplier
	}
	return ec
}

// BotConfig builds the scheduler settings; timeframes were checked by Validate
func (c *Config) BotConfig() bot.Config {
	return bot.Config{
		Symbols:         c.Symbols,
		EntryTimeframe:  models.Timeframe(c.Timeframes.Entry),
		MidTimeframe:    models.Timeframe(c.Timeframes.Mid),
		HigherTimeframe: models.Timeframe(c.Timeframes.Higher),
		CandleLimit:     c.Timeframes.Limit,
		Interval:        time.Duration(c.SignalInterval) * time.Second,
	}
}

// PaperConfig builds the simulated exchange settings
func (c *Config) PaperConfig() exchange.Config {
	pc := exchange.DefaultConfig()
	if c.Paper.HalfSpreadPct > 0 {
		pc.HalfSpreadPct = c.Paper.HalfSpreadPct
	}
	pc.QuoteTimeframe = models.Timeframe(c.Timeframes.Entry)
	return pc
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
