package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/retry"
)

// TelegramSender posts messages to one chat with retries on transient errors
type TelegramSender struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	endpoint  string
	policy    retry.Policy
	retryOpts []retry.Option
	logger    zerolog.Logger
}

// TelegramOption configures a TelegramSender
type TelegramOption func(*TelegramSender)

// WithEndpoint points the client at another Bot API server, format "<base>/bot%s/%s"
func WithEndpoint(endpoint string) TelegramOption {
	return func(s *TelegramSender) { s.endpoint = endpoint }
}

// WithRetry overrides the send retry policy and options
func WithRetry(p retry.Policy, opts ...retry.Option) TelegramOption {
	return func(s *TelegramSender) {
		s.policy = p
		s.retryOpts = opts
	}
}

// NewTelegramSender authenticates the bot token and binds it to chatID
func NewTelegramSender(token string, chatID int64, opts ...TelegramOption) (*TelegramSender, error) {
	s := &TelegramSender{
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		policy: retry.Policy{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   4,
		},
		logger: log.With().Str("component", "telegram").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	s.bot = bot
	s.logger.Info().Str("username", bot.Self.UserName).Msg("Telegram bot initialized")
	return s, nil
}

// Send posts text as Markdown. Bad requests are not retried.
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	_, attempts, err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (int, error) {
		msg := tgbotapi.NewMessage(s.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		sent, err := s.bot.Send(msg)
		if err != nil {
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == 400 {
				return 0, retry.Permanent(err)
			}
			return 0, err
		}
		return sent.MessageID, nil
	}, s.retryOpts...)
	if err != nil {
		return fmt.Errorf("telegram send failed after %d attempts: %w", attempts, err)
	}

	s.logger.Debug().Int("attempts", attempts).Msg("Telegram message sent")
	return nil
}

// LogSender writes messages to the log instead of a chat
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender for runs without Telegram credentials
func NewLogSender() *LogSender {
	return &LogSender{logger: log.With().Str("component", "notifier").Logger()}
}

// Send logs text at info level
func (s *LogSender) Send(_ context.Context, text string) error {
	s.logger.Info().Str("message", text).Msg("Notification")
	return nil
}
