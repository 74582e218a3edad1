package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"flipguard/internal/config"
)

// TelegramNotifier sends notifications via Telegram bot.
type TelegramNotifier struct {
	botToken string
	chatID   string
	endpoint string
	enabled  bool
	client   *http.Client
	limiter  *rate.Limiter

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a new TelegramNotifier. The bot session is
// opened on first send.
func NewTelegramNotifier(cfg config.TelegramConfig, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		endpoint: endpoint,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// Send sends a notification via Telegram.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for telegram rate limit: %w", err)
	}

	bot, err := t.session(ctx)
	if err != nil {
		return err
	}

	msg := t.message(formatTelegram(n))

	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending telegram message: %w", ctx.Err())
	}
}

// session returns the bot, running the getMe handshake on first use. The
// handshake runs outside the lock and is abandoned when ctx ends.
func (t *TelegramNotifier) session(ctx context.Context) (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot != nil {
		return bot, nil
	}

	type handshake struct {
		bot *tgbotapi.BotAPI
		err error
	}
	done := make(chan handshake, 1)
	go func() {
		b, err := tgbotapi.NewBotAPIWithClient(t.botToken, t.endpoint, t.client)
		done <- handshake{bot: b, err: err}
	}()

	select {
	case h := <-done:
		if h.err != nil {
			return nil, fmt.Errorf("connecting telegram bot: %w", h.err)
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.bot == nil {
			t.bot = h.bot
		}
		return t.bot, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("connecting telegram bot: %w", ctx.Err())
	}
}

// message addresses numeric chat ids directly and anything else as a
// channel username.
func (t *TelegramNotifier) message(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(t.chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return msg
}

func formatTelegram(n Notification) string {
	if n.Title == "" {
		return n.Message
	}
	return fmt.Sprintf("<b>%s</b>\n\n%s", EscapeHTML(n.Title), n.Message)
}
