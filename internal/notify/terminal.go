package notify

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// PlainText strips Telegram HTML markup from a message.
func PlainText(html string) string {
	s := htmlTag.ReplaceAllString(html, "")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name returns the name of the notifier.
func (l *LogNotifier) Name() string {
	return "log"
}

// IsEnabled returns whether the notifier is enabled.
func (l *LogNotifier) IsEnabled() bool {
	return true
}

// Send logs the notification.
func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	l.logger.Info().
		Str("event", "notification").
		Str("type", string(n.Type)).
		Str("symbol", n.Symbol).
		Str("title", n.Title).
		Str("message", PlainText(n.Message)).
		Msg("Notification")
	return nil
}

// TerminalNotifier prints notifications to a terminal, used by the CLI when
// processing a signal locally.
type TerminalNotifier struct {
	out          io.Writer
	colorEnabled bool
	mu           sync.Mutex
}

// NewTerminalNotifier creates a new TerminalNotifier writing to out.
func NewTerminalNotifier(out io.Writer, colorEnabled bool) *TerminalNotifier {
	return &TerminalNotifier{out: out, colorEnabled: colorEnabled}
}

// Name returns the name of the notifier.
func (tn *TerminalNotifier) Name() string {
	return "terminal"
}

// IsEnabled returns whether the notifier is enabled.
func (tn *TerminalNotifier) IsEnabled() bool {
	return tn.out != nil
}

// Send prints the notification.
func (tn *TerminalNotifier) Send(ctx context.Context, n Notification) error {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	_, err := fmt.Fprintln(tn.out, FormatNotification(n, tn.colorEnabled))
	return err
}

// FormatNotification renders a notification for terminal output.
func FormatNotification(n Notification, colorEnabled bool) string {
	var sb strings.Builder

	timestamp := n.Timestamp.Format("15:04:05")

	var color, resetColor string
	if colorEnabled {
		resetColor = "\033[0m"
		switch n.Type {
		case NotificationTrade:
			color = "\033[32m" // Green
		case NotificationFlip:
			color = "\033[33m" // Yellow
		case NotificationError:
			color = "\033[31m" // Red
		default:
			color = "\033[37m" // White
		}
	}

	sb.WriteString(fmt.Sprintf("%s[%s] %s%s", color, timestamp, n.Title, resetColor))

	if n.Symbol != "" {
		sb.WriteString(fmt.Sprintf(" | %s", n.Symbol))
	}

	for _, line := range strings.Split(PlainText(n.Message), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString("\n    ")
		sb.WriteString(line)
	}

	return sb.String()
}
