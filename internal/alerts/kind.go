package alerts

import (
	"strings"

	apperrors "flipguard/internal/errors"
	"flipguard/internal/models"
)

var (
	exitMarkers = map[string]bool{
		"EXIT":      true,
		"CLOSE":     true,
		"FLAT":      true,
		"SQUAREOFF": true,
	}
	entryMarkers = map[string]bool{
		"ENTRY": true,
		"ENTER": true,
		"OPEN":  true,
		"NEW":   true,
	}
	longWords = map[string]bool{
		"LONG": true,
		"BUY":  true,
	}
	shortWords = map[string]bool{
		"SHORT": true,
		"SELL":  true,
	}
)

var tokenReplacer = strings.NewReplacer("-", "_", " ", "_", ".", "_")

// ParseKind maps a free-text action token to a SignalKind.
//
// Exit aliases win over direction words, so "EXIT_LONG" and "EXIT_SHORT"
// both map to EXIT. A direction needs an entry marker ("ENTRY_LONG",
// "OPEN-SHORT") unless the token is the bare direction ("LONG", "SELL").
// Tokens without separators ("ENTRYLONG", "LongEntry", "EXITSHORT") are
// matched by the markers they contain.
func ParseKind(token string) (models.SignalKind, error) {
	normalized := tokenReplacer.Replace(strings.ToUpper(strings.TrimSpace(token)))
	if normalized == "SQUARE_OFF" {
		return models.SignalExit, nil
	}

	var parts []string
	for _, p := range strings.Split(normalized, "_") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", apperrors.NewUnknownSignalKindError(token)
	}

	if kind, ok := kindFromWords(parts); ok {
		return kind, nil
	}
	if kind, ok := kindFromSubstrings(strings.Join(parts, "")); ok {
		return kind, nil
	}
	return "", apperrors.NewUnknownSignalKindError(token)
}

func kindFromWords(parts []string) (models.SignalKind, bool) {
	var long, short, entry bool
	for _, p := range parts {
		switch {
		case exitMarkers[p]:
			return models.SignalExit, true
		case entryMarkers[p]:
			entry = true
		case longWords[p]:
			long = true
		case shortWords[p]:
			short = true
		}
	}
	if !entry && len(parts) > 1 {
		return "", false
	}
	return entryKind(long, short)
}

func kindFromSubstrings(compact string) (models.SignalKind, bool) {
	if containsAny(compact, exitMarkers) {
		return models.SignalExit, true
	}
	if !containsAny(compact, entryMarkers) {
		return "", false
	}
	return entryKind(containsAny(compact, longWords), containsAny(compact, shortWords))
}

func entryKind(long, short bool) (models.SignalKind, bool) {
	switch {
	case long && !short:
		return models.SignalEntryLong, true
	case short && !long:
		return models.SignalEntryShort, true
	default:
		return "", false
	}
}

func containsAny(s string, words map[string]bool) bool {
	for w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ActionKind maps the short action names of the simplified webhook route.
func ActionKind(action string) (models.SignalKind, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "long", "buy", "entry_long":
		return models.SignalEntryLong, true
	case "short", "sell", "entry_short":
		return models.SignalEntryShort, true
	case "close", "exit":
		return models.SignalExit, true
	default:
		return "", false
	}
}
