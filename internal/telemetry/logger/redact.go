package logger

import (
	"log/slog"
	"strings"
)

// Key fragments whose string values are always redacted.
var sensitiveKeyPatterns = []string{
	"token",
	"secret",
	"password",
	"passphrase",
	"authorization",
	"bearer",
	"credential",
	"cookie",
}

const (
	redactedValue = "***REDACTED***"
	bearerPrefix  = "Bearer "
	jwtPrefix     = "eyJ"
)

// redactSensitive masks bearer strings and JWTs wherever they appear and
// fully redacts string values stored under sensitive keys.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if looksLikeBearer(strVal) || looksLikeJWT(strVal) {
			return slog.String(a.Key, RedactString(strVal))
		}

		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// MaskToken partially masks an opaque credential, keeping a short head and
// tail so two tokens can still be told apart.
// Format: first 4 chars + "..." + last 4 chars.
func MaskToken(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 12 {
		return "***"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// RedactString masks a value that looks like a credential and returns any
// other value unchanged.
func RedactString(value string) string {
	switch {
	case looksLikeBearer(value):
		return bearerPrefix + MaskToken(strings.TrimPrefix(value, bearerPrefix))
	case looksLikeJWT(value):
		return MaskToken(value)
	default:
		return value
	}
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

func looksLikeBearer(value string) bool {
	return len(value) > len(bearerPrefix) && strings.HasPrefix(value, bearerPrefix)
}

func looksLikeJWT(value string) bool {
	return strings.HasPrefix(value, jwtPrefix) && strings.Count(value, ".") == 2
}
