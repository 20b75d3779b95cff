package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with secrets masked, for display.
func Sanitize(cfg *CLIConfig) *CLIConfig {
	sanitized := *cfg

	if sanitized.Store.Passphrase != "" {
		sanitized.Store.Passphrase = maskSecret(sanitized.Store.Passphrase)
	}
	if sanitized.Store.RedisURL != "" {
		sanitized.Store.RedisURL = redactURL(sanitized.Store.RedisURL)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe display.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// redactURL hides the password in a redis:// URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}
