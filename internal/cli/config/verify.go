package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/authctl/internal/cli/output"
	"github.com/yndnr/authctl/internal/storage/credstore"
	"github.com/yndnr/authctl/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *CLIConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyAuth(&cfg.Auth),
		verifyStore(&cfg.Store),
		verifyLog(&cfg.Log),
		verifyServe(&cfg.Serve),
		verifyOutput(cfg.Output),
	)
}

func verifyServer(s *ServerSection) error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return errors.New("server.base_url is required")
	}
	if s.Timeout < 0 {
		return errors.New("server.timeout must not be negative")
	}
	return nil
}

func verifyAuth(a *AuthSection) error {
	if a.RefreshRate < 0 {
		return errors.New("auth.refresh_rate must not be negative")
	}
	if a.RefreshBurst < 1 {
		return errors.New("auth.refresh_burst must be at least 1")
	}
	if a.PreemptiveRefresh < 0 {
		return errors.New("auth.preemptive_refresh must not be negative")
	}
	return nil
}

func verifyStore(s *credstore.Config) error {
	if !credstore.ValidBackend(s.Backend) {
		return fmt.Errorf("store.backend %q is not one of %s", s.Backend, strings.Join(credstore.Backends, ", "))
	}
	if s.Backend == credstore.BackendRedis && s.RedisURL == "" {
		return errors.New("store.redis_url is required for the redis backend")
	}
	switch credstore.CipherType(s.Cipher) {
	case "", credstore.CipherAESGCM, credstore.CipherChaCha20:
	default:
		return fmt.Errorf("store.cipher %q is not supported", s.Cipher)
	}
	return nil
}

func verifyLog(l *LogSection) error {
	if !logger.ValidLevel(l.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("log.format %q is not one of text, json", l.Format)
}

func verifyServe(s *ServeSection) error {
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("serve.listen: %w", err)
	}
	return nil
}

func verifyOutput(format string) error {
	if !output.ValidFormat(format) {
		return fmt.Errorf("output %q is not one of %s", format, strings.Join(output.Formats, ", "))
	}
	return nil
}
