package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/authctl/internal/infra/confloader"
)

// NewLoader returns a loader for path (optional, DefaultConfigPath when
// empty) with overrides applied above file and environment. Override
// keys are dotted paths such as "server.base_url".
func NewLoader(path string, overrides map[string]any) *confloader.Loader {
	if path == "" {
		path = DefaultConfigPath()
	}
	l := confloader.NewLoader(confloader.WithOptionalConfigFile(path))
	if len(overrides) > 0 {
		// Only fails for providers that cannot be read; a map always can.
		_ = l.LoadMap(overrides)
	}
	return l
}

// Load reads the configuration: defaults, then the file at path, then
// AUTHCTL_* variables, then overrides. A missing file is not an error.
func Load(path string, overrides map[string]any) (*CLIConfig, error) {
	return Reload(NewLoader(path, overrides))
}

// Reload reads every source of l again and validates the result.
func Reload(l *confloader.Loader) (*CLIConfig, error) {
	cfg := Default()
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, readable only by the owner.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0600)
}
