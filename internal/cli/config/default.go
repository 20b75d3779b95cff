package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/storage/credstore"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second

	DefaultRefreshRate  = 1.0
	DefaultRefreshBurst = 3

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	DefaultListen = "127.0.0.1:8787"
	DefaultOutput = "table"

	configDirName  = ".authctl"
	configFileName = "config.yaml"
)

// Default returns the default configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: ServerSection{
			BaseURL: session.DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Auth: AuthSection{
			LoginRoute:   session.DefaultLoginRoute,
			RefreshRate:  DefaultRefreshRate,
			RefreshBurst: DefaultRefreshBurst,
		},
		Endpoints: session.DefaultEndpoints(),
		Store: credstore.Config{
			Backend:   credstore.BackendFile,
			KeyPrefix: credstore.DefaultKeyPrefix,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Serve: ServeSection{
			Listen: DefaultListen,
		},
		Output: DefaultOutput,
	}
}

// DefaultConfigDir returns ~/.authctl, falling back to the working
// directory when the home directory is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), configFileName)
}

// StoreConfig returns the credential store configuration with a default
// location filled in for local backends.
func (c *CLIConfig) StoreConfig() credstore.Config {
	sc := c.Store
	if sc.Path != "" {
		return sc
	}
	switch sc.Backend {
	case "", credstore.BackendFile:
		sc.Path = filepath.Join(DefaultConfigDir(), "credentials.json")
	case credstore.BackendBadger:
		sc.Path = filepath.Join(DefaultConfigDir(), "credentials.db")
	}
	return sc
}
