package config

import (
	"time"

	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/storage/credstore"
)

// CLIConfig is the root configuration for authctl.
type CLIConfig struct {
	Server    ServerSection    `koanf:"server" yaml:"server"`
	Auth      AuthSection      `koanf:"auth" yaml:"auth"`
	Endpoints session.Endpoints `koanf:"endpoints" yaml:"endpoints"`
	Store     credstore.Config `koanf:"store" yaml:"store"`
	Log       LogSection       `koanf:"log" yaml:"log"`
	Serve     ServeSection     `koanf:"serve" yaml:"serve"`

	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output" yaml:"output"`
}

// ServerSection configures the API connection.
type ServerSection struct {
	BaseURL string        `koanf:"base_url" yaml:"base_url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	CAFile  string        `koanf:"ca_file" yaml:"ca_file,omitempty"`
}

// AuthSection configures session behaviour.
type AuthSection struct {
	LoginRoute string `koanf:"login_route" yaml:"login_route"`

	// PreemptiveRefresh refreshes a JWT access token this long before it
	// expires. Zero disables it.
	PreemptiveRefresh time.Duration `koanf:"preemptive_refresh" yaml:"preemptive_refresh"`

	// RefreshRate caps refresh calls per second. Zero means unlimited.
	RefreshRate  float64 `koanf:"refresh_rate" yaml:"refresh_rate"`
	RefreshBurst int     `koanf:"refresh_burst" yaml:"refresh_burst"`

	// SilentAbandon makes requests return no response and no error when
	// the session cannot be recovered.
	SilentAbandon bool `koanf:"silent_abandon" yaml:"silent_abandon"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// ServeSection configures the local gateway.
type ServeSection struct {
	Listen string `koanf:"listen" yaml:"listen"`
}
