package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "AUTHCTL_"

// Loader loads configuration from multiple sources.
//
// A Loader may be reloaded; overrides passed to LoadMap are reapplied on
// every Load so flags keep winning over a changed file.
type Loader struct {
	mu           sync.Mutex
	k            *koanf.Koanf
	envPrefix    string
	filePath     string
	fileOptional bool
	overrides    []map[string]any
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path. The file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.fileOptional = false
	}
}

// WithOptionalConfigFile sets a configuration file path that is skipped
// when the file does not exist.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.fileOptional = true
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads every source in priority order and unmarshals the result into
// target. Fields of target not named by any source keep their value, so
// callers pass a struct pre-filled with defaults.
func (l *Loader) Load(target any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.k = koanf.New(".")

	if err := l.loadFile(); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if err := l.loadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	for _, m := range l.overrides {
		if err := l.k.Load(mapProvider(m), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	return nil
}

// FilePath returns the configured file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

func (l *Loader) loadFile() error {
	if l.filePath == "" {
		return nil
	}
	if l.fileOptional {
		if _, err := os.Stat(l.filePath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", l.filePath, err)
	}
	return nil
}

// loadEnv maps AUTHCTL_SECTION_SOME_KEY to section.some_key. Only the first
// underscore after the prefix separates levels since keys themselves use
// underscores.
func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges data into the loaded configuration and keeps it as an
// override for later Loads. Keys use dotted paths.
func (l *Loader) LoadMap(data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	l.overrides = append(l.overrides, data)
	return nil
}
