package credstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("credstore: key not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("credstore: store closed")

// Store is a string-valued key/value store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// PairStore is implemented by backends that write two keys in one step, so
// a crash can never leave only half of a credential pair on disk.
type PairStore interface {
	SetPair(ctx context.Context, k1, v1, k2, v2 string) error
	DeletePair(ctx context.Context, k1, k2 string) error
}

// SetPair writes both keys, atomically when s implements PairStore.
func SetPair(ctx context.Context, s Store, k1, v1, k2, v2 string) error {
	if ps, ok := s.(PairStore); ok {
		return ps.SetPair(ctx, k1, v1, k2, v2)
	}
	if err := s.Set(ctx, k1, v1); err != nil {
		return err
	}
	return s.Set(ctx, k2, v2)
}

// DeletePair removes both keys, atomically when s implements PairStore.
// Both deletes are attempted even if the first fails.
func DeletePair(ctx context.Context, s Store, k1, k2 string) error {
	if ps, ok := s.(PairStore); ok {
		return ps.DeletePair(ctx, k1, k2)
	}
	return errors.Join(s.Delete(ctx, k1), s.Delete(ctx, k2))
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Backends lists every supported backend name.
var Backends = []string{BackendMemory, BackendFile, BackendBadger, BackendRedis}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of memory, file, badger, redis.
	Backend string `koanf:"backend" yaml:"backend"`

	// Path is the credentials file (file) or database directory (badger).
	Path string `koanf:"path" yaml:"path"`

	// Passphrase seals the file backend at rest when non-empty.
	Passphrase string `koanf:"passphrase" yaml:"passphrase,omitempty"`

	// Cipher selects the AEAD used for sealing (aes-gcm, chacha20-poly1305).
	// Empty picks one based on the host architecture.
	Cipher string `koanf:"cipher" yaml:"cipher,omitempty"`

	// RedisURL is a redis:// URL for the redis backend.
	RedisURL string `koanf:"redis_url" yaml:"redis_url,omitempty"`

	// KeyPrefix namespaces keys in shared backends (badger, redis).
	KeyPrefix string `koanf:"key_prefix" yaml:"key_prefix"`

	// TTL expires redis keys. Zero keeps them forever.
	TTL time.Duration `koanf:"ttl" yaml:"ttl,omitempty"`
}

// DefaultKeyPrefix namespaces keys in shared backends.
const DefaultKeyPrefix = "authctl:"

// ValidBackend reports whether name is a supported backend.
func ValidBackend(name string) bool {
	for _, b := range Backends {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	log     logger.Logger
	metrics *metric.Registry
}

// WithLogger sets the logger handed to backends.
func WithLogger(l logger.Logger) Option {
	return func(o *openOptions) {
		o.log = l
	}
}

// WithMetrics registers backend gauges (badger) on r.
func WithMetrics(r *metric.Registry) Option {
	return func(o *openOptions) {
		o.metrics = r
	}
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	o := openOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemory(), nil
	case "", BackendFile:
		return NewFile(FileConfig{
			Path:       cfg.Path,
			Passphrase: cfg.Passphrase,
			Cipher:     CipherType(cfg.Cipher),
		})
	case BackendBadger:
		bc := DefaultBadgerConfig(cfg.Path)
		bc.KeyPrefix = cfg.KeyPrefix
		b, err := NewBadger(bc, o.log)
		if err != nil {
			return nil, err
		}
		if o.metrics != nil {
			b.RegisterMetrics(o.metrics)
		}
		return b, nil
	case BackendRedis:
		return NewRedisFromURL(ctx, cfg.RedisURL, RedisConfig{
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", cfg.Backend)
	}
}
