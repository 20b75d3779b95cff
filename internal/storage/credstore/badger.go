package credstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	// Dir is the database directory.
	Dir string

	// KeyPrefix namespaces every key.
	KeyPrefix string

	// GCInterval is the value-log GC period. Zero disables GC.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64

	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// DefaultBadgerConfig returns the configuration used by Open.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		KeyPrefix:   DefaultKeyPrefix,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// Badger is a Store backed by an embedded Badger database.
type Badger struct {
	db  *badger.DB
	cfg BadgerConfig
	log logger.Logger

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewBadger opens the database in cfg.Dir. Zero-valued tuning fields take
// their defaults.
func NewBadger(cfg BadgerConfig, log logger.Logger) (*Badger, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("credstore: badger dir is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultBadgerConfig(cfg.Dir)
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.GCThreshold == 0 {
		cfg.GCThreshold = def.GCThreshold
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{log: log.With("component", "badger")}
	opts.SyncWrites = cfg.SyncWrites
	// The store holds a handful of small values.
	opts.BlockCacheSize = 1 << 20
	opts.MemTableSize = 1 << 20
	opts.ValueLogFileSize = 1 << 24
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("credstore: open badger: %w", err)
	}

	b := &Badger{
		db:     db,
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
	}

	if cfg.GCInterval > 0 {
		b.wg.Add(1)
		go b.gcLoop()
	}

	log.Debug("badger store opened", "dir", cfg.Dir, "prefix", cfg.KeyPrefix)
	return b, nil
}

func (b *Badger) key(k string) []byte {
	return []byte(b.cfg.KeyPrefix + k)
}

// Get implements Store.
func (b *Badger) Get(_ context.Context, key string) (string, error) {
	var value []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return "", ErrNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return "", ErrClosed
	case err != nil:
		return "", fmt.Errorf("credstore: badger get: %w", err)
	}
	return string(value), nil
}

// Set implements Store.
func (b *Badger) Set(_ context.Context, key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), []byte(value))
	})
	return b.wrap("set", err)
}

// Delete implements Store.
func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
	return b.wrap("delete", err)
}

// SetPair implements PairStore in one transaction.
func (b *Badger) SetPair(_ context.Context, k1, v1, k2, v2 string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(b.key(k1), []byte(v1)); err != nil {
			return err
		}
		return txn.Set(b.key(k2), []byte(v2))
	})
	return b.wrap("set pair", err)
}

// DeletePair implements PairStore in one transaction.
func (b *Badger) DeletePair(_ context.Context, k1, k2 string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(b.key(k1)); err != nil {
			return err
		}
		return txn.Delete(b.key(k2))
	})
	return b.wrap("delete pair", err)
}

func (b *Badger) wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrDBClosed):
		return ErrClosed
	default:
		return fmt.Errorf("credstore: badger %s: %w", op, err)
	}
}

// GC runs value-log garbage collection until nothing more can be rewritten.
func (b *Badger) GC() error {
	for {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("credstore: badger gc: %w", err)
		}
	}
}

// Close stops background work and closes the database.
func (b *Badger) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("credstore: close badger: %w", err)
	}
	return nil
}

// RegisterMetrics registers size gauges on r and keeps them current.
func (b *Badger) RegisterMetrics(r *metric.Registry) *Badger {
	if r == nil {
		return b
	}
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "authctl",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "authctl",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	r.MustRegister(b.metricsLSMSize, b.metricsValueLogSize)

	b.updateMetrics()
	b.wg.Add(1)
	go b.metricsLoop()
	return b
}

func (b *Badger) updateMetrics() {
	lsm, vlog := b.db.Size()
	b.metricsLSMSize.Set(float64(lsm))
	b.metricsValueLogSize.Set(float64(vlog))
}

func (b *Badger) metricsLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.updateMetrics()
		case <-b.stopCh:
			return
		}
	}
}

func (b *Badger) gcLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.GC(); err != nil {
				b.log.Warn("badger gc failed", "error", err)
			}
		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
