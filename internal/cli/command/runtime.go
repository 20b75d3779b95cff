package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/cli/config"
	"github.com/yndnr/authctl/internal/cli/output"
	"github.com/yndnr/authctl/internal/infra/confloader"
	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/storage/credstore"
	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// runtime holds what commands share during one process: configuration,
// logger and the session manager. Everything is built on first use.
type runtime struct {
	flags *GlobalFlags

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// shared is set while the shell owns the runtime, so nested runs do
	// not close it.
	shared bool

	mu      sync.Mutex
	loader  *confloader.Loader
	cfg     *config.CLIConfig
	log     logger.Logger
	metrics *metric.Registry
	store   credstore.Store
	mgr     *session.Manager
}

func newRuntime(c *cli.Context) *runtime {
	r := &runtime{
		flags:  ParseGlobalFlags(c),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    logger.Nop(),
	}
	if c.App != nil {
		if c.App.Reader != nil {
			r.stdin = c.App.Reader
		}
		if c.App.Writer != nil {
			r.stdout = c.App.Writer
		}
		if c.App.ErrWriter != nil {
			r.stderr = c.App.ErrWriter
		}
	}
	return r
}

// configPath returns the config file in use.
func (r *runtime) configPath() string {
	if r.flags.Config != "" {
		return r.flags.Config
	}
	return config.DefaultConfigPath()
}

// config loads and validates the configuration and sets up logging.
func (r *runtime) config() (*config.CLIConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configLocked()
}

func (r *runtime) configLocked() (*config.CLIConfig, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}

	loader := config.NewLoader(r.configPath(), r.flags.overrides())
	cfg, err := config.Reload(loader)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: r.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	r.loader = loader
	r.cfg = cfg
	r.log = log
	r.metrics = metric.NewRegistry()
	return cfg, nil
}

// manager opens the credential store and builds the session manager.
func (r *runtime) manager(ctx context.Context) (*session.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mgr != nil {
		return r.mgr, nil
	}
	cfg, err := r.configLocked()
	if err != nil {
		return nil, err
	}

	store, err := credstore.Open(ctx, cfg.StoreConfig(),
		credstore.WithLogger(r.log),
		credstore.WithMetrics(r.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	opts, err := cfg.SessionOptions()
	if err != nil {
		store.Close()
		return nil, err
	}
	opts = append(opts,
		session.WithLogger(r.log),
		session.WithMetrics(r.metrics),
		session.WithNavigator(session.NavigatorFunc(r.navigateToLogin)),
	)

	mgr, err := session.New(ctx, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	r.store = store
	r.mgr = mgr
	return mgr, nil
}

// navigateToLogin tells the user to sign in again. A terminal has no
// login page, so the route only shows up in debug logs.
func (r *runtime) navigateToLogin(ctx context.Context, route string) {
	r.log.WithContext(ctx).Debug("login required", "route", route)
	fmt.Fprintf(r.stderr, "session expired: run '%s login' to sign in again\n", AppName)
}

// format returns the output format: the --output flag, then the config,
// then table.
func (r *runtime) format() output.Format {
	name := r.flags.Output
	if name == "" {
		r.mu.Lock()
		if r.cfg != nil {
			name = r.cfg.Output
		}
		r.mu.Unlock()
	}
	f, err := output.ParseFormat(name)
	if err != nil {
		return output.FormatTable
	}
	return f
}

// Close releases the credential store.
func (r *runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	r.mgr = nil
	return err
}
