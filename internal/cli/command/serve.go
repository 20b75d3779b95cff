package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/cli/config"
	"github.com/yndnr/authctl/internal/infra/confloader"
	"github.com/yndnr/authctl/internal/infra/shutdown"
	"github.com/yndnr/authctl/internal/server/proxy"
	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/telemetry/logger"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a local gateway that forwards /api calls with the stored session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Listen address (default from config serve.listen)",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Check the stored session against the server before serving",
				Value: true,
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	rt := runtimeFrom(c)

	cfg, err := rt.config()
	if err != nil {
		return err
	}
	mgr, err := rt.manager(c.Context)
	if err != nil {
		return err
	}

	addr := cfg.Serve.Listen
	if c.IsSet("listen") {
		addr = c.String("listen")
	}

	srv, err := proxy.New(proxy.Config{
		Addr:    addr,
		Manager: mgr,
		Metrics: rt.metrics,
		Logger:  rt.log,
	})
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	if c.Bool("verify") {
		verifyStoredSession(c.Context, rt, mgr)
	}
	fmt.Fprintf(rt.stdout, "gateway listening on http://%s\n", srv.Addr())

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve()
		if err != nil {
			cancel()
		}
		serveErr <- err
	}()

	sd := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(rt.log))
	sd.OnShutdown("gateway", srv.Shutdown)
	if w := rt.watchConfig(); w != nil {
		sd.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
	}

	waitErr := sd.Wait(ctx)
	return errors.Join(<-serveErr, waitErr)
}

// verifyStoredSession checks stored credentials once at startup. A rejected
// session is cleared and reported; the gateway still starts and answers 401
// until the user signs in again.
func verifyStoredSession(ctx context.Context, rt *runtime, mgr *session.Manager) {
	if !mgr.Authenticated() {
		return
	}
	log := rt.log.WithContext(ctx)
	if _, err := mgr.Verify(ctx); err != nil {
		log.Warn("stored session rejected", "error", err)
		return
	}
	log.Info("stored session verified")
}

// watchConfig reloads the config file on change and applies the new log
// level. Other settings need a restart. Returns nil when there is no file
// to watch.
func (r *runtime) watchConfig() *confloader.Watcher {
	r.mu.Lock()
	loader, log := r.loader, r.log
	r.mu.Unlock()

	if loader == nil || loader.FilePath() == "" {
		return nil
	}
	path := loader.FilePath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		log.Warn("config watch unavailable", "error", err)
		return nil
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil
	}

	w.OnChange(func(string) {
		cfg, err := config.Reload(loader)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("config reloaded", "path", path, "log_level", cfg.Log.Level)
	})
	w.StartAsync()
	return w
}
