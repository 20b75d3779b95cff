package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/cli/output"
	"github.com/yndnr/authctl/internal/infra/buildinfo"
)

// AppName is the binary name used in help and messages.
const AppName = "authctl"

const runtimeKey = "runtime"

// App creates the CLI application.
func App() *cli.App {
	return newApp(nil)
}

// newApp builds the application. A non-nil rt is reused instead of being
// created in Before, which lets the shell run many commands on one session.
func newApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:     AppName,
		Usage:    "authenticated API client with automatic token refresh",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			StatusCommand(),
			ProfileCommand(),
			RequestCommand(),
			ServeCommand(),
			ConfigCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			if _, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
				return nil
			}
			c.App.Metadata[runtimeKey] = newRuntime(c)
			return nil
		},
		After: func(c *cli.Context) error {
			r, ok := c.App.Metadata[runtimeKey].(*runtime)
			if !ok || r.shared {
				return nil
			}
			return r.Close()
		},
		CommandNotFound: func(c *cli.Context, name string) {
			fmt.Fprintf(c.App.ErrWriter, "unknown command %q, see '%s help'\n", name, AppName)
		},
	}

	if rt != nil {
		app.Metadata[runtimeKey] = rt
		app.Reader = rt.stdin
		app.Writer = rt.stdout
		app.ErrWriter = rt.stderr
	}
	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.authctl/config.yaml)",
			EnvVars: []string{"AUTHCTL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "API base URL (e.g., http://localhost:8888/api)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config   string
	Server   string
	Output   string
	LogLevel string
	Verbose  bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:   c.String("config"),
		Server:   c.String("server"),
		Output:   c.String("output"),
		LogLevel: c.String("log-level"),
		Verbose:  c.Bool("verbose"),
	}
}

// overrides converts explicitly set global flags into config keys.
func (f *GlobalFlags) overrides() map[string]any {
	o := make(map[string]any)
	if f.Server != "" {
		o["server.base_url"] = connection.NormalizeBaseURL(f.Server)
	}
	if f.Output != "" {
		o["output"] = f.Output
	}
	if f.LogLevel != "" {
		o["log.level"] = f.LogLevel
	}
	if f.Verbose {
		o["log.level"] = "debug"
	}
	return o
}

// runtimeFrom retrieves the shared runtime set up by Before.
func runtimeFrom(c *cli.Context) *runtime {
	for _, ctx := range c.Lineage() {
		if ctx.App == nil {
			continue
		}
		if r, ok := ctx.App.Metadata[runtimeKey].(*runtime); ok {
			return r
		}
	}
	// Commands invoked without Before (tests) get a private runtime.
	r := newRuntime(c)
	c.App.Metadata[runtimeKey] = r
	return r
}

// printResult writes data in the configured output format.
func printResult(c *cli.Context, data any) error {
	rt := runtimeFrom(c)
	return output.Print(rt.stdout, rt.format(), data)
}

// PrintError prints an error message to w.
func PrintError(w io.Writer, format string, args ...any) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "error: "+format+"\n", args...)
}
