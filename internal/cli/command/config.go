package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/cli/config"
	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/infra/buildinfo"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration",
				Action: configValidate,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: configPath,
			},
			{
				Name:  "init",
				Usage: "Write a default config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := runtimeFrom(c).config()
	if err != nil {
		return err
	}
	return printResult(c, config.Sanitize(cfg))
}

func configValidate(c *cli.Context) error {
	rt := runtimeFrom(c)
	if _, err := rt.config(); err != nil {
		return err
	}
	fmt.Fprintf(rt.stdout, "configuration is valid (%s)\n", rt.configPath())
	return nil
}

func configPath(c *cli.Context) error {
	rt := runtimeFrom(c)
	path := rt.configPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(rt.stdout, "%s (not found, using defaults)\n", path)
		return nil
	}
	fmt.Fprintln(rt.stdout, path)
	return nil
}

func configInit(c *cli.Context) error {
	rt := runtimeFrom(c)
	path := rt.configPath()

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if rt.flags.Server != "" {
		cfg.Server.BaseURL = connection.NormalizeBaseURL(rt.flags.Server)
	}
	if rt.flags.Output != "" {
		cfg.Output = rt.flags.Output
	}
	if err := config.Verify(cfg); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(rt.stdout, "wrote %s\n", path)
	return nil
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			return printResult(c, buildinfo.Get())
		},
	}
}
