package command

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/cli/repl"
)

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Interactive mode; commands share one session so rotated tokens carry over",
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	rt := runtimeFrom(c)
	rt.shared = true
	defer func() { rt.shared = false }()

	fmt.Fprintf(rt.stdout, "%s %s, type 'help' for commands, 'exit' to leave\n", AppName, c.App.Version)

	r := repl.New(repl.Config{
		In:          rt.stdin,
		Out:         rt.stdout,
		Commands:    commandNames(c.App.Commands),
		HistoryFile: filepath.Join(filepath.Dir(rt.configPath()), "history"),
		Exec: func(ctx context.Context, args []string) error {
			if args[0] == "shell" {
				return errors.New("already in a shell")
			}
			app := newApp(rt)
			return app.RunContext(ctx, append([]string{AppName}, args...))
		},
	})
	return r.Run(c.Context)
}

// commandNames lists commands and "parent child" pairs for completion.
func commandNames(cmds []*cli.Command) []string {
	var names []string
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}
		names = append(names, cmd.Name)
		for _, sub := range cmd.Subcommands {
			if !sub.Hidden {
				names = append(names, cmd.Name+" "+sub.Name)
			}
		}
	}
	return names
}
