package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or update the signed-in user's profile",
		Subcommands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show the profile",
				Action: profileGet,
			},
			{
				Name:  "update",
				Usage: "Update profile fields",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "set",
						Usage: "Field as KEY=VALUE (repeatable)",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON object with the fields to update",
					},
				},
				Action: profileUpdate,
			},
		},
		Action: profileGet,
	}
}

func profileGet(c *cli.Context) error {
	mgr, err := runtimeFrom(c).manager(c.Context)
	if err != nil {
		return err
	}

	env, err := mgr.Profile(c.Context)
	if err != nil {
		return err
	}
	if env == nil {
		return errSessionAbandoned
	}
	return printResult(c, profileView(env.Data))
}

func profileUpdate(c *cli.Context) error {
	fields, err := parseProfileFields(c.String("data"), c.StringSlice("set"))
	if err != nil {
		return err
	}

	mgr, err := runtimeFrom(c).manager(c.Context)
	if err != nil {
		return err
	}

	env, err := mgr.UpdateProfile(c.Context, fields)
	if err != nil {
		return err
	}
	if env == nil {
		return errSessionAbandoned
	}
	return printResult(c, profileView(env.Data))
}

// parseProfileFields merges a JSON object with KEY=VALUE pairs; pairs win.
func parseProfileFields(data string, sets []string) (map[string]any, error) {
	fields := make(map[string]any)
	if data != "" {
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q, want KEY=VALUE", kv)
		}
		fields[k] = v
	}
	if len(fields) == 0 {
		return nil, errors.New("nothing to update (use --set or --data)")
	}
	return fields, nil
}

// profileView drops the rotation fields the server may piggyback on a
// profile response.
func profileView(data map[string]any) map[string]any {
	view := make(map[string]any, len(data))
	for k, v := range data {
		if k == "token_refreshed" || k == "new_tokens" {
			continue
		}
		view[k] = v
	}
	return view
}
