package command

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/telemetry/logger"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the credential pair",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Username",
				EnvVars:  []string{"AUTHCTL_USERNAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password (prefer --password-stdin)",
				EnvVars: []string{"AUTHCTL_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:  "password-stdin",
				Usage: "Read the password from stdin",
			},
		},
		Action: loginAction,
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out and erase stored credentials",
		Action: logoutAction,
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"whoami"},
		Usage:   "Show the stored session",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Check the session against the server; a rejected session is cleared",
			},
		},
		Action: statusAction,
	}
}

func loginAction(c *cli.Context) error {
	rt := runtimeFrom(c)

	password, err := readPassword(c, rt)
	if err != nil {
		return err
	}

	mgr, err := rt.manager(c.Context)
	if err != nil {
		return err
	}

	env, err := mgr.Login(c.Context, c.String("username"), password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(rt.stdout, "Logged in to %s\n", mgr.BaseURL())
	if user, ok := env.Data["user"].(map[string]any); ok && len(user) > 0 {
		return printResult(c, user)
	}
	return nil
}

// readPassword takes the password from --password or the first line of
// stdin.
func readPassword(c *cli.Context, rt *runtime) (string, error) {
	if c.Bool("password-stdin") {
		if c.IsSet("password") {
			return "", errors.New("--password and --password-stdin are mutually exclusive")
		}
		line, err := bufio.NewReader(rt.stdin).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return "", errors.New("empty password on stdin")
		}
		return line, nil
	}

	password := c.String("password")
	if password == "" {
		return "", errors.New("password required (use --password or --password-stdin)")
	}
	return password, nil
}

func logoutAction(c *cli.Context) error {
	rt := runtimeFrom(c)

	mgr, err := rt.manager(c.Context)
	if err != nil {
		return err
	}
	if !mgr.Authenticated() {
		fmt.Fprintln(rt.stdout, "Not logged in")
		return nil
	}

	if err := mgr.Logout(c.Context); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(rt.stdout, "Logged out")
	return nil
}

// statusView is the status command output. Tokens are masked.
type statusView struct {
	Server          string `json:"server" yaml:"server"`
	Authenticated   bool   `json:"authenticated" yaml:"authenticated"`
	AccessToken     string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	RefreshToken    string `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	AccessExpiresAt string `json:"access_expires_at,omitempty" yaml:"access_expires_at,omitempty"`
	AccessExpiresIn string `json:"access_expires_in,omitempty" yaml:"access_expires_in,omitempty"`
	Verified        *bool  `json:"verified,omitempty" yaml:"verified,omitempty"`
	Store           string `json:"store" yaml:"store"`
}

func statusAction(c *cli.Context) error {
	rt := runtimeFrom(c)

	mgr, err := rt.manager(c.Context)
	if err != nil {
		return err
	}
	cfg, err := rt.config()
	if err != nil {
		return err
	}

	var verifyErr error
	verified := false
	if c.Bool("verify") && mgr.Authenticated() {
		_, verifyErr = mgr.Verify(c.Context)
		verified = verifyErr == nil
	}

	creds := mgr.Credentials()
	view := statusView{
		Server:        mgr.BaseURL(),
		Authenticated: mgr.Authenticated(),
		AccessToken:   logger.MaskToken(creds.AccessToken),
		RefreshToken:  logger.MaskToken(creds.RefreshToken),
		Store:         cfg.StoreConfig().Backend,
	}
	if exp, ok := creds.AccessExpiry(); ok {
		view.AccessExpiresAt = exp.Format(time.RFC3339)
		if left := time.Until(exp); left > 0 {
			view.AccessExpiresIn = left.Round(time.Second).String()
		} else {
			view.AccessExpiresIn = "expired"
		}
	}
	if c.Bool("verify") {
		view.Verified = &verified
	}
	if err := printResult(c, view); err != nil {
		return err
	}
	if verifyErr != nil {
		return fmt.Errorf("verify: %w", verifyErr)
	}
	return nil
}
