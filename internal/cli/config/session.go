package config

import (
	"golang.org/x/time/rate"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/session"
)

// SessionOptions translates the configuration into session.Manager
// options, building the HTTP transport from the server section.
func (c *CLIConfig) SessionOptions() ([]session.Option, error) {
	client, err := connection.NewHTTPClient(connection.Config{
		BaseURL: c.Server.BaseURL,
		Timeout: c.Server.Timeout,
		CAFile:  c.Server.CAFile,
	})
	if err != nil {
		return nil, err
	}

	limit := rate.Limit(c.Auth.RefreshRate)
	if c.Auth.RefreshRate == 0 {
		limit = rate.Inf
	}

	opts := []session.Option{
		session.WithTransport(client),
		session.WithBaseURL(c.Server.BaseURL),
		session.WithLoginRoute(c.Auth.LoginRoute),
		session.WithEndpoints(c.Endpoints),
		session.WithRefreshLimit(limit, c.Auth.RefreshBurst),
	}
	if c.Auth.PreemptiveRefresh > 0 {
		opts = append(opts, session.WithPreemptiveRefresh(c.Auth.PreemptiveRefresh))
	}
	if c.Auth.SilentAbandon {
		opts = append(opts, session.WithSilentAbandon())
	}
	return opts, nil
}
