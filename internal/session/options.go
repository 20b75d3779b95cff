package session

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "http://localhost:8888/api"

// Default pacing of refresh exchanges.
const (
	DefaultRefreshRate  = rate.Limit(1)
	DefaultRefreshBurst = 3
)

// Doer sends one HTTP request. *http.Client and *connection.HTTPClient
// both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints are the auth routes, relative to the base URL.
type Endpoints struct {
	Login   string `koanf:"login" yaml:"login"`
	Refresh string `koanf:"refresh" yaml:"refresh"`
	Logout  string `koanf:"logout" yaml:"logout"`
	Profile string `koanf:"profile" yaml:"profile"`
}

// DefaultEndpoints returns the standard auth routes.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:   "/auth/login",
		Refresh: "/auth/refresh",
		Logout:  "/auth/logout",
		Profile: "/auth/profile",
	}
}

// withDefaults fills empty routes from DefaultEndpoints.
func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Login == "" {
		e.Login = d.Login
	}
	if e.Refresh == "" {
		e.Refresh = d.Refresh
	}
	if e.Logout == "" {
		e.Logout = d.Logout
	}
	if e.Profile == "" {
		e.Profile = d.Profile
	}
	return e
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransport sets the network primitive used for every call.
func WithTransport(d Doer) Option {
	return func(m *Manager) {
		if d != nil {
			m.transport = d
		}
	}
}

// WithBaseURL sets the API root that request paths are appended to.
func WithBaseURL(baseURL string) Option {
	return func(m *Manager) {
		if u := connection.NormalizeBaseURL(baseURL); u != "" {
			m.baseURL = u
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithNavigator sets the collaborator invoked when the session expires.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		if n != nil {
			m.nav = n
		}
	}
}

// WithLoginRoute overrides the route handed to the Navigator.
func WithLoginRoute(route string) Option {
	return func(m *Manager) {
		if route != "" {
			m.loginRoute = route
		}
	}
}

// WithEndpoints overrides auth routes. Empty fields keep their defaults.
func WithEndpoints(e Endpoints) Option {
	return func(m *Manager) {
		m.endpoints = e.withDefaults()
	}
}

// WithMetrics records request and refresh metrics on r.
func WithMetrics(r *metric.Registry) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithRefreshLimit paces refresh exchanges. A limit of rate.Inf disables
// pacing.
func WithRefreshLimit(limit rate.Limit, burst int) Option {
	return func(m *Manager) {
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithPreemptiveRefresh refreshes before sending when the access token is a
// JWT expiring within window. Zero disables it.
func WithPreemptiveRefresh(window time.Duration) Option {
	return func(m *Manager) {
		m.preemptWindow = window
	}
}

// WithSilentAbandon makes Request return (nil, nil) instead of
// domain.ErrSessionExpired when the session cannot be recovered.
func WithSilentAbandon() Option {
	return func(m *Manager) {
		m.silentAbandon = true
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
