package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/storage/credstore"
	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// Manager holds a credential pair and performs authenticated calls.
//
// A Manager is safe for concurrent use.
type Manager struct {
	// mu guards creds. writeMu orders writes so the store always ends up
	// with the same pair as memory.
	mu      sync.RWMutex
	writeMu sync.Mutex
	creds   domain.CredentialPair

	store     credstore.Store
	transport Doer
	baseURL   string
	endpoints Endpoints

	log        logger.Logger
	nav        Navigator
	loginRoute string
	metrics    *metric.Registry

	refreshGroup  singleflight.Group
	limiter       *rate.Limiter
	preemptWindow time.Duration
	silentAbandon bool
	now           func() time.Time
}

// New creates a Manager and loads any persisted pair from store. A nil
// store keeps credentials in memory only.
func New(ctx context.Context, store credstore.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		store = credstore.NewMemory()
	}

	m := &Manager{
		store:      store,
		baseURL:    DefaultBaseURL,
		endpoints:  DefaultEndpoints(),
		log:        logger.Nop(),
		nav:        nopNavigator{},
		loginRoute: DefaultLoginRoute,
		limiter:    rate.NewLimiter(DefaultRefreshRate, DefaultRefreshBurst),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		client, err := connection.NewHTTPClient(connection.Config{BaseURL: m.baseURL})
		if err != nil {
			return nil, err
		}
		m.transport = client
	}

	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// load reads the persisted pair. A pair with only one half present is
// treated as absent and the stray key is removed.
func (m *Manager) load(ctx context.Context) error {
	access, errA := m.store.Get(ctx, domain.KeyAccessToken)
	refresh, errR := m.store.Get(ctx, domain.KeyRefreshToken)

	foundA := errA == nil
	foundR := errR == nil
	if errA != nil && !errors.Is(errA, credstore.ErrNotFound) {
		return domain.ErrStoreUnavailable.WithCause(errA)
	}
	if errR != nil && !errors.Is(errR, credstore.ErrNotFound) {
		return domain.ErrStoreUnavailable.WithCause(errR)
	}

	switch {
	case foundA && foundR:
		m.creds = domain.CredentialPair{AccessToken: access, RefreshToken: refresh}
		m.log.Debug("credentials loaded from store")
	case foundA || foundR:
		m.log.Warn("discarding incomplete credential pair from store",
			"has_access_token", foundA, "has_refresh_token", foundR)
		if err := credstore.DeletePair(ctx, m.store, domain.KeyAccessToken, domain.KeyRefreshToken); err != nil {
			m.log.Warn("failed to remove stray credential", "error", err)
		}
	}
	return nil
}

// ============================================================================
// Credential State
// ============================================================================

// Credentials returns a copy of the current pair.
func (m *Manager) Credentials() domain.CredentialPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Authenticated reports whether an access token is held.
func (m *Manager) Authenticated() bool {
	return m.accessToken() != ""
}

// LoginRoute returns the route handed to the Navigator on expiry.
func (m *Manager) LoginRoute() string {
	return m.loginRoute
}

// BaseURL returns the API root.
func (m *Manager) BaseURL() string {
	return m.baseURL
}

func (m *Manager) accessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken
}

func (m *Manager) refreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.RefreshToken
}

// SetTokens replaces the pair in memory and in the store. No shape
// validation is performed. The in-memory pair is updated even when the
// store write fails, in which case ErrStoreUnavailable is returned.
func (m *Manager) SetTokens(ctx context.Context, access, refresh string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return m.setLocked(ctx, domain.CredentialPair{AccessToken: access, RefreshToken: refresh})
}

func (m *Manager) setLocked(ctx context.Context, pair domain.CredentialPair) error {
	m.mu.Lock()
	m.creds = pair
	m.mu.Unlock()

	err := credstore.SetPair(ctx, m.store,
		domain.KeyAccessToken, pair.AccessToken,
		domain.KeyRefreshToken, pair.RefreshToken)
	if err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// adopt installs a pair received from the server. Store failures are
// logged; the call that delivered the pair still succeeds.
func (m *Manager) adopt(ctx context.Context, pair domain.CredentialPair, kind string) {
	if err := m.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		m.log.WithContext(ctx).Warn("failed to persist rotated credentials", "kind", kind, "error", err)
	}
	m.metrics.ObserveRefresh(kind, metric.ResultSuccess)
	m.log.WithContext(ctx).Debug("credentials rotated", "kind", kind)
}

// ClearTokens erases the pair from memory and from the store. It is
// idempotent.
func (m *Manager) ClearTokens(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return m.clearLocked(ctx)
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.mu.Lock()
	m.creds = domain.CredentialPair{}
	m.mu.Unlock()

	if err := credstore.DeletePair(ctx, m.store, domain.KeyAccessToken, domain.KeyRefreshToken); err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// expire ends a session whose refresh failed. Only the caller whose token is
// still current clears it and navigates, so concurrent failures produce a
// single navigation.
func (m *Manager) expire(ctx context.Context, used string, cause error) (*http.Response, error) {
	log := m.log.WithContext(ctx)

	m.writeMu.Lock()
	current := m.accessToken() == used
	if current {
		if err := m.clearLocked(ctx); err != nil {
			log.Warn("failed to clear credentials from store", "error", err)
		}
	}
	m.writeMu.Unlock()

	if current {
		log.Warn("session expired, credentials cleared", "error", cause)
		m.metrics.ObserveForcedLogout()
		m.nav.NavigateToLogin(ctx, m.loginRoute)
	}

	if m.silentAbandon {
		return nil, nil
	}
	return nil, domain.ErrSessionExpired.WithCause(cause)
}

// String describes the manager for debug output without exposing tokens.
func (m *Manager) String() string {
	return fmt.Sprintf("session.Manager{base_url=%s, authenticated=%t}", m.baseURL, m.Authenticated())
}
