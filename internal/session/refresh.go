package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// refreshKey is the singleflight key shared by every refresh attempt.
const refreshKey = "refresh"

// refreshAfter rotates the pair after the server rejected token used.
//
// If the pair was already rotated since used was sent, nothing is exchanged
// and the caller retries with the current token. Otherwise callers join a
// single in-flight exchange. The exchange runs detached from the caller's
// cancellation so one caller giving up does not fail the others; the caller
// itself stops waiting when ctx is done.
func (m *Manager) refreshAfter(ctx context.Context, used, kind string) error {
	if m.rotatedSince(used) {
		m.metrics.ObserveRefresh(kind, metric.ResultShared)
		return nil
	}

	detached := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		if m.rotatedSince(used) {
			return nil, nil
		}
		return nil, m.exchange(detached, kind)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rotatedSince reports whether a different, non-empty access token has
// replaced used.
func (m *Manager) rotatedSince(used string) bool {
	cur := m.accessToken()
	return cur != "" && cur != used
}

// exchange trades the refresh token for a new pair at the refresh endpoint.
func (m *Manager) exchange(ctx context.Context, kind string) (err error) {
	log := m.log.WithContext(ctx).With("kind", kind)
	defer func() {
		if err != nil {
			m.metrics.ObserveRefresh(kind, metric.ResultFailure)
			log.Info("token refresh failed", "error", err)
		}
	}()

	refresh := m.refreshToken()
	if refresh == "" {
		return domain.ErrRefreshFailed.WithDetails("no refresh token")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return domain.ErrRefreshFailed.WithCause(err)
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refresh})
	if err != nil {
		return domain.ErrRefreshFailed.WithCause(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+m.endpoints.Refresh, bytes.NewReader(payload))
	if err != nil {
		return domain.ErrRefreshFailed.WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, requestID(ctx, req.Header))

	resp, err := m.transport.Do(req)
	if err != nil {
		return domain.ErrRefreshFailed.WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		connection.Drain(resp)
		return domain.ErrRefreshFailed.WithDetails(fmt.Sprintf("refresh endpoint returned %d", resp.StatusCode))
	}

	env, err := connection.DecodeEnvelope(resp)
	if err != nil {
		return domain.ErrRefreshFailed.WithCause(err)
	}
	tokens, ok := env.Tokens()
	if !ok {
		return domain.ErrRefreshFailed.WithCause(domain.ErrMalformedEnvelope.WithDetails("refresh response carries no tokens"))
	}

	m.adopt(ctx, tokens.Credentials(), kind)
	return nil
}

// maybePreempt refreshes ahead of time when the access token is a JWT
// about to expire. Failure leaves the call to the normal 401 handling.
func (m *Manager) maybePreempt(ctx context.Context, access string) {
	if m.preemptWindow <= 0 || m.refreshToken() == "" {
		return
	}
	exp, ok := domain.TokenExpiry(access)
	if !ok || exp.Sub(m.now()) > m.preemptWindow {
		return
	}

	if err := m.refreshAfter(ctx, access, metric.RefreshPreemptive); err != nil {
		m.log.WithContext(ctx).Debug("preemptive refresh failed", "error", err)
	}
}
