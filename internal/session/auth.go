package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// loginRequest is the body of the login call.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges username and password for a credential pair.
//
// On 2xx the pair in data.tokens is adopted and the full envelope is
// returned. Any other status yields domain.ErrLoginFailed; transport errors
// are returned as is.
func (m *Manager) Login(ctx context.Context, username, password string) (*domain.Envelope, error) {
	payload, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+m.endpoints.Login, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, requestID(ctx, req.Header))

	resp, err := m.transport.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		connection.Drain(resp)
		return nil, domain.ErrLoginFailed.WithDetails(fmt.Sprintf("status %d", resp.StatusCode))
	}

	env, err := connection.DecodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	tokens, ok := env.Tokens()
	if !ok {
		return nil, domain.ErrMalformedEnvelope.WithDetails("login response carries no tokens")
	}

	if err := m.SetTokens(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		m.log.WithContext(ctx).Warn("failed to persist credentials after login", "error", err)
	}
	m.log.WithContext(ctx).Info("logged in", "username", username)
	return env, nil
}

// Logout notifies the server and clears the credentials whatever the
// outcome of that call. Only a failure to clear the store is returned.
func (m *Manager) Logout(ctx context.Context) error {
	log := m.log.WithContext(ctx)

	resp, err := m.Request(ctx, m.endpoints.Logout, &RequestOptions{Method: http.MethodPost})
	switch {
	case err != nil:
		log.Info("logout call failed", "error", err)
	case resp == nil:
		log.Info("logout call abandoned")
	default:
		log.Debug("logout call completed", "status", resp.StatusCode)
		connection.Drain(resp)
	}

	return m.ClearTokens(ctx)
}

// Profile fetches the current user's profile.
func (m *Manager) Profile(ctx context.Context) (*domain.Envelope, error) {
	return m.profileCall(ctx, http.MethodGet, nil, domain.ErrProfileFetchFailed)
}

// UpdateProfile sends body, JSON-encoded, as the new profile.
func (m *Manager) UpdateProfile(ctx context.Context, body any) (*domain.Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithCause(err)
	}
	return m.profileCall(ctx, http.MethodPut, payload, domain.ErrProfileUpdateFailed)
}

// Verify checks the stored session against the server by fetching the
// profile. Any failure other than cancellation ends the session: the
// credentials are cleared and the navigator is sent to the login route.
// Without an access token it returns domain.ErrUnauthenticated and makes
// no call.
func (m *Manager) Verify(ctx context.Context) (*domain.Envelope, error) {
	used := m.accessToken()
	if used == "" {
		return nil, domain.ErrUnauthenticated
	}

	env, err := m.Profile(ctx)
	if err == nil && env != nil {
		return env, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, domain.ErrSessionExpired) {
		return nil, err
	}
	if err == nil {
		// Abandoned by the request path, which already cleared and navigated.
		return nil, domain.ErrSessionExpired.WithDetails("verification abandoned")
	}

	m.expire(ctx, used, err)
	return nil, domain.ErrSessionExpired.WithCause(err)
}

// profileCall performs a profile request and adopts credentials the
// server reports in the body via token_refreshed / new_tokens.
func (m *Manager) profileCall(ctx context.Context, method string, body []byte, failure *domain.DomainError) (*domain.Envelope, error) {
	resp, err := m.Request(ctx, m.endpoints.Profile, &RequestOptions{Method: method, Body: body})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		connection.Drain(resp)
		return nil, failure.WithDetails(fmt.Sprintf("status %d", resp.StatusCode))
	}

	env, err := connection.DecodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if tokens, ok := env.RefreshedTokens(); ok {
		m.adopt(ctx, tokens.Credentials(), metric.RefreshPassiveBody)
	}
	return env, nil
}
