package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/authctl/internal/cli/connection"
	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// HeaderRequestID correlates a call across client and server logs.
const HeaderRequestID = "X-Request-ID"

// RequestOptions describes an authenticated call. The zero value is a GET
// without body.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Header is merged over the defaults. Authorization is always replaced
	// by the session's own value.
	Header http.Header

	// Body is sent verbatim, and again on the single retry after a refresh.
	Body []byte
}

// Request performs an authenticated call to baseURL+path.
//
// Results:
//   - no access token: domain.ErrUnauthenticated, nothing is sent
//   - transport failure: the transport error, unmodified
//   - 401 with a successful refresh: the response of the reissued call,
//     whatever its status
//   - 401 with a failed refresh: domain.ErrSessionExpired after the
//     credentials are cleared and the Navigator is invoked, or (nil, nil)
//     with WithSilentAbandon
//   - anything else: the response as received
//
// The caller must close the returned response body.
func (m *Manager) Request(ctx context.Context, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	access := m.accessToken()
	if access == "" {
		return nil, domain.ErrUnauthenticated
	}

	start := time.Now()
	reqID := requestID(ctx, opts.Header)
	log := m.log.WithContext(ctx).With("method", methodOf(opts), "path", path, "request_id", reqID)

	m.maybePreempt(ctx, access)

	// 1. First attempt
	resp, used, err := m.send(ctx, path, opts, reqID)
	if err != nil {
		m.metrics.ObserveRequest(0, time.Since(start))
		return nil, err
	}
	m.applyHeaderRefresh(ctx, resp)

	if resp.StatusCode != http.StatusUnauthorized {
		m.metrics.ObserveRequest(resp.StatusCode, time.Since(start))
		return resp, nil
	}

	// 2. Rejected: refresh once, then reissue
	connection.Drain(resp)
	log.Debug("access token rejected, refreshing")

	if err := m.refreshAfter(ctx, used, metric.RefreshActive); err != nil {
		m.metrics.ObserveRequest(http.StatusUnauthorized, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return m.expire(ctx, used, err)
	}

	// 3. Single retry. Its result is final, including another 401.
	retry, _, err := m.send(ctx, path, opts, reqID)
	if err != nil {
		m.metrics.ObserveRequest(0, time.Since(start))
		return nil, err
	}
	m.applyHeaderRefresh(ctx, retry)
	m.metrics.ObserveRequest(retry.StatusCode, time.Since(start))

	if retry.StatusCode == http.StatusUnauthorized {
		log.Warn("retried call rejected again, returning response")
	}
	return retry, nil
}

// send issues one attempt with the current access token and reports which
// token it used.
func (m *Manager) send(ctx context.Context, path string, opts *RequestOptions, reqID string) (*http.Response, string, error) {
	access := m.accessToken()
	if access == "" {
		return nil, "", domain.ErrUnauthenticated
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, methodOf(opts), m.baseURL+path, body)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, vs := range opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set(HeaderRequestID, reqID)

	resp, err := m.transport.Do(req)
	if err != nil {
		return nil, access, err
	}
	return resp, access, nil
}

// applyHeaderRefresh adopts credentials rotated through response headers,
// whatever the status code.
func (m *Manager) applyHeaderRefresh(ctx context.Context, resp *http.Response) {
	if !strings.EqualFold(resp.Header.Get(domain.HeaderTokenRefreshed), "true") {
		return
	}
	pair := domain.CredentialPair{
		AccessToken:  resp.Header.Get(domain.HeaderNewAccessToken),
		RefreshToken: resp.Header.Get(domain.HeaderNewRefreshToken),
	}
	if !pair.Complete() {
		return
	}
	m.adopt(ctx, pair, metric.RefreshPassiveHeader)
}

func methodOf(opts *RequestOptions) string {
	if opts.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(opts.Method)
}

// requestID reuses the caller's X-Request-ID, then the one carried by ctx,
// and otherwise mints a ULID.
func requestID(ctx context.Context, h http.Header) string {
	if id := h.Get(HeaderRequestID); id != "" {
		return id
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return ulid.Make().String()
}
