package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/infra/buildinfo"
	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/telemetry/logger"
)

// APIPrefix is stripped from forwarded paths.
const APIPrefix = "/api"

// maxBodySize caps forwarded request bodies.
const maxBodySize = 10 << 20

// hopHeaders apply to a single connection and are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// requestOnly are caller headers the session replaces or that describe the
// local hop.
var requestOnly = []string{"Authorization", "Cookie", "Content-Length", "Host"}

// rotationHeaders carry fresh credentials and stay inside the gateway.
var rotationHeaders = []string{
	domain.HeaderTokenRefreshed,
	domain.HeaderNewAccessToken,
	domain.HeaderNewRefreshToken,
}

// forwarder replays requests through the session manager.
type forwarder struct {
	m   *session.Manager
	log logger.Logger
}

func (f *forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The escaped form keeps encoded delimiters inside their segment.
	path := strings.TrimPrefix(r.URL.EscapedPath(), APIPrefix)
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, domain.ErrInvalidArgument.Code, "request body too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "cannot read request body", "")
		return
	}
	if len(body) == 0 {
		body = nil
	}

	resp, err := f.m.Request(r.Context(), path, &session.RequestOptions{
		Method: r.Method,
		Header: forwardHeaders(r.Header),
		Body:   body,
	})
	if err == nil && resp == nil {
		err = domain.ErrSessionExpired
	}
	if err != nil {
		f.fail(w, r, path, err)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.log.WithContext(r.Context()).Debug("copy response body", "error", err)
	}
}

// fail answers a request the session manager could not complete. Errors
// without a domain code are reported as an unreachable upstream.
func (f *forwarder) fail(w http.ResponseWriter, r *http.Request, path string, err error) {
	if errors.Is(err, context.Canceled) {
		f.log.WithContext(r.Context()).Debug("caller went away", "path", path)
		return
	}

	de := domain.AsDomainError(err, domain.ErrUpstreamUnavailable)
	status := de.HTTPStatus()
	login := ""
	if status == http.StatusUnauthorized {
		login = f.m.LoginRoute()
	} else {
		f.log.WithContext(r.Context()).Warn("upstream request failed", "path", path, "error", err)
	}
	writeError(w, status, de.Code, de.Message, login)
}

// forwardHeaders returns the caller headers that are safe to send upstream.
func forwardHeaders(in http.Header) http.Header {
	out := in.Clone()
	removeConnectionHeaders(out)
	for _, h := range requestOnly {
		out.Del(h)
	}
	return out
}

func copyHeaders(dst, src http.Header) {
	src = src.Clone()
	removeConnectionHeaders(src)
	for _, h := range rotationHeaders {
		src.Del(h)
	}
	for k, vs := range src {
		dst.Del(k)
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// removeConnectionHeaders drops hop-by-hop headers, including those named
// by Connection.
func removeConnectionHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, name := range strings.Split(f, ",") {
			if name = textproto.TrimString(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	Version       string `json:"version"`
}

func healthHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{
			Status:        "ok",
			Authenticated: m.Authenticated(),
			Version:       buildinfo.Get().Version,
		})
	}
}
