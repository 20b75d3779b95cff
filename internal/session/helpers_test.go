package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/storage/credstore"
)

// fakeAPI is an auth server with switchable behaviour.
//
// /api/data and /api/auth/profile accept only access tokens in valid.
// /api/auth/refresh hands out next when refreshOK is set.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	valid         map[string]bool
	refreshOK     bool
	next          domain.TokenPair
	refreshDelay  time.Duration
	headerRotate  *domain.TokenPair
	profileRotate *domain.TokenPair
	logoutStatus  int
	profileStatus int
	rejectAll     bool
	// refreshFault breaks the refresh endpoint: "drop" closes the
	// connection, "no-tokens" answers 200 without data.tokens.
	refreshFault string

	apiCalls     atomic.Int32
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32

	authHeaders    []string
	bodies         []string
	refreshBodies  []string
	contentTypes   []string
	requestIDs     []string
	refreshHeaders []http.Header
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		t:            t,
		valid:        make(map[string]bool),
		refreshOK:    true,
		next:         domain.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"},
		logoutStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", api.handleLogin)
	mux.HandleFunc("/api/auth/refresh", api.handleRefresh)
	mux.HandleFunc("/api/auth/logout", api.handleLogout)
	mux.HandleFunc("/api/auth/profile", api.handleProfile)
	mux.HandleFunc("/api/data", api.handleData)

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) baseURL() string {
	return a.srv.URL + "/api"
}

func (a *fakeAPI) accept(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid[token] = true
}

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

// authorize records the call and reports whether its bearer token is valid.
func (a *fakeAPI) authorize(r *http.Request) bool {
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	defer a.mu.Unlock()

	auth := r.Header.Get("Authorization")
	a.authHeaders = append(a.authHeaders, auth)
	a.bodies = append(a.bodies, string(body))
	a.contentTypes = append(a.contentTypes, r.Header.Get("Content-Type"))
	a.requestIDs = append(a.requestIDs, r.Header.Get(HeaderRequestID))

	return !a.rejectAll && a.valid[strings.TrimPrefix(auth, "Bearer ")]
}

func (a *fakeAPI) handleData(w http.ResponseWriter, r *http.Request) {
	a.apiCalls.Add(1)
	if !a.authorize(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "token expired"})
		return
	}

	a.mu.Lock()
	rotate := a.headerRotate
	a.mu.Unlock()
	if rotate != nil {
		w.Header().Set(domain.HeaderTokenRefreshed, "true")
		w.Header().Set(domain.HeaderNewAccessToken, rotate.AccessToken)
		w.Header().Set(domain.HeaderNewRefreshToken, rotate.RefreshToken)
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"ok": true}})
}

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshCalls.Add(1)
	if r.Method != http.MethodPost {
		a.t.Errorf("refresh method = %s, want POST", r.Method)
	}
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.refreshBodies = append(a.refreshBodies, string(body))
	a.refreshHeaders = append(a.refreshHeaders, r.Header.Clone())
	delay, ok, next, fault := a.refreshDelay, a.refreshOK, a.next, a.refreshFault
	a.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	switch fault {
	case "drop":
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			a.t.Errorf("hijack: %v", err)
			return
		}
		conn.Close()
		return
	case "no-tokens":
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{}})
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "refresh token invalid"})
		return
	}

	a.accept(next.AccessToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"tokens": next},
	})
}

func (a *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "bad json"})
		return
	}
	if r.Header.Get("Authorization") != "" {
		a.t.Errorf("login carried Authorization %q", r.Header.Get("Authorization"))
	}
	if req.Username != "u" || req.Password != "p" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "bad credentials"})
		return
	}

	a.mu.Lock()
	next := a.next
	a.mu.Unlock()
	a.accept(next.AccessToken)

	writeJSON(w, http.StatusOK, map[string]any{
		"code": 0,
		"msg":  "login ok",
		"data": map[string]any{
			"tokens": next,
			"user":   map[string]any{"username": "u"},
		},
	})
}

func (a *fakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.logoutCalls.Add(1)
	ok := a.authorize(r)

	a.mu.Lock()
	status := a.logoutStatus
	a.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401})
		return
	}
	writeJSON(w, status, map[string]any{"code": 0})
}

func (a *fakeAPI) handleProfile(w http.ResponseWriter, r *http.Request) {
	a.apiCalls.Add(1)
	if !a.authorize(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401})
		return
	}
	a.mu.Lock()
	status := a.profileStatus
	a.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]any{"code": status, "msg": "profile unavailable"})
		return
	}

	data := map[string]any{"username": "u", "full_name": "Old Name"}
	if r.Method == http.MethodPut {
		a.mu.Lock()
		last := a.bodies[len(a.bodies)-1]
		a.mu.Unlock()

		var update map[string]any
		if err := json.Unmarshal([]byte(last), &update); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "bad json"})
			return
		}
		for k, v := range update {
			data[k] = v
		}
	}

	a.mu.Lock()
	rotate := a.profileRotate
	a.mu.Unlock()
	if rotate != nil {
		data["token_refreshed"] = true
		data["new_tokens"] = rotate
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// newTestManager builds a Manager against api with refresh pacing off.
func newTestManager(t *testing.T, api *fakeAPI, store credstore.Store, opts ...Option) *Manager {
	t.Helper()
	if store == nil {
		store = credstore.NewMemory()
	}
	base := []Option{
		WithBaseURL(api.baseURL()),
		WithTransport(api.srv.Client()),
		WithRefreshLimit(rate.Inf, 1),
	}
	m, err := New(context.Background(), store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

// recordingNavigator counts navigations.
type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) NavigateToLogin(_ context.Context, route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// doerFunc adapts a function to Doer.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func stubResponse(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// failingStore is an empty store whose reads fail with getErr and writes
// with writeErr.
type failingStore struct {
	getErr   error
	writeErr error
}

func (s failingStore) Get(context.Context, string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return "", credstore.ErrNotFound
}
func (s failingStore) Set(context.Context, string, string) error { return s.writeErr }
func (s failingStore) Delete(context.Context, string) error      { return s.writeErr }
func (s failingStore) Close() error                              { return nil }

var errDisk = errors.New("disk on fire")

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
