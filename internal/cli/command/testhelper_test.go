package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/authctl/internal/cli/config"
	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/storage/credstore"
)

// mockServer is an auth API: login hands out login-access/login-refresh,
// refresh hands out the next pair, and /api/items echoes the request.
type mockServer struct {
	*httptest.Server

	mu        sync.Mutex
	valid     map[string]bool
	refreshOK bool
	next      domain.TokenPair
	profile   map[string]any
	rotate    *domain.TokenPair
	// headerRotate is announced once through rotation headers on /api/*.
	headerRotate *domain.TokenPair

	requests     []recordedRequest
	refreshCalls int
	logoutCalls  int
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Header http.Header
	Body   string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{
		valid:     make(map[string]bool),
		refreshOK: true,
		next:      domain.TokenPair{AccessToken: "access-refreshed", RefreshToken: "refresh-refreshed"},
		profile:   map[string]any{"username": "alice", "full_name": "Alice"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", m.handleLogin)
	mux.HandleFunc("/api/auth/refresh", m.handleRefresh)
	mux.HandleFunc("/api/auth/logout", m.handleLogout)
	mux.HandleFunc("/api/auth/profile", m.handleProfile)
	mux.HandleFunc("/api/", m.handleAny)

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) accept(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid[token] = true
}

func (m *mockServer) revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.valid, token)
}

func (m *mockServer) set(fn func(m *mockServer)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// record stores the request and reports whether its bearer token is valid.
func (m *mockServer) record(r *http.Request) (recordedRequest, bool) {
	body, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.RequestURI(),
		Auth:   r.Header.Get("Authorization"),
		Header: r.Header.Clone(),
		Body:   string(body),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, rec)
	return rec, m.valid[strings.TrimPrefix(rec.Auth, "Bearer ")]
}

func (m *mockServer) lastRequest() recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return recordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

func (m *mockServer) logouts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutCalls
}

func (m *mockServer) refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

func (m *mockServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]any{"msg": "bad json"})
		return
	}
	if req.Username != "alice" || req.Password != "secret" {
		jsonResponse(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "bad credentials"})
		return
	}

	pair := domain.TokenPair{AccessToken: "login-access-token", RefreshToken: "login-refresh-token"}
	m.accept(pair.AccessToken)
	jsonResponse(w, http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{
			"tokens": pair,
			"user":   map[string]any{"username": "alice", "role": "admin"},
		},
	})
}

func (m *mockServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.refreshCalls++
	ok, next := m.refreshOK, m.next
	m.mu.Unlock()

	if !ok {
		jsonResponse(w, http.StatusUnauthorized, map[string]any{"code": 401})
		return
	}
	m.accept(next.AccessToken)
	jsonResponse(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"tokens": next}})
}

func (m *mockServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.logoutCalls++
	m.mu.Unlock()

	if _, ok := m.record(r); !ok {
		jsonResponse(w, http.StatusUnauthorized, map[string]any{"code": 401})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"code": 0})
}

func (m *mockServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := m.record(r)
	if !ok {
		jsonResponse(w, http.StatusUnauthorized, map[string]any{"code": 401})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Method == http.MethodPut {
		var update map[string]any
		if err := json.Unmarshal([]byte(rec.Body), &update); err != nil {
			jsonResponse(w, http.StatusBadRequest, map[string]any{"msg": "bad json"})
			return
		}
		for k, v := range update {
			m.profile[k] = v
		}
	}

	data := make(map[string]any, len(m.profile)+2)
	for k, v := range m.profile {
		data[k] = v
	}
	if m.rotate != nil {
		data["token_refreshed"] = true
		data["new_tokens"] = *m.rotate
		m.valid[m.rotate.AccessToken] = true
		m.rotate = nil
	}
	jsonResponse(w, http.StatusOK, map[string]any{"code": 0, "data": data})
}

func (m *mockServer) handleAny(w http.ResponseWriter, r *http.Request) {
	rec, ok := m.record(r)
	if !ok {
		jsonResponse(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "token expired"})
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/missing") {
		jsonResponse(w, http.StatusNotFound, map[string]any{"code": 404, "msg": "not found"})
		return
	}
	m.mu.Lock()
	if m.headerRotate != nil {
		w.Header().Set(domain.HeaderTokenRefreshed, "true")
		w.Header().Set(domain.HeaderNewAccessToken, m.headerRotate.AccessToken)
		w.Header().Set(domain.HeaderNewRefreshToken, m.headerRotate.RefreshToken)
		m.valid[m.headerRotate.AccessToken] = true
		m.headerRotate = nil
	}
	m.mu.Unlock()
	w.Header().Set("X-Upstream", "mock")
	jsonResponse(w, http.StatusOK, map[string]any{
		"method": rec.Method,
		"path":   rec.Path,
		"body":   rec.Body,
	})
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// testEnv is a config file in a temp dir pointing at a mock server, with
// credentials kept in a file store next to it.
type testEnv struct {
	t          *testing.T
	server     *mockServer
	dir        string
	configPath string
	storePath  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	server := newMockServer(t)
	dir := t.TempDir()

	e := &testEnv{
		t:          t,
		server:     server,
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		storePath:  filepath.Join(dir, "credentials.json"),
	}
	e.writeConfig(nil)
	return e
}

// writeConfig saves a config for the mock server, adjusted by mutate.
func (e *testEnv) writeConfig(mutate func(cfg *config.CLIConfig)) {
	e.t.Helper()
	cfg := config.Default()
	cfg.Server.BaseURL = e.server.URL + "/api"
	cfg.Store.Path = e.storePath
	cfg.Auth.RefreshRate = 0
	cfg.Serve.Listen = "127.0.0.1:0"
	if mutate != nil {
		mutate(cfg)
	}
	if err := config.Save(cfg, e.configPath); err != nil {
		e.t.Fatalf("Save config: %v", err)
	}
}

// run executes the CLI with the test config and returns what it printed.
func (e *testEnv) run(args ...string) (stdout, stderr string, err error) {
	return e.runWithInput("", args...)
}

func (e *testEnv) runWithInput(input string, args ...string) (stdout, stderr string, err error) {
	return e.runContext(context.Background(), input, args...)
}

func (e *testEnv) runContext(ctx context.Context, input string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer

	app := App()
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = &errOut

	full := append([]string{AppName, "--config", e.configPath}, args...)
	err := app.RunContext(ctx, full)
	return out.String(), errOut.String(), err
}

// storedPair reads the credentials left on disk.
func (e *testEnv) storedPair() domain.CredentialPair {
	e.t.Helper()
	store, err := credstore.NewFile(credstore.FileConfig{Path: e.storePath})
	if err != nil {
		e.t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	access, _ := store.Get(ctx, domain.KeyAccessToken)
	refresh, _ := store.Get(ctx, domain.KeyRefreshToken)
	return domain.CredentialPair{AccessToken: access, RefreshToken: refresh}
}

// seed stores a pair and makes the server accept its access token.
func (e *testEnv) seed(access, refresh string, valid bool) {
	e.t.Helper()
	store, err := credstore.NewFile(credstore.FileConfig{Path: e.storePath})
	if err != nil {
		e.t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := credstore.SetPair(context.Background(), store,
		domain.KeyAccessToken, access, domain.KeyRefreshToken, refresh); err != nil {
		e.t.Fatalf("seed store: %v", err)
	}
	if valid {
		e.server.accept(access)
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a poller.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
