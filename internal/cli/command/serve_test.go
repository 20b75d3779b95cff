package command

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/authctl/internal/cli/config"
	"github.com/yndnr/authctl/internal/telemetry/logger"
)

var listenRe = regexp.MustCompile(`gateway listening on (http://\S+)`)

// startServe runs "authctl serve" until the test ends and returns the
// gateway URL.
func startServe(t *testing.T, e *testEnv) string {
	t.Helper()
	return startServeArgs(t, e)
}

func startServeArgs(t *testing.T, e *testEnv, args ...string) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	stdout := &syncBuffer{}
	stderr := &syncBuffer{}

	app := App()
	app.Reader = strings.NewReader("")
	app.Writer = stdout
	app.ErrWriter = stderr

	done := make(chan error, 1)
	go func() {
		full := append([]string{AppName, "--config", e.configPath, "serve"}, args...)
		done <- app.RunContext(ctx, full)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("serve did not stop after cancel")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m := listenRe.FindStringSubmatch(stdout.String()); m != nil {
			return m[1]
		}
		select {
		case err := <-done:
			t.Fatalf("serve exited early: %v\n%s", err, stderr.String())
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatalf("gateway did not start\nstdout: %s\nstderr: %s", stdout.String(), stderr.String())
	return ""
}

func TestServe_Forwards(t *testing.T) {
	e := newTestEnv(t)
	e.seed("expired-access-token", "valid-refresh-token", false)

	base := startServe(t, e)

	resp, err := http.Get(base + "/api/items?x=1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}

	var echo map[string]any
	if err := json.Unmarshal(body, &echo); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if echo["path"] != "/api/items?x=1" {
		t.Errorf("path = %v, want /api/items?x=1", echo["path"])
	}
	if got := e.server.lastRequest().Auth; got != "Bearer access-refreshed" {
		t.Errorf("upstream Authorization = %q, want refreshed token", got)
	}
}

func TestServe_HealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.seed("valid-access-token", "valid-refresh-token", true)

	base := startServe(t, e)

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "authctl_") {
		t.Errorf("metrics missing authctl series:\n%s", body)
	}
}

func TestServe_ReloadsLogLevel(t *testing.T) {
	e := newTestEnv(t)
	e.seed("valid-access-token", "valid-refresh-token", true)
	t.Cleanup(func() { logger.SetLevel(config.DefaultLogLevel) })

	startServe(t, e)
	if got := logger.GetLevel(); got != "warn" {
		t.Fatalf("initial level = %q, want warn", got)
	}

	e.writeConfig(func(cfg *config.CLIConfig) { cfg.Log.Level = "debug" })

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if logger.GetLevel() == "debug" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("log level = %q after config change, want debug", logger.GetLevel())
}

func TestServe_ListenError(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.run("serve", "--listen", "not-an-address")
	if err == nil {
		t.Fatal("serve with bad listen address should fail")
	}
}

func TestServe_VerifiesStoredSession(t *testing.T) {
	tests := []struct {
		name     string
		valid    bool
		args     []string
		wantAuth bool
	}{
		{"accepted session kept", true, nil, true},
		{"rejected session cleared", false, nil, false},
		{"check disabled", false, []string{"--verify=false"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.server.set(func(m *mockServer) { m.refreshOK = false })
			e.seed("stored-access-token", "stored-refresh-token", tt.valid)

			base := startServeArgs(t, e, tt.args...)

			resp, err := http.Get(base + "/healthz")
			if err != nil {
				t.Fatalf("GET /healthz: %v", err)
			}
			var health struct {
				Authenticated bool `json:"authenticated"`
			}
			json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()

			if health.Authenticated != tt.wantAuth {
				t.Errorf("authenticated = %t, want %t", health.Authenticated, tt.wantAuth)
			}
			if stored := e.storedPair(); stored.IsZero() == tt.wantAuth {
				t.Errorf("stored pair = %+v, want cleared = %t", stored, !tt.wantAuth)
			}
		})
	}
}
