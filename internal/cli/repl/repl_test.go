package repl

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestREPL(input string, exec ExecFunc) (*REPL, *bytes.Buffer) {
	out := &bytes.Buffer{}
	r := New(Config{
		In:       strings.NewReader(input),
		Out:      out,
		Commands: []string{"login", "logout", "profile", "profile get", "profile update"},
		Exec:     exec,
	})
	return r, out
}

func TestNew(t *testing.T) {
	r := New(Config{})
	if r == nil {
		t.Fatal("New returned nil")
	}
	if r.completer == nil {
		t.Error("completer should be initialized")
	}
	if r.history == nil {
		t.Error("history should be initialized")
	}
	if r.prompt != DefaultPrompt {
		t.Errorf("prompt = %q, want %q", r.prompt, DefaultPrompt)
	}
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"quit command", "quit\n"},
		{"EOF", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestREPL(tt.input, nil)
			if err := r.Run(context.Background()); err != nil {
				t.Errorf("Run() returned error: %v", err)
			}
		})
	}
}

func TestREPL_Run_EmptyLines(t *testing.T) {
	r, out := newTestREPL("\n\n\nexit\n", nil)
	if err := r.Run(context.Background()); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}

	if prompts := strings.Count(out.String(), DefaultPrompt); prompts != 4 {
		t.Errorf("prompts = %d, want 4", prompts)
	}
}

func TestREPL_Run_Exec(t *testing.T) {
	var got [][]string
	exec := func(_ context.Context, args []string) error {
		got = append(got, args)
		return nil
	}

	r, _ := newTestREPL("status\nrequest GET /items -H 'X-Trace: a b'\nexit\n", exec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	want := [][]string{
		{"status"},
		{"request", "GET", "/items", "-H", "X-Trace: a b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("exec calls = %q, want %q", got, want)
	}
}

func TestREPL_Run_LastLineWithoutNewline(t *testing.T) {
	var calls int
	exec := func(context.Context, []string) error {
		calls++
		return nil
	}

	r, _ := newTestREPL("status", exec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("exec calls = %d, want 1", calls)
	}
}

func TestREPL_Run_ExecErrorContinues(t *testing.T) {
	var calls int
	exec := func(context.Context, []string) error {
		calls++
		return errors.New("boom")
	}

	r, out := newTestREPL("a\nb\nexit\n", exec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if calls != 2 {
		t.Errorf("exec calls = %d, want 2", calls)
	}
	if n := strings.Count(out.String(), "Error: boom"); n != 2 {
		t.Errorf("printed %d errors, want 2\n%s", n, out.String())
	}
}

func TestREPL_Run_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	r, _ := newTestREPL("status\n", func(context.Context, []string) error {
		calls++
		return nil
	})
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if calls != 0 {
		t.Errorf("exec calls = %d, want 0", calls)
	}
}

func TestREPL_Run_Completion(t *testing.T) {
	r, out := newTestREPL("profile ?\nexit\n", nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	for _, want := range []string{"profile get\n", "profile update\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "logout") {
		t.Errorf("output lists non-matching command\n%s", out.String())
	}
}

func TestREPL_Run_HistoryBuiltin(t *testing.T) {
	r, out := newTestREPL("status\nhistory\nexit\n", func(context.Context, []string) error { return nil })
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if !strings.Contains(out.String(), "   1  status\n") {
		t.Errorf("history output missing entry\n%s", out.String())
	}
}

func TestREPL_Run_HistoryPersisted(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")

	r := New(Config{
		In:          strings.NewReader("status\nlogout\nexit\n"),
		Out:         &bytes.Buffer{},
		HistoryFile: file,
		Exec:        func(context.Context, []string) error { return nil },
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	h := NewHistory(file)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"status", "logout", "exit"}
	if got := h.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("persisted = %q, want %q", got, want)
	}
}

func TestREPL_Run_SplitError(t *testing.T) {
	var calls int
	r, out := newTestREPL("request GET \"/x\nexit\n", func(context.Context, []string) error {
		calls++
		return nil
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if calls != 0 {
		t.Errorf("exec calls = %d, want 0", calls)
	}
	if !strings.Contains(out.String(), "unterminated") {
		t.Errorf("output = %q, want unterminated quote error", out.String())
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{"plain", "profile get", []string{"profile", "get"}, false},
		{"extra spaces", "  a \t b  ", []string{"a", "b"}, false},
		{"double quotes", `request POST /x -d "{\"a\": 1}"`, []string{"request", "POST", "/x", "-d", `{"a": 1}`}, false},
		{"single quotes", `-d '{"a": "b c"}'`, []string{"-d", `{"a": "b c"}`}, false},
		{"backslash in single quotes", `'a\b'`, []string{`a\b`}, false},
		{"escaped space", `a\ b`, []string{"a b"}, false},
		{"empty quotes", `set ""`, []string{"set", ""}, false},
		{"adjacent quoted", `a"b c"d`, []string{"ab cd"}, false},
		{"unterminated", `"abc`, nil, true},
		{"trailing backslash", `abc\`, nil, true},
		{"empty", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitArgs(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitArgs(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitArgs(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}
