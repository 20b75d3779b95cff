package repl

import (
	"reflect"
	"testing"
)

func TestNewCompleter(t *testing.T) {
	c := NewCompleter([]string{"status"})
	if c == nil {
		t.Fatal("NewCompleter returned nil")
	}
	want := []string{"exit", "history", "quit", "status"}
	if !reflect.DeepEqual(c.commands, want) {
		t.Errorf("commands = %q, want %q", c.commands, want)
	}
}

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter([]string{"login", "logout", "profile", "profile get", "profile update", "request"})

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"profile prefix", "profile", []string{"profile", "profile get", "profile update"}},
		{"subcommand prefix", "profile u", []string{"profile update"}},
		{"shared prefix", "log", []string{"login", "logout"}},
		{"builtin", "ex", []string{"exit"}},
		{"leading space", "  req", []string{"request"}},
		{"no match", "nonexistent", nil},
		{"empty prefix", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Complete(tt.prefix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Complete(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}
