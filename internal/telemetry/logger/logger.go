package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (text, json). Empty means json.
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
}

// DefaultConfig is what the CLI logs with before its configuration loads:
// warnings and errors only, as text on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	}
}

// level is shared by every logger built with New, so SetLevel reaches
// loggers that were handed out before the change.
var level = new(slog.LevelVar)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds a logger and sets the shared level to cfg.Level.
func New(cfg Config) (Logger, error) {
	lvl := slog.LevelInfo
	if cfg.Level != "" {
		var ok bool
		if lvl, ok = levelNames[strings.ToLower(cfg.Level)]; !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.Level)
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level.Set(lvl)
	return &slogLogger{sl: slog.New(&scrubHandler{next: h})}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &slogLogger{sl: slog.New(slog.DiscardHandler)}
}

// SetLevel changes the shared log level. Unknown names select info.
func SetLevel(name string) {
	lvl, ok := levelNames[strings.ToLower(name)]
	if !ok {
		lvl = slog.LevelInfo
	}
	level.Set(lvl)
}

// GetLevel returns the shared log level name.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

// ValidLevel reports whether name is an accepted level name.
func ValidLevel(name string) bool {
	_, ok := levelNames[strings.ToLower(name)]
	return ok
}

type slogLogger struct {
	sl  *slog.Logger
	ctx context.Context
}

func (l *slogLogger) log(lvl slog.Level, msg string, args []any) {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.sl.Log(ctx, lvl, msg, args...)
}

func (l *slogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{sl: l.sl.With(args...), ctx: l.ctx}
}

// WithContext binds ctx to every record; the request ID it carries is
// added to the output.
func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{sl: l.sl, ctx: ctx}
}

// scrubHandler redacts credentials before records reach the output and
// stamps the request ID carried by the record's context.
type scrubHandler struct {
	next slog.Handler
	// bound is set once a request_id attribute is attached through With.
	bound bool
}

func (h *scrubHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h *scrubHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	hasID := h.bound
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == requestIDAttr {
			hasID = true
		}
		out.AddAttrs(redactSensitive(a))
		return true
	})
	if !hasID {
		if id := RequestIDFromContext(ctx); id != "" {
			out.AddAttrs(slog.String(requestIDAttr, id))
		}
	}
	return h.next.Handle(ctx, out)
}

func (h *scrubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.bound
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		if a.Key == requestIDAttr {
			bound = true
		}
		scrubbed[i] = redactSensitive(a)
	}
	return &scrubHandler{next: h.next.WithAttrs(scrubbed), bound: bound}
}

func (h *scrubHandler) WithGroup(name string) slog.Handler {
	return &scrubHandler{next: h.next.WithGroup(name), bound: h.bound}
}

type defaultHolder struct{ l Logger }

var std atomic.Pointer[defaultHolder]

func init() {
	l, _ := New(DefaultConfig())
	SetDefault(l)
}

// SetDefault replaces the process-wide logger returned by Default.
func SetDefault(l Logger) {
	if l != nil {
		std.Store(&defaultHolder{l: l})
	}
}

// Default returns the process-wide logger.
func Default() Logger {
	return std.Load().l
}
