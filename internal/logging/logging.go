package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Key constants for structured log fields.
const (
	KeyComponent  = "component"
	KeyView       = "view"
	KeyBackend    = "backend"
	KeyStep       = "step"
	KeyPath       = "path"
	KeySelector   = "selector"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
)

type contextKey struct{}

// switchableHandler lets package-level loggers created before Init()
// pick up the configured handler once Init runs.
type switchableHandler struct {
	current *atomic.Pointer[handlerBox]
	attrs   []slog.Attr
	groups  []string
}

// handlerBox keeps the stored type fixed while the handler type changes
// between text and json.
type handlerBox struct {
	h slog.Handler
}

func newSwitchableHandler(h slog.Handler) *switchableHandler {
	current := &atomic.Pointer[handlerBox]{}
	current.Store(&handlerBox{h: h})
	return &switchableHandler{current: current}
}

func (h *switchableHandler) set(handler slog.Handler) {
	h.current.Store(&handlerBox{h: handler})
}

func (h *switchableHandler) resolve() slog.Handler {
	handler := h.current.Load().h
	for _, group := range h.groups {
		handler = handler.WithGroup(group)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h *switchableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *switchableHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.resolve().Handle(ctx, record)
}

func (h *switchableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &switchableHandler{
		current: h.current,
		attrs:   merged,
		groups:  append([]string(nil), h.groups...),
	}
}

func (h *switchableHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)

	return &switchableHandler{
		current: h.current,
		attrs:   append([]slog.Attr(nil), h.attrs...),
		groups:  groups,
	}
}

var (
	rootHandler   = newSwitchableHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	defaultLogger = slog.New(rootHandler)
)

func init() {
	slog.SetDefault(defaultLogger)
}

// Init configures the global logger. Call once after config is loaded.
// format: "json" or "text" (default "text")
// level: "debug", "info", "warn", "error" (default "info")
// output: writer to log to (nil = os.Stderr)
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	rootHandler.set(handler)
}

// Setup initializes logging from config values. When file.Path is set,
// output goes to a size-rotated file as well as stderr. The returned closer
// must be closed on shutdown; it is a no-op when no file is used.
func Setup(format, level string, file FileOptions) (io.Closer, error) {
	if file.Path == "" {
		Init(format, level, os.Stderr)
		return nopCloser{}, nil
	}

	rw, err := NewRotatingWriter(file)
	if err != nil {
		Init(format, level, os.Stderr)
		return nopCloser{}, err
	}
	Init(format, level, io.MultiWriter(os.Stderr, rw))
	return rw, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// WithView returns a child logger carrying the capture view.
func WithView(logger *slog.Logger, view string) *slog.Logger {
	return logger.With(slog.String(KeyView, view))
}

// Err is shorthand for an error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// NewContext returns a new context carrying the given logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from context, falling back to the default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
