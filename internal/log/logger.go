// Package log provides structured logging on top of log/slog. Every
// Logger carries a component attribute so log lines from the chat
// pipeline, the game engine and the transports stay distinguishable.
package log

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger with a component attribute baked in at
// construction. The embedded methods (Info, Warn, Error and their
// Context variants) all emit the component.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

// Config holds logger configuration. A nil Handler means a text
// handler on stdout at Level.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: "app",
	}
}

// New creates a logger for the given component.
func New(cfg Config) *Logger {
	handler := cfg.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.Level,
		})
	}
	base := slog.New(handler)
	return &Logger{
		Logger:    base.With("component", cfg.Component),
		base:      base,
		component: cfg.Component,
	}
}

// WithComponent derives a logger for another component over the same
// handler. The component attribute is replaced, not stacked.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.base.With("component", component),
		base:      l.base,
		component: component,
	}
}

// SetDefault routes plain slog calls through this logger's handler.
func SetDefault(l *Logger) {
	slog.SetDefault(l.base)
}
