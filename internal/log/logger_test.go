package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerEmitsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		Component: "chat",
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	l.Info("pipeline ready")
	if line := buf.String(); !strings.Contains(line, "component=chat") {
		t.Fatalf("missing component attribute: %q", line)
	}
}

func TestWithComponentReplacesNotStacks(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		Component: "app",
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	l.WithComponent("worker").Warn("queue lagging")
	line := buf.String()
	if !strings.Contains(line, "component=worker") {
		t.Fatalf("missing derived component: %q", line)
	}
	if strings.Contains(line, "component=app") {
		t.Fatalf("parent component leaked into derived logger: %q", line)
	}
}
