package logutil

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	logger.Debug("hello", KeyKind, KindUpstream)
	if !strings.Contains(buf.String(), `"kind":"upstream_unavailable"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestNewLoggerRejectsUnknown(t *testing.T) {
	if _, err := newLogger(&bytes.Buffer{}, "loud", ""); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := newLogger(&bytes.Buffer{}, "", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
