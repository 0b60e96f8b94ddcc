package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestInitSetsLevel(t *testing.T) {
	Init("debug", "json")

	if !L.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled")
	}
	Info("test info message", "key", "value")
}

func TestContextRoundTrip(t *testing.T) {
	Init("info", "text")

	custom := L.With("request_id", "12345")
	ctx := WithContext(context.Background(), custom)
	if FromContext(ctx) != custom {
		t.Fatal("expected the context-scoped logger back")
	}
	if FromContext(context.Background()) != L {
		t.Fatal("expected the global logger for a bare context")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
