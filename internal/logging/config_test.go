package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{raw: "", want: zerolog.InfoLevel, wantOK: false},
		{raw: "DEBUG", want: zerolog.DebugLevel, wantOK: true},
		{raw: " warning ", want: zerolog.WarnLevel, wantOK: true},
		{raw: "off", want: zerolog.Disabled, wantOK: true},
		{raw: "loud", want: zerolog.InfoLevel, wantOK: false},
	}
	for _, tc := range tests {
		got, ok := parseLevel(tc.raw)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("parseLevel(%q) = %v,%v want %v,%v", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogJSON, "true")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("expected timestamp disabled")
	}
	if !cfg.JSON {
		t.Fatalf("expected json output")
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, JSON: true, Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Str("remote", "127.0.0.1:1").Msg("server.conn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, `"message":"server.conn"`) || !strings.Contains(out, `"app":"atlasgate"`) {
		t.Fatalf("unexpected log output: %q", out)
	}
}
