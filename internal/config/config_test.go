package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/atlasgate/internal/direction"
	"github.com/danmuck/atlasgate/internal/testutil/testlog"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "atlasgate.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, t.TempDir(), "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 18000 || cfg.Bind != "0.0.0.0" || cfg.Environment != "General" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Direction != direction.JE || cfg.AutoPolicy != direction.PolicyStrict {
		t.Fatalf("unexpected direction defaults: %v %v", cfg.Direction, cfg.AutoPolicy)
	}
	if cfg.Transport.HandshakeTimeout != 10*time.Second || cfg.Transport.MaxLineBytes != 1<<20 {
		t.Fatalf("unexpected transport defaults: %+v", cfg.Transport)
	}
	if cfg.ListenAddr() != "0.0.0.0:18000" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr())
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `
port = 19000
bind = "127.0.0.1"
environment = "Business"
direction = "auto"
auto_policy = "evidence"
tokens = [" alpha ", "", "beta"]
tls_cert_file = "certs/server.crt"
tls_key_file = "/etc/atlasgate/server.key"
admin_listen_addr = "127.0.0.1:19001"
health_listen_addr = "127.0.0.1:19080"
handshake_timeout = "3s"
idle_timeout = "1m"
max_line_bytes = 4096
watch = false

[engine]
command = "atlas-cli"
args = ["{direction}"]
env_file = "transenv.ini"
encoding = "euc-jp"
timeout = "5s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 19000 || cfg.Bind != "127.0.0.1" || cfg.Environment != "Business" {
		t.Fatalf("unexpected listener fields: %+v", cfg)
	}
	if cfg.Direction != direction.Auto || cfg.AutoPolicy != direction.PolicyEvidence {
		t.Fatalf("unexpected direction fields: %v %v", cfg.Direction, cfg.AutoPolicy)
	}
	if len(cfg.Tokens) != 2 || cfg.Tokens[0] != "alpha" || cfg.Tokens[1] != "beta" {
		t.Fatalf("unexpected tokens: %q", cfg.Tokens)
	}
	if cfg.Transport.TLS.CertFile != filepath.Join(dir, "certs", "server.crt") {
		t.Fatalf("unexpected cert path: %q", cfg.Transport.TLS.CertFile)
	}
	if cfg.Transport.TLS.KeyFile != "/etc/atlasgate/server.key" {
		t.Fatalf("unexpected key path: %q", cfg.Transport.TLS.KeyFile)
	}
	if cfg.Transport.HandshakeTimeout != 3*time.Second || cfg.Transport.IdleTimeout != time.Minute {
		t.Fatalf("unexpected timeouts: %+v", cfg.Transport)
	}
	if cfg.Transport.MaxLineBytes != 4096 || cfg.Watch {
		t.Fatalf("unexpected limits: %+v watch=%v", cfg.Transport, cfg.Watch)
	}
	if cfg.Engine.Command != "atlas-cli" || cfg.Engine.Encoding != "euc-jp" || cfg.Engine.Timeout != 5*time.Second {
		t.Fatalf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.EnvFile != filepath.Join(dir, "transenv.ini") {
		t.Fatalf("unexpected env file: %q", cfg.Engine.EnvFile)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"policy":   `auto_policy = "sometimes"`,
		"duration": `handshake_timeout = "soon"`,
		"port":     `port = 70000`,
		"encoding": "[engine]\nencoding = \"latin1\"",
		"syntax":   `port = `,
	}
	for name, body := range cases {
		path := writeConfig(t, t.TempDir(), body)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	path := writeConfig(t, t.TempDir(), `port = -1`)
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadRejectsNonLoopbackAdminAddr(t *testing.T) {
	testlog.Start(t)
	for _, addr := range []string{"0.0.0.0:18001", "[::]:18001", "192.0.2.10:18001", "127.0.0.1"} {
		path := writeConfig(t, t.TempDir(), fmt.Sprintf("admin_listen_addr = %q", addr))
		if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", addr, err)
		}
	}
	for _, addr := range []string{"127.0.0.1:18001", "[::1]:18001", "localhost:18001"} {
		path := writeConfig(t, t.TempDir(), fmt.Sprintf("admin_listen_addr = %q", addr))
		if _, err := Load(path); err != nil {
			t.Fatalf("%s: load: %v", addr, err)
		}
	}
}

func TestNormalizeAdminAddr(t *testing.T) {
	tests := map[string]string{
		"localhost:18001":   "127.0.0.1:18001",
		":18001":            "127.0.0.1:18001",
		" 127.0.0.2:18001 ": "127.0.0.2:18001",
		"[::1]:18001":       "[::1]:18001",
	}
	for raw, want := range tests {
		got, err := NormalizeAdminAddr(raw)
		if err != nil {
			t.Fatalf("normalize %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("normalize %q = %q, want %q", raw, got, want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "atlasgate.toml")

	cfg := Default()
	cfg.Port = 18500
	cfg.Direction = direction.EJ
	cfg.Tokens = []string{"alpha", "beta"}
	cfg.Transport.TLS.CertFile = filepath.Join(dir, "server.crt")
	cfg.Transport.TLS.KeyFile = filepath.Join(dir, "server.key")
	cfg.Engine.Command = "atlas-cli"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if got.Port != 18500 || got.Direction != direction.EJ || len(got.Tokens) != 2 {
		t.Fatalf("unexpected reloaded config: %+v", got)
	}
	if got.Transport.TLS.CertFile != cfg.Transport.TLS.CertFile || got.Engine.Command != "atlas-cli" {
		t.Fatalf("unexpected reloaded tls/engine: %+v %+v", got.Transport.TLS, got.Engine)
	}
	if got.Transport.WriteTimeout != cfg.Transport.WriteTimeout {
		t.Fatalf("unexpected write timeout: %v", got.Transport.WriteTimeout)
	}
}

func TestTemplateLoads(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "atlasgate.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected existing file error")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.AdminListenAddr != "127.0.0.1:18001" || len(cfg.Engine.Args) != 4 {
		t.Fatalf("unexpected template config: %+v", cfg)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, t.TempDir(), `tokens = ["alpha"]`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg Config) { got <- cfg })
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			if len(cfg.Tokens) == 2 {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("watch returned error: %v", err)
				}
				return
			}
		case <-tick.C:
			// rewrite until the watcher is armed and observes the change
			if err := os.WriteFile(path, []byte(`tokens = ["alpha", "beta"]`), 0o600); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-deadline:
			t.Fatalf("watch did not deliver reloaded config")
		}
	}
}
