package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/atlasgate/internal/config"
	"github.com/danmuck/atlasgate/internal/testutil/testlog"
)

func TestRunWritesTemplateAndCertificate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "atlasgate.toml")

	if err := run([]string{"-output", out, "-cert-dir", dir}); err != nil {
		t.Fatalf("run: %v", err)
	}
	cfg, err := config.Load(out)
	if err != nil {
		t.Fatalf("load generated config: %v", err)
	}
	if cfg.Transport.TLS.CertFile != filepath.Join(dir, "server.crt") {
		t.Fatalf("template cert path should resolve next to config: %q", cfg.Transport.TLS.CertFile)
	}
	if _, err := cfg.Transport.ServerTLSConfig(); err != nil {
		t.Fatalf("generated certificate should load: %v", err)
	}

	if err := run([]string{"-validate", "-input", out}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := run([]string{"-output", out, "-cert-dir", dir}); err == nil {
		t.Fatalf("expected refusal to overwrite without -force")
	}
	if err := run([]string{"-output", out, "-cert-dir", dir, "-force"}); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestValidateRejectsMissingTLS(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "atlasgate.toml")
	if err := os.WriteFile(path, []byte("port = 18000\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := run([]string{"-validate", "-input", path}); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" localhost, ,127.0.0.1 ")
	if len(got) != 2 || got[0] != "localhost" || got[1] != "127.0.0.1" {
		t.Fatalf("unexpected hosts: %q", got)
	}
}
