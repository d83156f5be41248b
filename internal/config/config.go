// Package config loads, validates and persists the gateway's TOML settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/atlasgate/internal/direction"
	"github.com/danmuck/atlasgate/internal/engine/command"
	"github.com/danmuck/atlasgate/internal/protocol/session"
)

const (
	DefaultPort        = 18000
	DefaultBind        = "0.0.0.0"
	DefaultEnvironment = "General"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the resolved gateway configuration.
type Config struct {
	Port             int
	Bind             string
	Environment      string
	Direction        direction.Direction
	AutoPolicy       direction.Policy
	Tokens           []string
	Transport        session.Config
	AdminListenAddr  string
	HealthListenAddr string
	CorsOrigins      []string
	Watch            bool
	Engine           command.Config
}

type fileConfig struct {
	Port             int        `toml:"port"`
	Bind             string     `toml:"bind"`
	Environment      string     `toml:"environment"`
	Direction        string     `toml:"direction"`
	AutoPolicy       string     `toml:"auto_policy"`
	Tokens           []string   `toml:"tokens"`
	TLSCertFile      string     `toml:"tls_cert_file,omitempty"`
	TLSKeyFile       string     `toml:"tls_key_file,omitempty"`
	TLSCertPEM       string     `toml:"tls_cert_pem,omitempty"`
	TLSKeyPEM        string     `toml:"tls_key_pem,omitempty"`
	AdminListenAddr  string     `toml:"admin_listen_addr"`
	HealthListenAddr string     `toml:"health_listen_addr"`
	CorsOrigins      []string   `toml:"cors_origins"`
	HandshakeTimeout string     `toml:"handshake_timeout"`
	IdleTimeout      string     `toml:"idle_timeout"`
	WriteTimeout     string     `toml:"write_timeout"`
	MaxLineBytes     int        `toml:"max_line_bytes"`
	Watch            bool       `toml:"watch"`
	Engine           fileEngine `toml:"engine"`
}

type fileEngine struct {
	Command  string   `toml:"command"`
	Args     []string `toml:"args"`
	EnvFile  string   `toml:"env_file"`
	Encoding string   `toml:"encoding"`
	Timeout  string   `toml:"timeout"`
}

func Default() Config {
	return Config{
		Port:        DefaultPort,
		Bind:        DefaultBind,
		Environment: DefaultEnvironment,
		Direction:   direction.JE,
		AutoPolicy:  direction.PolicyStrict,
		Tokens:      []string{},
		Transport:   session.DefaultConfig(),
		CorsOrigins: []string{},
		Watch:       true,
		Engine: command.Config{
			Encoding: "shift_jis",
			Timeout:  command.DefaultTimeout,
		},
	}
}

// ListenAddr is bind:port.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Load reads path and overlays every key it defines on Default(). Relative
// TLS and env file paths resolve against the config file's directory.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	base := filepath.Dir(path)

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("bind") {
		cfg.Bind = strings.TrimSpace(raw.Bind)
	}
	if meta.IsDefined("environment") {
		if env := strings.TrimSpace(raw.Environment); env != "" {
			cfg.Environment = env
		}
	}
	if meta.IsDefined("direction") {
		cfg.Direction = direction.Parse(raw.Direction)
	}
	if meta.IsDefined("auto_policy") {
		p, err := direction.ParsePolicy(raw.AutoPolicy)
		if err != nil {
			return Config{}, fmt.Errorf("parse auto_policy: %w", err)
		}
		cfg.AutoPolicy = p
	}
	if meta.IsDefined("tokens") {
		cfg.Tokens = normalizeList(raw.Tokens)
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.Transport.TLS.CertFile = resolvePath(base, raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.Transport.TLS.KeyFile = resolvePath(base, raw.TLSKeyFile)
	}
	if meta.IsDefined("tls_cert_pem") {
		cfg.Transport.TLS.CertPEM = strings.TrimSpace(raw.TLSCertPEM)
	}
	if meta.IsDefined("tls_key_pem") {
		cfg.Transport.TLS.KeyPEM = strings.TrimSpace(raw.TLSKeyPEM)
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("health_listen_addr") {
		cfg.HealthListenAddr = strings.TrimSpace(raw.HealthListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("handshake_timeout") {
		if cfg.Transport.HandshakeTimeout, err = parseDuration("handshake_timeout", raw.HandshakeTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("idle_timeout") {
		if cfg.Transport.IdleTimeout, err = parseDuration("idle_timeout", raw.IdleTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.Transport.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("max_line_bytes") {
		cfg.Transport.MaxLineBytes = raw.MaxLineBytes
	}
	if meta.IsDefined("watch") {
		cfg.Watch = raw.Watch
	}
	if meta.IsDefined("engine", "command") {
		cfg.Engine.Command = strings.TrimSpace(raw.Engine.Command)
	}
	if meta.IsDefined("engine", "args") {
		cfg.Engine.Args = raw.Engine.Args
	}
	if meta.IsDefined("engine", "env_file") {
		cfg.Engine.EnvFile = resolvePath(base, raw.Engine.EnvFile)
	}
	if meta.IsDefined("engine", "encoding") {
		cfg.Engine.Encoding = strings.TrimSpace(raw.Engine.Encoding)
	}
	if meta.IsDefined("engine", "timeout") {
		if cfg.Engine.Timeout, err = parseDuration("engine.timeout", raw.Engine.Timeout); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks fields that cannot be defaulted at runtime. TLS material is
// validated when the server starts.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if strings.TrimSpace(c.Environment) == "" {
		return fmt.Errorf("%w: environment is required", ErrInvalidConfig)
	}
	if c.Transport.MaxLineBytes < 0 {
		return fmt.Errorf("%w: max_line_bytes must not be negative", ErrInvalidConfig)
	}
	if _, err := command.CodecFor(c.Engine.Encoding); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.AdminListenAddr != "" {
		if _, err := NormalizeAdminAddr(c.AdminListenAddr); err != nil {
			return err
		}
	}
	return nil
}

// Save writes cfg to path in the same shape Load reads. The file is replaced
// atomically.
func Save(path string, cfg Config) error {
	raw := toFile(cfg)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".atlasgate-*.toml")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: encode: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func toFile(cfg Config) fileConfig {
	return fileConfig{
		Port:             cfg.Port,
		Bind:             cfg.Bind,
		Environment:      cfg.Environment,
		Direction:        cfg.Direction.String(),
		AutoPolicy:       cfg.AutoPolicy.String(),
		Tokens:           nonNil(cfg.Tokens),
		TLSCertFile:      cfg.Transport.TLS.CertFile,
		TLSKeyFile:       cfg.Transport.TLS.KeyFile,
		TLSCertPEM:       cfg.Transport.TLS.CertPEM,
		TLSKeyPEM:        cfg.Transport.TLS.KeyPEM,
		AdminListenAddr:  cfg.AdminListenAddr,
		HealthListenAddr: cfg.HealthListenAddr,
		CorsOrigins:      nonNil(cfg.CorsOrigins),
		HandshakeTimeout: cfg.Transport.HandshakeTimeout.String(),
		IdleTimeout:      cfg.Transport.IdleTimeout.String(),
		WriteTimeout:     cfg.Transport.WriteTimeout.String(),
		MaxLineBytes:     cfg.Transport.MaxLineBytes,
		Watch:            cfg.Watch,
		Engine: fileEngine{
			Command:  cfg.Engine.Command,
			Args:     nonNil(cfg.Engine.Args),
			EnvFile:  cfg.Engine.EnvFile,
			Encoding: cfg.Engine.Encoding,
			Timeout:  cfg.Engine.Timeout.String(),
		},
	}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}

func resolvePath(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
