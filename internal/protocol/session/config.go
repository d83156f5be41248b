package session

import "time"

// Config defines per-connection transport limits.
type Config struct {
	HandshakeTimeout time.Duration
	// IdleTimeout bounds the wait for the next command line. Zero disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	MaxLineBytes int
	TLS          TLSConfig
}

// DefaultConfig returns gateway transport defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		IdleTimeout:      0,
		WriteTimeout:     15 * time.Second,
		MaxLineBytes:     1 << 20,
	}
}

// WithDefaults fills zero-valued limits from DefaultConfig. IdleTimeout is kept
// as given since zero is meaningful.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	return c
}
