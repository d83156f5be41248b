package session

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTLSCertRequired = errors.New("session: tls certificate required")
	ErrTLSKeyRequired  = errors.New("session: tls private key required")
	ErrTLSKeyPair      = errors.New("session: invalid tls key pair")
)

// TLSConfig carries the server identity either as file paths or as inline PEM.
// Inline PEM wins when both are set.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CertPEM  string
	KeyPEM   string
}

func (t TLSConfig) hasCert() bool {
	return strings.TrimSpace(t.CertPEM) != "" || strings.TrimSpace(t.CertFile) != ""
}

func (t TLSConfig) hasKey() bool {
	return strings.TrimSpace(t.KeyPEM) != "" || strings.TrimSpace(t.KeyFile) != ""
}

// ValidateServerTransport checks that a certificate and private key are configured.
func (c Config) ValidateServerTransport() error {
	if !c.TLS.hasCert() {
		return ErrTLSCertRequired
	}
	if !c.TLS.hasKey() {
		return ErrTLSKeyRequired
	}
	return nil
}

// Certificate loads the configured key pair.
func (t TLSConfig) Certificate() (tls.Certificate, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case strings.TrimSpace(t.CertPEM) != "" && strings.TrimSpace(t.KeyPEM) != "":
		cert, err = tls.X509KeyPair([]byte(t.CertPEM), []byte(t.KeyPEM))
	default:
		cert, err = tls.LoadX509KeyPair(strings.TrimSpace(t.CertFile), strings.TrimSpace(t.KeyFile))
	}
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrTLSKeyPair, err)
	}
	return cert, nil
}

// ServerTLSConfig builds the listener tls.Config. Client certificates are not
// requested; clients authenticate with INIT tokens.
func (c Config) ServerTLSConfig() (*tls.Config, error) {
	if err := c.ValidateServerTransport(); err != nil {
		return nil, err
	}
	cert, err := c.TLS.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}, nil
}
