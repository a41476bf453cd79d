package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TemporalTLS builds the mTLS config for the Temporal client connection,
// as used by Temporal Cloud namespaces. Without a configured cert/key pair
// it returns nil, nil and the dial stays plaintext.
func (c *Config) TemporalTLS() (*tls.Config, error) {
	if c.TemporalTLSCert == "" && c.TemporalTLSKey == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.TemporalTLSCert, c.TemporalTLSKey)
	if err != nil {
		return nil, fmt.Errorf("load temporal client cert: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if c.TemporalTLSServerName != "" {
		cfg.ServerName = c.TemporalTLSServerName
	}
	if c.TemporalTLSCACert == "" {
		return cfg, nil
	}

	caPEM, err := os.ReadFile(c.TemporalTLSCACert)
	if err != nil {
		return nil, fmt.Errorf("read temporal CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("parse temporal CA cert %s: no PEM certificates found", c.TemporalTLSCACert)
	}
	cfg.RootCAs = pool

	return cfg, nil
}
