// Package tlsutil builds a *tls.Config from a CA/cert/key file triple.
// Shared by the Docker client (mTLS to a socket proxy) and the etcd client
// (mTLS to the registry), so the certificate-loading logic lives in one
// place instead of being duplicated per transport.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config holds paths to TLS certificate material.
type Config struct {
	CACert     string // path to CA certificate file
	ClientCert string // path to client certificate file
	ClientKey  string // path to client private key file
}

// Enabled reports whether all three paths are populated.
func (c *Config) Enabled() bool {
	return c != nil && c.CACert != "" && c.ClientCert != "" && c.ClientKey != ""
}

// Load reads the certificate files and returns a configured tls.Config.
// ServerName is left unset -- callers fill it in from the parsed endpoint.
func (c *Config) Load() (*tls.Config, error) {
	caCert, err := os.ReadFile(c.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA cert %s: %w", c.CACert, err)
	}

	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA cert %s", c.CACert)
	}

	clientCert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load client cert/key: %w", err)
	}

	return &tls.Config{
		RootCAs:      certPool,
		Certificates: []tls.Certificate{clientCert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
