package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// LoadTLSConfig builds a *tls.Config from a TLS setting, following the
// same X509KeyPair/CA-pool loading shape SPLAI's tracing.go uses to build
// the OTLP exporter's client credentials. Returns nil, nil when TLS is
// disabled, so a listener setup site can pass the result straight to
// http.Server.TLSConfig without a separate enabled check.
func LoadTLSConfig(t TLS) (*tls.Config, error) {
	if !t.Enabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(t.Cert, t.Key)
	if err != nil {
		return nil, fmt.Errorf("config: load TLS keypair: %w", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	if t.CA != "" {
		caBytes, err := os.ReadFile(t.CA)
		if err != nil {
			return nil, fmt.Errorf("config: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("config: no valid certificates found in %s", t.CA)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}
