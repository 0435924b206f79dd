package database

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoCACert means CA_CERT was empty outside development mode.
	ErrNoCACert = errors.New("database: CA_CERT is not set")
	// ErrInvalidCACert means CA_CERT did not hold a PEM encoded certificate.
	ErrInvalidCACert = errors.New("database: CA_CERT is not a valid PEM certificate")
)

// WriteCACert checks that certPEM holds at least one parseable certificate
// and writes it to path, creating the parent directory if needed.
// Nothing is written when the check fails.
func WriteCACert(path, certPEM string) error {
	if strings.TrimSpace(certPEM) == "" {
		return ErrNoCACert
	}
	data := []byte(certPEM)
	if err := checkPEM(data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("database: creating certificate directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("database: writing certificate %s: %w", path, err)
	}
	return nil
}

func checkPEM(data []byte) error {
	found := false
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCACert, err)
		}
		found = true
	}
	if !found {
		return ErrInvalidCACert
	}
	return nil
}

// TLSConfigFromFile builds a client TLS config that trusts only the
// certificates in the PEM file at path.
func TLSConfigFromFile(path string) (*tls.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("database: reading certificate %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("database: no certificates in %s", path)
	}
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
