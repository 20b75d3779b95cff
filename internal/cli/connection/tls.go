package connection

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertsFound is returned when a CA file holds no certificates.
var ErrNoCertsFound = errors.New("connection: no certificates found in CA file")

// tlsConfigWithCA trusts the system roots plus every certificate in path.
func tlsConfigWithCA(path string) (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("connection: read CA file %s: %w", path, err)
	}
	if err := addCertPEM(pool, data); err != nil {
		return nil, fmt.Errorf("connection: %s: %w", path, err)
	}

	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

func addCertPEM(pool *x509.CertPool, pemData []byte) error {
	var added int
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}
	if added == 0 {
		return ErrNoCertsFound
	}
	return nil
}
