// Package tls generates self-signed certificates for TLS ports.
//
// The listener reads certificate and key from a single PEM file, so the
// helpers here produce such bundles.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CertificateConfig contains options for certificate generation.
type CertificateConfig struct {
	// Organization name for the certificate
	Organization string
	// Common name (CN) for the certificate
	CommonName string
	// Additional DNS names for the certificate
	DNSNames []string
	// Additional IP addresses for the certificate
	IPAddresses []net.IP
	// Validity duration
	ValidFor time.Duration
}

// DefaultCertificateConfig returns a configuration suitable for local development.
func DefaultCertificateConfig() *CertificateConfig {
	return &CertificateConfig{
		Organization: "vhostd",
		CommonName:   "localhost",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		ValidFor:     365 * 24 * time.Hour,
	}
}

// Generated holds a PEM-encoded certificate and private key.
type Generated struct {
	Certificate *x509.Certificate
	CertPEM     []byte
	KeyPEM      []byte
}

// Bundle returns certificate and key concatenated into one PEM document.
func (g *Generated) Bundle() []byte {
	out := make([]byte, 0, len(g.CertPEM)+len(g.KeyPEM))
	out = append(out, g.CertPEM...)
	return append(out, g.KeyPEM...)
}

// GenerateSelfSigned generates a self-signed ECDSA P-256 certificate.
func GenerateSelfSigned(cfg *CertificateConfig) (*Generated, error) {
	if cfg == nil {
		cfg = DefaultCertificateConfig()
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(cfg.ValidFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              cfg.DNSNames,
		IPAddresses:           cfg.IPAddresses,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &Generated{
		Certificate: cert,
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// WriteBundle generates a certificate and writes the bundle to path with
// owner-only permissions.
func WriteBundle(cfg *CertificateConfig, path string) (*Generated, error) {
	gen, err := GenerateSelfSigned(cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}
	if err := os.WriteFile(path, gen.Bundle(), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write certificate bundle: %w", err)
	}
	return gen, nil
}

// EnsureBundle returns the bundle at path, generating one if it is missing.
func EnsureBundle(cfg *CertificateConfig, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	_, err := WriteBundle(cfg, path)
	return err
}
