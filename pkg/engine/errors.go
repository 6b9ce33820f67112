package engine

import "errors"

var (
	// ErrCertificateRequired is reported when a TLS port is configured
	// without a certificate path.
	ErrCertificateRequired = errors.New("TLS port configured without a certificate")

	// ErrInvalidCertificate is reported when the certificate path cannot be read.
	ErrInvalidCertificate = errors.New("invalid TLS certificate path")

	// ErrRestartNotAllowed is reported when Restart follows a failed start.
	// A new configuration has to be passed to Start instead.
	ErrRestartNotAllowed = errors.New("restart after failed start requires a new configuration")
)
