package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Environment variables that override file settings.
const (
	EnvPorts          = "VHOSTD_PORTS"
	EnvTLSCert        = "VHOSTD_TLS_CERT"
	EnvVirtualHosts   = "VHOSTD_VIRTUAL_HOSTS"
	EnvLogLevel       = "VHOSTD_LOG_LEVEL"
	EnvLogFormat      = "VHOSTD_LOG_FORMAT"
	EnvMaxConnections = "VHOSTD_MAX_CONNECTIONS"
	EnvMaxBodyBytes   = "VHOSTD_MAX_BODY_BYTES"
	EnvRateLimit      = "VHOSTD_RATE_LIMIT"
)

var envNames = []string{
	EnvPorts, EnvTLSCert, EnvVirtualHosts, EnvLogLevel, EnvLogFormat,
	EnvMaxConnections, EnvMaxBodyBytes, EnvRateLimit,
}

// ErrInvalidEnv is returned for an environment override that cannot be parsed.
var ErrInvalidEnv = errors.New("invalid environment override")

// envOverrides mirrors the overridable settings; nil means unset.
type envOverrides struct {
	Ports          *string  `env:"VHOSTD_PORTS"`
	TLSCert        *string  `env:"VHOSTD_TLS_CERT"`
	VirtualHosts   *bool    `env:"VHOSTD_VIRTUAL_HOSTS"`
	LogLevel       *string  `env:"VHOSTD_LOG_LEVEL"`
	LogFormat      *string  `env:"VHOSTD_LOG_FORMAT"`
	MaxConnections *int     `env:"VHOSTD_MAX_CONNECTIONS"`
	MaxBodyBytes   *int64   `env:"VHOSTD_MAX_BODY_BYTES"`
	RateLimit      *float64 `env:"VHOSTD_RATE_LIMIT"`
}

// ApplyEnv overrides cfg from the process environment.
func (c *ServerConfig) ApplyEnv() error {
	return c.ApplyEnvFrom(os.Getenv)
}

// ApplyEnvFrom overrides cfg using getenv. Unset or empty variables leave
// the current value. When any override is invalid nothing is applied.
func (c *ServerConfig) ApplyEnvFrom(getenv func(string) string) error {
	vars := make(map[string]string, len(envNames))
	for _, name := range envNames {
		if v := getenv(name); v != "" {
			vars[name] = v
		}
	}
	if len(vars) == 0 {
		return nil
	}

	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnv, err)
	}

	var errs []error
	if o.MaxConnections != nil && *o.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("%w: %s=%q must not be negative", ErrInvalidEnv, EnvMaxConnections, vars[EnvMaxConnections]))
	}
	if o.MaxBodyBytes != nil && *o.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("%w: %s=%q must not be negative", ErrInvalidEnv, EnvMaxBodyBytes, vars[EnvMaxBodyBytes]))
	}
	if o.RateLimit != nil && *o.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: %s=%q must not be negative", ErrInvalidEnv, EnvRateLimit, vars[EnvRateLimit]))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	set(&c.Ports, o.Ports)
	set(&c.TLS.CertFile, o.TLSCert)
	set(&c.VirtualHosts, o.VirtualHosts)
	set(&c.Log.Level, o.LogLevel)
	set(&c.Log.Format, o.LogFormat)
	set(&c.MaxConnections, o.MaxConnections)
	set(&c.MaxBodyBytes, o.MaxBodyBytes)
	set(&c.RateLimit.RequestsPerSecond, o.RateLimit)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
