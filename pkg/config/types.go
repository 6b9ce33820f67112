// Package config loads the vhostd server configuration from YAML or JSON
// files and the environment.
//
// A minimal file serving a static site on two ports:
//
//	ports: "8080,8443s"
//	tls:
//	  certFile: server.pem
//	default:
//	  root: ./public
//
// With virtual hosting, hosts are matched by exact host name:
//
//	virtualHosts: true
//	hosts:
//	  api.example.com:
//	    routes:
//	      - pattern: /health
//	        cases:
//	          - body: ok
//	    errors:
//	      404:
//	        contentType: application/json
//	        body: '{"error":"not found"}'
package config

import (
	"fmt"
	"path/filepath"

	"github.com/getmockd/vhostd/pkg/provider/canned"
)

// DefaultPorts is the port list used when none is configured.
const DefaultPorts = "8080"

// ServerConfig is the complete server configuration.
type ServerConfig struct {
	// Ports is a comma-separated port list; "s" marks a TLS port ("8443s").
	Ports string `json:"ports" yaml:"ports"`

	// Host is the bind address; empty binds all interfaces.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	TLS TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`

	// VirtualHosts resolves providers by request host name.
	VirtualHosts bool `json:"virtualHosts,omitempty" yaml:"virtualHosts,omitempty"`

	// MaxConnections caps concurrent connections per port (0 = unlimited).
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`

	// MaxBodyBytes caps request bodies (0 = listener default).
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty" yaml:"maxBodyBytes,omitempty"`

	RateLimit RateLimitConfig `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`

	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Default answers requests when no host-specific provider applies.
	Default *HostConfig `json:"default,omitempty" yaml:"default,omitempty"`

	// Hosts maps exact host names to providers.
	Hosts map[string]*HostConfig `json:"hosts,omitempty" yaml:"hosts,omitempty"`

	// baseDir resolves relative paths; set to the config file's directory.
	baseDir string
}

// TLSConfig selects the certificate for TLS ports.
type TLSConfig struct {
	// CertFile is a PEM file holding both certificate and private key.
	CertFile string `json:"certFile,omitempty" yaml:"certFile,omitempty"`

	// AutoGenerate creates a self-signed bundle at CertFile when it is missing.
	AutoGenerate bool `json:"autoGenerate,omitempty" yaml:"autoGenerate,omitempty"`
}

// RateLimitConfig throttles each client address with a token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate (0 = unlimited).
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty" yaml:"requestsPerSecond,omitempty"`
	// Burst is the bucket size (0 = twice the rate).
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// LogConfig configures the operational logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// File additionally receives every record as JSON.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// HostConfig describes one data provider. With Root set, files below it are
// served and Routes take precedence over them; otherwise only Routes answer.
type HostConfig struct {
	Root   string              `json:"root,omitempty" yaml:"root,omitempty"`
	Index  []string            `json:"index,omitempty" yaml:"index,omitempty"`
	Deny   []string            `json:"deny,omitempty" yaml:"deny,omitempty"`
	Routes []canned.Route      `json:"routes,omitempty" yaml:"routes,omitempty"`
	Errors map[int]canned.Page `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Default returns a configuration serving nothing on DefaultPorts.
func Default() *ServerConfig {
	return &ServerConfig{
		Ports: DefaultPorts,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// BaseDir returns the directory relative paths are resolved against.
func (c *ServerConfig) BaseDir() string {
	if c.baseDir == "" {
		return "."
	}
	return c.baseDir
}

// SetBaseDir sets the directory relative paths are resolved against.
func (c *ServerConfig) SetBaseDir(dir string) {
	c.baseDir = dir
}

// Resolve makes path absolute relative to BaseDir. Empty and absolute paths
// are returned unchanged.
func (c *ServerConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir(), path)
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}
