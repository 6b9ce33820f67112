package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/getmockd/vhostd/internal/ports"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks the configuration and returns every problem found.
// Route patterns and conditions are compiled later, when providers are built.
func (c *ServerConfig) Validate() error {
	var errs []error

	specs, err := ports.Parse(c.Ports)
	if err != nil {
		errs = append(errs, &ValidationError{Field: "ports", Message: err.Error()})
	} else if ports.HasTLS(specs) && c.TLS.CertFile == "" {
		errs = append(errs, &ValidationError{
			Field:   "tls.certFile",
			Message: "required when a TLS port is configured",
		})
	}

	if err := c.validateCertFile(); err != nil {
		errs = append(errs, err)
	}

	if c.MaxConnections < 0 {
		errs = append(errs, &ValidationError{Field: "maxConnections", Message: "must not be negative"})
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, &ValidationError{Field: "maxBodyBytes", Message: "must not be negative"})
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, &ValidationError{Field: "rateLimit.requestsPerSecond", Message: "must not be negative"})
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, &ValidationError{Field: "rateLimit.burst", Message: "must not be negative"})
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, &ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level %q", c.Log.Level),
		})
	}
	if c.Log.Format != "" && !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, &ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("unknown format %q (use text or json)", c.Log.Format),
		})
	}

	if c.Default != nil {
		errs = append(errs, c.validateHost("default", c.Default)...)
	}
	for host, hc := range c.Hosts {
		field := "hosts." + host
		if host == "" {
			errs = append(errs, &ValidationError{Field: "hosts", Message: "host name must not be empty"})
			continue
		}
		if hc == nil {
			errs = append(errs, &ValidationError{Field: field, Message: "host has no configuration"})
			continue
		}
		errs = append(errs, c.validateHost(field, hc)...)
	}
	if len(c.Hosts) > 0 && !c.VirtualHosts {
		errs = append(errs, &ValidationError{
			Field:   "hosts",
			Message: "host providers are configured but virtualHosts is disabled",
		})
	}

	return errors.Join(errs...)
}

func (c *ServerConfig) validateCertFile() error {
	if c.TLS.CertFile == "" || c.TLS.AutoGenerate {
		return nil
	}
	info, err := os.Stat(c.Resolve(c.TLS.CertFile))
	if err != nil {
		return &ValidationError{Field: "tls.certFile", Message: fmt.Sprintf("cannot access file: %v", err)}
	}
	if info.IsDir() {
		return &ValidationError{Field: "tls.certFile", Message: "path is a directory"}
	}
	return nil
}

func (c *ServerConfig) validateHost(field string, hc *HostConfig) []error {
	var errs []error

	if hc.Root == "" && len(hc.Routes) == 0 {
		errs = append(errs, &ValidationError{Field: field, Message: "needs a root directory or at least one route"})
	}
	if hc.Root != "" {
		info, err := os.Stat(c.Resolve(hc.Root))
		switch {
		case err != nil:
			errs = append(errs, &ValidationError{Field: field + ".root", Message: fmt.Sprintf("cannot access directory: %v", err)})
		case !info.IsDir():
			errs = append(errs, &ValidationError{Field: field + ".root", Message: "not a directory"})
		}
	}
	for i, name := range hc.Index {
		if name == "" || strings.ContainsAny(name, `/\`) {
			errs = append(errs, &ValidationError{
				Field:   field + ".index[" + strconv.Itoa(i) + "]",
				Message: fmt.Sprintf("invalid index file name %q", name),
			})
		}
	}
	for i, pattern := range hc.Deny {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, &ValidationError{
				Field:   field + ".deny[" + strconv.Itoa(i) + "]",
				Message: fmt.Sprintf("invalid glob %q", pattern),
			})
		}
	}
	for i, rt := range hc.Routes {
		if rt.Pattern == "" {
			errs = append(errs, &ValidationError{
				Field:   field + ".routes[" + strconv.Itoa(i) + "].pattern",
				Message: "must not be empty",
			})
		}
	}
	for code := range hc.Errors {
		if code < 100 || code > 999 {
			errs = append(errs, &ValidationError{
				Field:   field + ".errors",
				Message: fmt.Sprintf("status code %d out of range", code),
			})
		}
	}
	return errs
}
