package cli

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/getmockd/vhostd/pkg/config"
	"github.com/getmockd/vhostd/pkg/logging"
	"github.com/getmockd/vhostd/pkg/provider"
	"github.com/getmockd/vhostd/pkg/provider/canned"
	"github.com/getmockd/vhostd/pkg/provider/fileserver"
	vtls "github.com/getmockd/vhostd/pkg/tls"
)

// providerSink receives the providers built from a configuration.
// *engine.Engine satisfies it.
type providerSink interface {
	SetDefaultProvider(p provider.Provider)
	SetProvider(p provider.Provider, host string)
	SetVirtualHostingEnabled(enabled bool)
}

// buildProvider turns one host section into a data provider. Canned routes
// are always present; a root directory adds file serving behind them.
func buildProvider(cfg *config.ServerConfig, hc *config.HostConfig) (provider.Provider, error) {
	router, err := canned.New(cfg.BaseDir(), hc.Routes, hc.Errors)
	if err != nil {
		return nil, err
	}
	if hc.Root == "" {
		return router, nil
	}

	opts := []fileserver.Option{fileserver.WithRouter(router), fileserver.WithDeny(hc.Deny...)}
	if len(hc.Index) > 0 {
		opts = append(opts, fileserver.WithIndexNames(hc.Index...))
	}
	fs := fileserver.New(cfg.Resolve(hc.Root), opts...)
	if err := fs.ValidatePatterns(); err != nil {
		return nil, err
	}
	return fs, nil
}

// applyProviders builds every configured provider and installs them on sink.
// Nothing is installed when any provider fails to build.
func applyProviders(sink providerSink, cfg *config.ServerConfig) error {
	var def provider.Provider
	if cfg.Default != nil {
		p, err := buildProvider(cfg, cfg.Default)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		def = p
	}

	hosts := make(map[string]provider.Provider, len(cfg.Hosts))
	for _, host := range slices.Sorted(maps.Keys(cfg.Hosts)) {
		hc := cfg.Hosts[host]
		if hc == nil {
			continue
		}
		p, err := buildProvider(cfg, hc)
		if err != nil {
			return fmt.Errorf("host %s: %w", host, err)
		}
		hosts[host] = p
	}

	if def != nil {
		sink.SetDefaultProvider(def)
	}
	for host, p := range hosts {
		sink.SetProvider(p, host)
	}
	sink.SetVirtualHostingEnabled(cfg.VirtualHosts)
	return nil
}

// newLogger builds the operational logger. With a log file configured every
// record is mirrored to it as JSON; the returned func closes the file.
func newLogger(lc config.LogConfig, out io.Writer) (*slog.Logger, func(), error) {
	cfg := logging.Config{
		Level:  logging.ParseLevel(lc.Level),
		Format: logging.ParseFormat(lc.Format),
		Output: out,
	}

	closeFn := func() {}
	if lc.File != "" {
		if err := os.MkdirAll(filepath.Dir(lc.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cfg.Mirror = f
		closeFn = func() { _ = f.Close() }
	}

	return logging.New(cfg), closeFn, nil
}

// defaultCertPath is where --tls-auto keeps its bundle when no path is given.
func defaultCertPath() string {
	return filepath.Join(filepath.Dir(DefaultPIDPath()), "tls", "server.pem")
}

// ensureCertificate creates a self-signed bundle at path unless one exists.
func ensureCertificate(path string, log *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cc := vtls.DefaultCertificateConfig()
	if err := vtls.EnsureBundle(cc, path); err != nil {
		return fmt.Errorf("failed to generate TLS certificate: %w", err)
	}
	log.Info("generated self-signed certificate", "path", path, "hosts", cc.DNSNames)
	return nil
}
