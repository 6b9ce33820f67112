package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/getmockd/vhostd/internal/ports"
	"github.com/getmockd/vhostd/pkg/cli/internal/flags"
	"github.com/getmockd/vhostd/pkg/cli/internal/output"
	"github.com/getmockd/vhostd/pkg/cli/internal/parse"
	"github.com/getmockd/vhostd/pkg/config"
	"github.com/getmockd/vhostd/pkg/engine"
	"github.com/getmockd/vhostd/pkg/listener"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

// serveFlags holds the values bound to the serve command's flags.
type serveFlags struct {
	configFile     string
	envFile        string
	ports          []int
	portList       string
	host           string
	root           string
	index          flags.StringSlice
	deny           flags.StringSlice
	vhosts         flags.StringSlice
	tlsCert        string
	tlsAuto        bool
	maxConnections int
	maxBodyBytes   int64
	rateLimit      float64
	rateBurst      int
	logLevel       string
	logFormat      string
	logFile        string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server (foreground)",
	Long: `Start serving on the configured ports until interrupted.

SIGINT and SIGTERM stop the server gracefully; SIGHUP restarts the listener
with the same ports and certificate.`,
	Example: `  # Serve the current directory on port 8080
  vhostd serve --root .

  # Serve from a configuration file
  vhostd serve --config vhostd.yaml

  # Two sites by host name, plain and TLS ports
  vhostd serve --ports 8080,8443s --tls-auto \
    --vhost a.example.com=./sites/a --vhost b.example.com=./sites/b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, &serveFlagVals)
	},
}

func initServeCmd() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	fs := serveCmd.Flags()

	fs.StringVarP(&f.configFile, "config", "c", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&f.envFile, "env-file", "", "Read VHOSTD_* overrides from a dotenv file (process environment wins)")
	fs.IntSliceVarP(&f.ports, "port", "p", nil, "Port to listen on (repeatable)")
	fs.StringVar(&f.portList, "ports", "", `Comma-separated port list, "s" suffix for TLS (e.g. 8080,8443s)`)
	fs.StringVar(&f.host, "host", "", "Address to bind (default: all interfaces)")
	fs.StringVarP(&f.root, "root", "r", "", "Directory served by the default provider")
	fs.Var(&f.index, "index", "Index file name tried for directory requests (repeatable)")
	fs.Var(&f.deny, "deny", `Glob of paths refused with 403, e.g. "**/.*" (repeatable)`)
	fs.Var(&f.vhosts, "vhost", "Virtual host as host=directory (repeatable, enables virtual hosting)")
	fs.StringVar(&f.tlsCert, "tls-cert", "", "PEM file with certificate and private key for TLS ports")
	fs.BoolVar(&f.tlsAuto, "tls-auto", false, "Generate a self-signed certificate if none exists")
	fs.IntVar(&f.maxConnections, "max-connections", 0, "Maximum concurrent connections per port (0 = unlimited)")
	fs.Int64Var(&f.maxBodyBytes, "max-body-bytes", 0, "Maximum request body size (0 = 10MiB)")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Requests per second allowed from one client address (0 = unlimited)")
	fs.IntVar(&f.rateBurst, "rate-burst", 0, "Requests a client may send at once (0 = twice the rate)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	fs.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
}

// buildServeConfig merges file, environment (then --env-file) and flags,
// in that order.
// changed reports whether a flag was set on the command line.
func buildServeConfig(f *serveFlags, changed func(string) bool) (*config.ServerConfig, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	getenv := os.Getenv
	if f.envFile != "" {
		fileEnv, err := godotenv.Read(f.envFile)
		if err != nil {
			return nil, fmt.Errorf("read --env-file: %w", err)
		}
		getenv = func(key string) string {
			if v := os.Getenv(key); v != "" {
				return v
			}
			return fileEnv[key]
		}
	}
	if err := cfg.ApplyEnvFrom(getenv); err != nil {
		return nil, err
	}

	switch {
	case len(f.ports) > 0 && f.portList != "":
		cfg.Ports = ports.Join(f.ports) + "," + f.portList
	case len(f.ports) > 0:
		cfg.Ports = ports.Join(f.ports)
	case f.portList != "":
		cfg.Ports = f.portList
	}

	if changed("host") {
		cfg.Host = f.host
	}

	if f.root != "" {
		root, err := filepath.Abs(f.root)
		if err != nil {
			return nil, fmt.Errorf("invalid --root: %w", err)
		}
		cfg.Default = &config.HostConfig{Root: root}
	}
	if cfg.Default != nil {
		if len(f.index) > 0 {
			cfg.Default.Index = append([]string(nil), f.index...)
		}
		cfg.Default.Deny = append(cfg.Default.Deny, f.deny...)
	}

	for _, v := range f.vhosts {
		host, dir, ok := parse.KeyValue(v, '=')
		if !ok || host == "" || dir == "" {
			return nil, fmt.Errorf("invalid --vhost %q (want host=directory)", v)
		}
		root, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid --vhost %q: %w", v, err)
		}
		if cfg.Hosts == nil {
			cfg.Hosts = make(map[string]*config.HostConfig)
		}
		cfg.Hosts[host] = &config.HostConfig{Root: root, Deny: append([]string(nil), f.deny...)}
		cfg.VirtualHosts = true
	}

	if f.tlsCert != "" {
		cert, err := filepath.Abs(f.tlsCert)
		if err != nil {
			return nil, fmt.Errorf("invalid --tls-cert: %w", err)
		}
		cfg.TLS.CertFile = cert
	}
	if f.tlsAuto {
		cfg.TLS.AutoGenerate = true
	}
	if cfg.TLS.AutoGenerate && cfg.TLS.CertFile == "" {
		cfg.TLS.CertFile = defaultCertPath()
	}

	if changed("max-connections") {
		cfg.MaxConnections = f.maxConnections
	}
	if changed("max-body-bytes") {
		cfg.MaxBodyBytes = f.maxBodyBytes
	}
	if changed("rate-limit") {
		cfg.RateLimit.RequestsPerSecond = f.rateLimit
	}
	if changed("rate-burst") {
		cfg.RateLimit.Burst = f.rateBurst
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	cfg, err := buildServeConfig(f, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	log, closeLog, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	certPath := cfg.Resolve(cfg.TLS.CertFile)
	if cfg.TLS.AutoGenerate {
		if err := ensureCertificate(certPath, log); err != nil {
			return err
		}
	}

	events := make(chan engine.Event, 32)
	eng := engine.New(
		engine.WithLogger(log),
		engine.WithDelegate(&consoleDelegate{out: cmd.OutOrStdout(), events: events}),
		engine.WithListener(listener.NewHTTP(listener.Config{
			Host:           cfg.Host,
			MaxConnections: cfg.MaxConnections,
			MaxBodyBytes:   cfg.MaxBodyBytes,
			RateLimit:      cfg.RateLimit.RequestsPerSecond,
			RateBurst:      cfg.RateLimit.Burst,
		}, listener.WithLogger(log))),
	)
	if err := applyProviders(eng, cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	eng.SetTLSCertificatePath(certPath)
	eng.StartPortString(cfg.Ports)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, serveSignals...)
	defer signal.Stop(sigs)

	return serveLoop(eng, cfg, f.configFile, events, sigs, log)
}

// serveLoop runs until a stop signal, or until the first start fails.
func serveLoop(eng *engine.Engine, cfg *config.ServerConfig, configFile string,
	events <-chan engine.Event, sigs <-chan os.Signal, log *slog.Logger,
) error {
	pidPath := resolvedPIDPath()
	started := false

	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case engine.EventStarted:
				if started {
					continue
				}
				started = true
				info := &PIDFile{
					PID:          os.Getpid(),
					StartTime:    time.Now(),
					Version:      Version,
					Commit:       Commit,
					Ports:        ev.Ports,
					Host:         cfg.Host,
					VirtualHosts: eng.Registry().Hosts(),
					ConfigFile:   configFile,
				}
				if err := WritePIDFile(pidPath, info); err != nil {
					output.Warn("failed to write PID file: %v", err)
				}
			case engine.EventFailedToStart, engine.EventFailedToSetPorts:
				if !started {
					_ = shutdown(eng, "", log)
					return fmt.Errorf("failed to start: %w", ev.Err)
				}
			}

		case sig := <-sigs:
			if isRestartSignal(sig) {
				log.Info("restart requested", "signal", signalName(sig))
				eng.Restart()
				continue
			}
			log.Info("shutting down", "signal", signalName(sig))
			if !started {
				pidPath = ""
			}
			return shutdown(eng, pidPath, log)
		}
	}
}

func shutdown(eng *engine.Engine, pidPath string, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := eng.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if pidPath != "" {
		if err := RemovePIDFile(pidPath); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
	}
	return errors.Join(errs...)
}

// consoleDelegate prints lifecycle events for the operator and forwards them
// to the serve loop.
type consoleDelegate struct {
	out    io.Writer
	events chan<- engine.Event
}

func (d *consoleDelegate) HandleEvent(ev engine.Event) {
	fmt.Fprintln(d.out, describeEvent(ev))

	select {
	case d.events <- ev:
	default:
	}
}

// describeEvent renders ev as one human-readable line.
func describeEvent(ev engine.Event) string {
	label := cases.Title(language.English).String(ev.Kind.String())

	switch ev.Kind {
	case engine.EventStarted:
		return fmt.Sprintf("%s on ports %s", label, ev.Ports)
	case engine.EventStartedListening:
		return fmt.Sprintf("%s on %s", label, ev.Address)
	case engine.EventFailedToSetPorts:
		return fmt.Sprintf("%s %q: %v", label, ev.Ports, ev.Err)
	case engine.EventFailedToStart:
		return fmt.Sprintf("%s: %v", label, ev.Err)
	}
	return label
}
