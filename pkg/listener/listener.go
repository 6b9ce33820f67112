// Package listener binds ports and delivers inbound requests to a handler as
// raw request records, writing back the serialized bytes it returns.
package listener

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/vhostd/internal/ports"
	"github.com/getmockd/vhostd/pkg/logging"
	"github.com/getmockd/vhostd/pkg/message"
	"github.com/getmockd/vhostd/pkg/ratelimit"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"
)

var (
	// ErrAlreadyBound is returned when Bind is called twice without Unbind.
	ErrAlreadyBound = errors.New("listener already bound")
	// ErrNoCertificate is returned when a TLS port is requested without a certificate.
	ErrNoCertificate = errors.New("TLS port requires a certificate")
)

// Handler answers one request record with a complete serialized response.
type Handler func(info *message.RequestInfo) []byte

// Listener is the network engine the lifecycle worker drives.
type Listener interface {
	// Bind listens on every port of the canonical port list. certPath names
	// a PEM file holding certificate and key, used for TLS ports.
	Bind(portList, certPath string, h Handler) error
	// Unbind stops listening and releases all sockets.
	Unbind(ctx context.Context) error
	// Addrs returns the bound addresses.
	Addrs() []net.Addr
}

// Config holds tunables of the HTTP listener.
type Config struct {
	// Host is the address to bind; empty binds all interfaces.
	Host string
	// MaxConnections caps concurrent connections per port (0 = unlimited).
	MaxConnections int
	// MaxBodyBytes caps the request body (0 = DefaultMaxBodyBytes).
	MaxBodyBytes int64
	// ReadHeaderTimeout bounds reading the request header.
	ReadHeaderTimeout time.Duration
	// RateLimit is the sustained requests per second allowed from one
	// client address (0 = unlimited).
	RateLimit float64
	// RateBurst is the number of requests a client may send at once.
	RateBurst int
}

// DefaultMaxBodyBytes is the request body limit used when none is configured.
const DefaultMaxBodyBytes = 10 << 20

// Option configures an HTTP listener.
type Option func(*HTTP)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *HTTP) {
		if log != nil {
			l.log = log
		}
	}
}

var _ Listener = (*HTTP)(nil)

// HTTP is a Listener built on net/http. Responses are written verbatim to
// the hijacked connection, which is then closed.
type HTTP struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	servers []*http.Server
	lns     []net.Listener
	limiter *ratelimit.Limiter
	serving sync.WaitGroup
}

// NewHTTP returns an unbound HTTP listener.
func NewHTTP(cfg Config, opts ...Option) *HTTP {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	l := &HTTP{cfg: cfg, log: logging.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind implements Listener. Either every port is bound or none is.
func (l *HTTP) Bind(portList, certPath string, h Handler) error {
	specs, err := ports.Parse(portList)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.servers) > 0 {
		return ErrAlreadyBound
	}

	var tlsConfig *tls.Config
	if ports.HasTLS(specs) {
		if tlsConfig, err = loadTLSConfig(certPath); err != nil {
			return err
		}
	}

	lns := make([]net.Listener, 0, len(specs))
	for _, spec := range specs {
		addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(spec.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			closeAll(lns)
			return fmt.Errorf("bind %s: %w", addr, err)
		}
		if l.cfg.MaxConnections > 0 {
			ln = netutil.LimitListener(ln, l.cfg.MaxConnections)
		}
		if spec.TLS {
			ln = tls.NewListener(ln, tlsConfig)
		}
		lns = append(lns, ln)
	}

	if l.cfg.RateLimit > 0 {
		l.limiter = ratelimit.New(ratelimit.Config{Rate: l.cfg.RateLimit, Burst: l.cfg.RateBurst})
	}

	for i, ln := range lns {
		srv := &http.Server{
			Handler:           l.adapter(specs[i].Port, l.limiter, h),
			ReadHeaderTimeout: l.cfg.ReadHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(l.log.Handler(), slog.LevelWarn),
		}
		l.servers = append(l.servers, srv)

		l.serving.Add(1)
		go func(srv *http.Server, ln net.Listener) {
			defer l.serving.Done()
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.log.Error("listener stopped", "addr", ln.Addr().String(), "error", err)
			}
		}(srv, ln)
	}
	l.lns = lns

	l.log.Debug("listener bound", "ports", ports.Format(specs))
	return nil
}

// Unbind implements Listener.
func (l *HTTP) Unbind(ctx context.Context) error {
	l.mu.Lock()
	servers := l.servers
	limiter := l.limiter
	l.servers = nil
	l.lns = nil
	l.limiter = nil
	l.mu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	l.serving.Wait()
	if limiter != nil {
		limiter.Stop()
	}

	return errors.Join(errs...)
}

// Addrs implements Listener.
func (l *HTTP) Addrs() []net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	addrs := make([]net.Addr, len(l.lns))
	for i, ln := range l.lns {
		addrs[i] = ln.Addr()
	}
	return addrs
}

func (l *HTTP) adapter(localPort int, limiter *ratelimit.Limiter, h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "connection cannot be hijacked", http.StatusInternalServerError)
			return
		}

		out := l.respond(w, r, localPort, limiter, h)

		conn, buf, err := hj.Hijack()
		if err != nil {
			l.log.Warn("hijack failed", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		if err := writeAll(buf, out); err != nil {
			l.log.Debug("write response failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
	})
}

func (l *HTTP) respond(w http.ResponseWriter, r *http.Request, localPort int, limiter *ratelimit.Limiter, h Handler) []byte {
	if limiter != nil {
		if ok, retry := limiter.Allow(clientIP(r.RemoteAddr)); !ok {
			l.log.Debug("rate limited", "remote", r.RemoteAddr, "retryAfter", retry)
			return tooManyRequests(retry)
		}
	}

	info, err := l.recordFor(w, r, localPort)
	if err != nil {
		return message.NewString(http.StatusRequestEntityTooLarge, message.ContentTypeTextPlain, err.Error()).Output()
	}
	return h(info)
}

// tooManyRequests renders a 429 carrying a Retry-After header.
func tooManyRequests(retry time.Duration) []byte {
	secs := strconv.Itoa(int(retry.Round(time.Second) / time.Second))
	res := message.NewString(http.StatusTooManyRequests, message.ContentTypeTextPlain,
		"Too many requests, retry in "+secs+"s")
	head := res.Header()
	// splice the extra header in before the blank line ending the head
	head = strings.TrimSuffix(head, "\r\n") + "Retry-After: " + secs + "\r\n\r\n"
	return append([]byte(head), res.Body()...)
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func (l *HTTP) recordFor(w http.ResponseWriter, r *http.Request, localPort int) (*message.RequestInfo, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, l.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	headers := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}
	headers["Host"] = r.Host

	remoteIP, remotePort := r.RemoteAddr, 0
	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
		remotePort, _ = strconv.Atoi(port)
	}
	user, _, _ := r.BasicAuth()

	return &message.RequestInfo{
		ID:          uuid.NewString(),
		Method:      r.Method,
		URI:         r.URL.Path,
		HTTPVersion: fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor),
		QueryString: r.URL.RawQuery,
		Body:        body,
		RemoteUser:  user,
		RemoteIP:    remoteIP,
		RemotePort:  remotePort,
		Headers:     headers,
		Host:        r.Host,
		LocalPort:   localPort,
	}, nil
}

func loadTLSConfig(certPath string) (*tls.Config, error) {
	if certPath == "" {
		return nil, ErrNoCertificate
	}
	pem, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	// one PEM file carries both the certificate and its key
	cert, err := tls.X509KeyPair(pem, pem)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func writeAll(buf *bufio.ReadWriter, out []byte) error {
	if _, err := buf.Write(out); err != nil {
		return err
	}
	return buf.Flush()
}

func closeAll(lns []net.Listener) {
	for _, ln := range lns {
		_ = ln.Close()
	}
}
