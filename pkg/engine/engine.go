package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/getmockd/vhostd/internal/ports"
	"github.com/getmockd/vhostd/pkg/listener"
	"github.com/getmockd/vhostd/pkg/logging"
	"github.com/getmockd/vhostd/pkg/provider"
	"github.com/getmockd/vhostd/pkg/registry"
)

// Engine is the control surface of the server. All methods are safe for
// concurrent use and none of Start, Stop or Restart blocks on the listener;
// outcomes are reported to the Delegate.
type Engine struct {
	mu          sync.Mutex
	registry    *registry.Registry
	listener    listener.Listener
	log         *slog.Logger
	resolveAddr func() (string, bool)
	certPath    string
	worker      *worker
	prev        <-chan struct{} // done channel of the last closed worker

	dmu      sync.RWMutex
	delegate Delegate
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithListener sets the network listener. Defaults to an HTTP listener with
// default limits.
func WithListener(l listener.Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listener = l
		}
	}
}

// WithLogger sets the operational logger for the engine.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithDelegate sets the lifecycle observer.
func WithDelegate(d Delegate) Option {
	return func(e *Engine) {
		e.delegate = d
	}
}

// WithRegistry shares an existing provider registry.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithAddressResolver replaces the lookup used for StartedListening events
// and LocalIPAddress.
func WithAddressResolver(fn func() (string, bool)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.resolveAddr = fn
		}
	}
}

// New creates an idle Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:    registry.New(),
		log:         logging.Nop(),
		resolveAddr: LocalIPAddress,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.listener == nil {
		e.listener = listener.NewHTTP(listener.Config{}, listener.WithLogger(e.log))
	}
	return e
}

// SetDelegate replaces the lifecycle observer. nil removes it.
func (e *Engine) SetDelegate(d Delegate) {
	e.dmu.Lock()
	e.delegate = d
	e.dmu.Unlock()
}

// SetVirtualHostingEnabled toggles per-host provider resolution. A change
// applies to the next dispatched request.
func (e *Engine) SetVirtualHostingEnabled(enabled bool) {
	e.registry.SetVirtualHosting(enabled)
}

// IsVirtualHostingEnabled reports whether providers are resolved per host.
func (e *Engine) IsVirtualHostingEnabled() bool {
	return e.registry.VirtualHosting()
}

// SetDefaultProvider sets the provider used when no host-specific one applies.
func (e *Engine) SetDefaultProvider(p provider.Provider) {
	e.registry.SetDefault(p)
}

// Provider returns the default provider.
func (e *Engine) Provider() provider.Provider {
	return e.registry.Default()
}

// SetProvider registers p for an exact host name. A nil p removes the mapping.
func (e *Engine) SetProvider(p provider.Provider, host string) {
	e.registry.Set(host, p)
}

// ProviderForHost returns the provider registered for host, or nil.
func (e *Engine) ProviderForHost(host string) provider.Provider {
	return e.registry.ForHost(host)
}

// Registry returns the provider registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// SetTLSCertificatePath sets the PEM file (certificate and key) used by TLS
// ports. It is read by the next Start; a bound listener is not affected.
func (e *Engine) SetTLSCertificatePath(path string) {
	e.mu.Lock()
	e.certPath = path
	e.mu.Unlock()
}

// Start serves on a single port.
func (e *Engine) Start(port int) {
	e.start(ports.Join([]int{port}))
}

// StartPorts serves on every given port.
func (e *Engine) StartPorts(list ...int) {
	e.start(ports.Join(list))
}

// StartPortString serves on a comma-separated port list. A trailing "s" on a
// port ("8443s") enables TLS for it.
func (e *Engine) StartPortString(list string) {
	e.start(list)
}

func (e *Engine) start(list string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.worker
	if w != nil && w.boundTo(list) {
		// A different port set gets a fresh worker that binds once the
		// current one has released its ports.
		w.retire()
		w = newWorker(e, w.done)
		e.worker = w
	}
	if w == nil {
		w = newWorker(e, e.prev)
		e.worker = w
	}

	w.configure(list, e.certPath)
	w.requestStart()
	w.schedule()
}

// Stop releases the listener. It is a no-op when nothing was started.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.worker == nil {
		return
	}
	e.worker.requestStop()
	e.worker.schedule()
}

// Restart stops the listener and starts it again with the same ports and
// certificate.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.worker == nil {
		e.worker = newWorker(e, e.prev)
		e.worker.configure("", e.certPath)
	}
	e.worker.requestRestart()
	e.worker.schedule()
}

// State returns the lifecycle state, including requested transitions that
// the worker has not applied yet.
func (e *Engine) State() State {
	e.mu.Lock()
	w := e.worker
	e.mu.Unlock()

	if w == nil {
		return StateIdle
	}
	return w.currentState()
}

// Ports returns the canonical port list while running, or "".
func (e *Engine) Ports() string {
	e.mu.Lock()
	w := e.worker
	e.mu.Unlock()

	if w == nil {
		return ""
	}
	return w.boundPorts()
}

// LocalIPAddress returns a non-loopback address of this host, if any.
func (e *Engine) LocalIPAddress() (string, bool) {
	return e.resolveAddr()
}

// Close stops the listener and waits for the worker to exit or ctx to end.
// The Engine may be started again afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	w := e.worker
	e.worker = nil
	if w != nil {
		e.prev = w.done
		w.retire()
	}
	e.mu.Unlock()

	if w == nil {
		return nil
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) emit(ev Event) {
	attrs := []any{"event", ev.Kind.String()}
	if ev.Ports != "" {
		attrs = append(attrs, "ports", ev.Ports)
	}
	if ev.Address != "" {
		attrs = append(attrs, "address", ev.Address)
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err)
	}
	e.log.Debug("lifecycle event", attrs...)

	e.dmu.RLock()
	d := e.delegate
	e.dmu.RUnlock()

	if d != nil {
		d.HandleEvent(ev)
	}
}
