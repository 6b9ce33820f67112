package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/getmockd/vhostd/internal/ports"
	"github.com/getmockd/vhostd/pkg/listener"
	"github.com/getmockd/vhostd/pkg/message"
	"github.com/getmockd/vhostd/pkg/provider"
	"github.com/getmockd/vhostd/pkg/registry"
)

// intents are the pending transitions requested by the Engine. They are
// read and cleared together under worker.mu.
type intents struct {
	start   bool
	stop    bool
	restart bool
}

func (in intents) pending() bool { return in.start || in.stop || in.restart }

// worker owns the bound listener and applies lifecycle intents on its own
// goroutine.
type worker struct {
	log         *slog.Logger
	listener    listener.Listener
	registry    *registry.Registry
	emit        func(Event)
	resolveAddr func() (string, bool)

	// after is closed when the predecessor worker has released its ports.
	after <-chan struct{}

	mu       sync.Mutex
	intents  intents
	ports    string
	certPath string
	bound    string // canonical list of the last successful bind
	state    State

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	quitOnce sync.Once

	// gate orders dispatch admission against the stop sequence.
	gate      sync.RWMutex
	accepting bool
	inflight  sync.WaitGroup
}

func newWorker(e *Engine, after <-chan struct{}) *worker {
	return &worker{
		log:         e.log,
		listener:    e.listener,
		registry:    e.registry,
		emit:        e.emit,
		resolveAddr: e.resolveAddr,
		after:       after,
		state:       StateIdle,
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// schedule starts the worker goroutine. Repeated calls are no-ops.
func (w *worker) schedule() {
	w.once.Do(func() { go w.run() })
}

// retire stops the worker. Intents not yet applied are dropped; done is
// closed once the listener is released.
func (w *worker) retire() {
	w.mu.Lock()
	w.intents = intents{}
	w.mu.Unlock()
	w.quitOnce.Do(func() { close(w.quit) })
	w.schedule()
}

func (w *worker) configure(portList, certPath string) {
	w.mu.Lock()
	w.ports = portList
	w.certPath = certPath
	w.mu.Unlock()
}

func (w *worker) requestStart() {
	w.mu.Lock()
	w.intents.start = true
	w.mu.Unlock()
	w.signal()
}

func (w *worker) requestStop() {
	w.mu.Lock()
	w.intents.stop = true
	w.intents.start = false
	w.intents.restart = false
	w.mu.Unlock()
	w.signal()
}

func (w *worker) requestRestart() {
	w.mu.Lock()
	w.intents.restart = true
	w.intents.start = false
	w.mu.Unlock()
	w.signal()
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// boundTo reports whether the worker has bound a port set other than
// portList. An unparsable portList never requires a new worker.
func (w *worker) boundTo(portList string) (other bool) {
	canonical, err := ports.Normalize(portList)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bound != "" && w.bound != canonical
}

// currentState reports pending intents ahead of the applied state.
func (w *worker) currentState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.intents.restart:
		return StateRestartRequested
	case w.intents.stop:
		return StateStopRequested
	case w.intents.start:
		return StateStartRequested
	}
	return w.state
}

func (w *worker) boundPorts() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateRunning {
		return ""
	}
	return w.bound
}

func (w *worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *worker) run() {
	defer close(w.done)

	if w.after != nil {
		<-w.after
	}

	for {
		select {
		case <-w.quit:
			w.teardown()
			return
		case <-w.wake:
			// quit wins over a wake that became ready at the same time
			select {
			case <-w.quit:
				w.teardown()
				return
			default:
			}
			w.apply()
		}
	}
}

// apply consumes the pending intents. Stop and restart unwind a running
// listener before any start is attempted. The transitional state is set
// under the same lock that clears the intents.
func (w *worker) apply() {
	w.mu.Lock()
	in := w.intents
	w.intents = intents{}
	prev := w.state

	stopping := (in.stop || in.restart) && prev == StateRunning
	after := prev
	if stopping || (in.stop && prev == StateFailed) {
		after = StateIdle
	}
	refused := in.restart && !in.start && prev == StateFailed
	starting := (in.start && after != StateRunning) || (in.restart && !in.start && !refused)

	switch {
	case stopping && starting:
		w.state = StateRestartRequested
	case stopping:
		w.state = StateStopRequested
	case starting:
		w.state = StateStartRequested
	default:
		w.state = after
	}
	w.mu.Unlock()

	if stopping {
		w.stopListener(starting)
	}
	if refused {
		w.log.Warn("restart refused after failed start")
		w.emit(Event{Kind: EventFailedToStart, Err: ErrRestartNotAllowed})
	}
	if in.start && !starting {
		w.log.Debug("start ignored, already running", "ports", w.boundPorts())
	}
	if starting {
		w.startListener()
	}
}

func (w *worker) teardown() {
	w.mu.Lock()
	running := w.state == StateRunning
	w.intents = intents{}
	if running {
		w.state = StateStopRequested
	}
	w.mu.Unlock()

	if running {
		w.stopListener(false)
	}
}

func (w *worker) startListener() {
	w.mu.Lock()
	w.state = StateStartRequested
	portList, certPath := w.ports, w.certPath
	w.mu.Unlock()

	w.emit(Event{Kind: EventAboutToStart})

	canonical, err := checkConfig(portList, certPath)
	if err != nil {
		w.log.Warn("invalid listener configuration", "ports", portList, "error", err)
		w.setState(StateIdle)
		w.emit(Event{Kind: EventFailedToSetPorts, Ports: portList, Err: err})
		return
	}

	w.gate.Lock()
	w.accepting = true
	w.gate.Unlock()

	if err := w.listener.Bind(canonical, certPath, w.serve); err != nil {
		w.gate.Lock()
		w.accepting = false
		w.gate.Unlock()

		w.log.Error("failed to start listener", "ports", canonical, "error", err)
		w.setState(StateFailed)
		w.emit(Event{Kind: EventFailedToStart, Ports: canonical, Err: err})
		return
	}

	w.mu.Lock()
	w.state = StateRunning
	w.bound = canonical
	w.mu.Unlock()

	w.log.Info("listener started", "ports", canonical)
	w.emit(Event{Kind: EventStarted, Ports: canonical})

	if addr, ok := w.resolveAddr(); ok {
		w.emit(Event{Kind: EventStartedListening, Ports: canonical, Address: addr})
	}
}

// stopListener releases the listener. With restarting set the state stays
// transitional because a start follows immediately.
func (w *worker) stopListener(restarting bool) {
	w.mu.Lock()
	canonical := w.bound
	w.mu.Unlock()

	w.emit(Event{Kind: EventAboutToStop, Ports: canonical})

	w.gate.Lock()
	w.accepting = false
	w.gate.Unlock()
	w.inflight.Wait()

	if err := w.listener.Unbind(context.Background()); err != nil {
		w.log.Warn("listener did not shut down cleanly", "ports", canonical, "error", err)
	}

	if !restarting {
		w.setState(StateIdle)
	}
	w.log.Info("listener stopped", "ports", canonical)
	w.emit(Event{Kind: EventDidStop, Ports: canonical})
}

// serve answers one request. It is called concurrently by the listener.
func (w *worker) serve(info *message.RequestInfo) []byte {
	w.gate.RLock()
	if !w.accepting {
		w.gate.RUnlock()
		return message.NewString(http.StatusServiceUnavailable, message.ContentTypeTextPlain,
			"503 Service Unavailable").Output()
	}
	w.inflight.Add(1)
	w.gate.RUnlock()
	defer w.inflight.Done()

	req := message.NewRequest(info)

	var resp *message.Response
	if p := w.registry.Resolve(req); p != nil {
		resp = p.Dispatch(req)
	} else {
		resp = provider.NotConfigured(req)
	}
	if resp == nil {
		resp = provider.GenericError(http.StatusInternalServerError, req)
	}

	w.log.Debug("request served",
		"id", req.ID(),
		"method", req.MethodName(),
		"uri", req.URI(),
		"host", req.HostDomain(),
		"status", resp.StatusCode(),
	)
	return resp.Output()
}

// checkConfig validates a port list and its certificate requirement, and
// returns the canonical list.
func checkConfig(portList, certPath string) (string, error) {
	specs, err := ports.Parse(portList)
	if err != nil {
		return "", err
	}
	if ports.HasTLS(specs) {
		if certPath == "" {
			return "", ErrCertificateRequired
		}
		if _, err := os.Stat(certPath); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
		}
	}
	return ports.Format(specs), nil
}
