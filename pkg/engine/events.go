package engine

// EventKind identifies a lifecycle event.
type EventKind int

const (
	EventAboutToStart EventKind = iota
	EventFailedToStart
	EventFailedToSetPorts
	EventStarted
	EventStartedListening
	EventAboutToStop
	EventDidStop
)

func (k EventKind) String() string {
	switch k {
	case EventAboutToStart:
		return "about to start"
	case EventFailedToStart:
		return "failed to start"
	case EventFailedToSetPorts:
		return "failed to set ports"
	case EventStarted:
		return "started"
	case EventStartedListening:
		return "started listening"
	case EventAboutToStop:
		return "about to stop"
	case EventDidStop:
		return "did stop"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification.
//
// Ports holds the attempted port list for EventFailedToSetPorts and the
// canonical list for EventStarted and later events. Address is set for
// EventStartedListening. Err is set for the two failure kinds.
type Event struct {
	Kind    EventKind
	Ports   string
	Address string
	Err     error
}

// Delegate observes lifecycle events. HandleEvent runs on the worker
// goroutine; it must not block for long.
type Delegate interface {
	HandleEvent(ev Event)
}

// DelegateFunc adapts a function to Delegate.
type DelegateFunc func(ev Event)

// HandleEvent calls f(ev).
func (f DelegateFunc) HandleEvent(ev Event) { f(ev) }
