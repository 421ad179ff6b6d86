package qrlogin

import (
	"log/slog"
	"sync"

	"github.com/zenlink-im/zenlink-go/pkg/session"
)

// EventType identifies one kind of login event.
type EventType string

const (
	EventQRGenerated   EventType = "qr_generated"
	EventQRExpired     EventType = "qr_expired"
	EventQRScanned     EventType = "qr_scanned"
	EventQRDeclined    EventType = "qr_declined"
	EventLoginComplete EventType = "login_complete"
	EventLoginError    EventType = "login_error"
)

// QROptions are the feature flags the service attaches to a generated QR code.
type QROptions struct {
	EnabledCheckOCR   bool `json:"enabledCheckOCR"`
	EnabledMultiLayer bool `json:"enabledMultiLayer"`
}

// Event is one immutable notification emitted by the orchestrator. Type
// selects which payload fields are set:
//
//   - EventQRGenerated: Code, Image (base64 PNG, prefix already stripped), Options
//   - EventQRExpired: no payload
//   - EventQRScanned: Avatar, DisplayName
//   - EventQRDeclined: Code
//   - EventLoginComplete: Session
//   - EventLoginError: Err
type Event struct {
	Type EventType

	Code    string
	Image   string
	Options QROptions

	Avatar      string
	DisplayName string

	Session *session.Session

	Err error
}

// Observer receives login events in emission order. Delivery is decoupled
// from the login state machine: a slow OnEvent never delays polling, timer
// handling or command processing.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(event).
func (f ObserverFunc) OnEvent(event Event) {
	f(event)
}

// eventDispatcher delivers events to the observer from its own goroutine,
// preserving emission order with an unbounded queue so emit never blocks.
type eventDispatcher struct {
	observer Observer

	mutex   sync.Mutex
	wake    chan struct{}
	pending []Event
	closed  bool
}

func newEventDispatcher(observer Observer) *eventDispatcher {
	d := &eventDispatcher{
		observer: observer,
		wake:     make(chan struct{}, 1),
	}
	go d.run()
	return d
}

// emit queues one event for delivery. Calls after close are dropped.
func (d *eventDispatcher) emit(event Event) {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		slog.Debug("dropping event emitted after dispatcher close", "type", event.Type)
		return
	}
	d.pending = append(d.pending, event)
	d.mutex.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// close stops the dispatcher once every queued event has been delivered.
func (d *eventDispatcher) close() {
	d.mutex.Lock()
	d.closed = true
	d.mutex.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *eventDispatcher) run() {
	for {
		d.mutex.Lock()
		if len(d.pending) == 0 {
			closed := d.closed
			d.mutex.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		event := d.pending[0]
		d.pending = d.pending[1:]
		d.mutex.Unlock()

		d.observer.OnEvent(event)
	}
}
