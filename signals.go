package gatekit

import (
	"log"
	"net/http"
	"sync"
)

// GrantedEvent is published after a successful token validation.
type GrantedEvent struct {
	Request *http.Request
	Token   *AccessToken
	Path    string // matched pattern template
}

// DeniedEvent is published when access to a protected path is denied.
type DeniedEvent struct {
	Request *http.Request
	Path    string // matched pattern template
	Reason  DenyReason
}

// Notifier broadcasts authorization decisions to registered listeners.
// Publication is synchronous and fire-and-forget: no return value is
// consumed, listener panics are recovered and logged, and a listener can
// never change the request outcome. Register listeners at startup; the
// notifier is then only read on the hot path.
type Notifier struct {
	mu      sync.RWMutex
	granted []func(GrantedEvent)
	denied  []func(DeniedEvent)
}

// NewNotifier creates a notifier with no listeners.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// OnGranted registers a listener for granted decisions.
func (n *Notifier) OnGranted(fn func(GrantedEvent)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.granted = append(n.granted, fn)
}

// OnDenied registers a listener for denied decisions.
func (n *Notifier) OnDenied(fn func(DeniedEvent)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.denied = append(n.denied, fn)
}

// EmitGranted publishes a granted decision to all listeners, in
// registration order.
func (n *Notifier) EmitGranted(ev GrantedEvent) {
	n.mu.RLock()
	listeners := n.granted
	n.mu.RUnlock()

	for _, fn := range listeners {
		safeNotify(func() { fn(ev) })
	}
}

// EmitDenied publishes a denied decision to all listeners, in registration
// order.
func (n *Notifier) EmitDenied(ev DeniedEvent) {
	n.mu.RLock()
	listeners := n.denied
	n.mu.RUnlock()

	for _, fn := range listeners {
		safeNotify(func() { fn(ev) })
	}
}

func safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("gatekit: notification listener panicked: %v", r)
		}
	}()
	fn()
}
