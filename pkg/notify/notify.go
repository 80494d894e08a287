// Package notify defines the notifications the core sends to its
// presentation layers and fans them out to registered observers.
package notify

import (
	"sync"
	"time"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/types"
)

type Kind string

const (
	DeviceListChanged  Kind = "device-list-changed"
	SelectionChanged   Kind = "selection-changed"
	OperationStarted   Kind = "operation-started"
	OperationLine      Kind = "operation-line"
	OperationCompleted Kind = "operation-completed"
	Error              Kind = "error"
)

// Notification is one event for observers. Fields not relevant to Kind are
// left zero.
type Notification struct {
	Kind     Kind      `json:"kind"`
	Time     time.Time `json:"time"`
	Platform string    `json:"platform,omitempty"`

	// device-list-changed
	Devices []types.Device `json:"devices,omitempty"`
	Added   []types.Device `json:"added,omitempty"`
	Removed []types.Device `json:"removed,omitempty"`

	// selection-changed
	Selection string `json:"selection,omitempty"`

	// operation-*; Operation names a one-shot ("reboot") when Slot is empty
	Slot      types.Slot `json:"slot,omitempty"`
	Operation string     `json:"operation,omitempty"`
	RunID     string     `json:"runId,omitempty"`
	DeviceID  string     `json:"deviceId,omitempty"`
	Line      string     `json:"line,omitempty"`
	ExitCode  int        `json:"exitCode,omitempty"`
	Cancelled bool       `json:"cancelled,omitempty"`

	// error, or a failed operation-completed
	Failure types.FailureKind `json:"failure,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

// Observer receives notifications on the dispatch loop, so it must return
// quickly and must not call back into the session controller synchronously.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Notification)

func (f ObserverFunc) Notify(n Notification) { f(n) }

// Hub fans notifications out to every subscribed observer in
// subscription order.
type Hub struct {
	mu        sync.RWMutex
	observers map[int]Observer
	order     []int
	nextID    int
}

func NewHub() *Hub {
	return &Hub{observers: make(map[int]Observer)}
}

// Subscribe registers o and returns a function that removes it
func (h *Hub) Subscribe(o Observer) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.observers[id] = o
	h.order = append(h.order, id)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.observers[id]; !ok {
			return
		}
		delete(h.observers, id)
		for i, v := range h.order {
			if v == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
}

// Notify delivers n to all observers. A panicking observer is logged and
// skipped.
func (h *Hub) Notify(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	h.mu.RLock()
	targets := make([]Observer, 0, len(h.order))
	for _, id := range h.order {
		targets = append(targets, h.observers[id])
	}
	h.mu.RUnlock()

	for _, o := range targets {
		deliver(o, n)
	}
}

func deliver(o Observer, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogError("notify").Str("kind", string(n.Kind)).Interface("panic", r).Msg("Observer panicked")
		}
	}()
	o.Notify(n)
}

// Recorder is an Observer that keeps every notification. Tests and the CLI
// use it to inspect what was emitted.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded so far
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// OfKind returns the recorded notifications with kind k
func (r *Recorder) OfKind(k Kind) []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets everything recorded
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
