// Package notify fans order events out to subscribed observers. Delivery is
// synchronous, in subscription order, and isolated per observer: one
// observer failing never stops the others or reaches the caller.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tablepos/pkg/apperr"
	"tablepos/pkg/logger"
	"tablepos/pkg/order"
)

// ErrObserverFailure marks an observer error caught during delivery.
var ErrObserverFailure = apperr.New(apperr.KindObserverFailure, "notify: observer failed")

// Kind tags an event.
type Kind string

const (
	KindOrderCreated Kind = "order_created"
	KindStateChange  Kind = "state_change"
	KindItemsChanged Kind = "items_changed"
	KindPayment      Kind = "payment_processed"
)

// ItemChange describes an items_changed event.
type ItemChange struct {
	Action   string         `json:"action"`
	Position int            `json:"position"`
	Item     order.LineItem `json:"item"`
}

const (
	ItemAdded   = "added"
	ItemRemoved = "removed"
)

// Event is one change to an order. Order is a snapshot taken after the
// change was committed.
type Event struct {
	Kind    Kind           `json:"kind"`
	OrderID int64          `json:"order_id"`
	Table   int            `json:"table"`
	From    order.State    `json:"from,omitempty"`
	To      order.State    `json:"to,omitempty"`
	Actor   string         `json:"actor"`
	At      time.Time      `json:"at"`
	Item    *ItemChange    `json:"item,omitempty"`
	Payment *order.Payment `json:"payment,omitempty"`
	Order   order.Order    `json:"order"`
}

// Observer reacts to events. ID identifies the observer; subscribing the
// same ID twice to one subject is a no-op.
type Observer interface {
	ID() string
	Notify(ctx context.Context, ev Event) error
}

// Delivery summarizes one Notify call.
type Delivery struct {
	Observers int
	Failed    int
}

// Registry maps a subject (order id) to its ordered observers.
type Registry struct {
	mu   sync.RWMutex
	subs map[int64][]Observer
	log  *logger.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{subs: make(map[int64][]Observer), log: log.With("component", "notify")}
}

// Subscribe appends obs to subject's observers. It reports false if an
// observer with the same ID is already subscribed.
func (r *Registry) Subscribe(subject int64, obs Observer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.subs[subject] {
		if o.ID() == obs.ID() {
			return false
		}
	}
	r.subs[subject] = append(r.subs[subject], obs)
	return true
}

// Unsubscribe removes the observer with id from subject.
func (r *Registry) Unsubscribe(subject int64, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[subject]
	for i, o := range list {
		if o.ID() == id {
			r.subs[subject] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Release drops every subscription of subject and returns how many there were.
func (r *Registry) Release(subject int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.subs[subject])
	delete(r.subs, subject)
	return n
}

// Observers returns subject's observers in subscription order.
func (r *Registry) Observers(subject int64) []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Observer(nil), r.subs[subject]...)
}

// Notify delivers ev to every observer of ev.OrderID on the calling
// goroutine. Observer errors and panics are logged and counted, never
// returned.
func (r *Registry) Notify(ctx context.Context, ev Event) Delivery {
	observers := r.Observers(ev.OrderID)
	d := Delivery{Observers: len(observers)}
	for _, obs := range observers {
		if err := deliver(ctx, obs, ev); err != nil {
			d.Failed++
			r.log.Error(ctx, "observer failed",
				"kind", apperr.KindObserverFailure,
				"observer", obs.ID(),
				"event", ev.Kind,
				"order_id", ev.OrderID,
				"error", err,
			)
		}
	}
	return d
}

func deliver(ctx context.Context, obs Observer, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrObserverFailure, obs.ID(), p)
		}
	}()
	if err := obs.Notify(ctx, ev); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrObserverFailure, obs.ID(), err)
	}
	return nil
}

// Func adapts a function to Observer.
type Func struct {
	Name string
	Fn   func(ctx context.Context, ev Event) error
}

// ID implements Observer.
func (f Func) ID() string { return f.Name }

// Notify implements Observer.
func (f Func) Notify(ctx context.Context, ev Event) error { return f.Fn(ctx, ev) }
