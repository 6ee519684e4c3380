// Package memory implements an in-memory order repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"tablepos/pkg/order"
)

// Repository provides an in-memory implementation of order.Repository.
type Repository struct {
	mu       sync.RWMutex
	nextID   int64
	orders   map[int64]order.Order
	payments map[int64]order.Payment
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		orders:   make(map[int64]order.Order),
		payments: make(map[int64]order.Payment),
	}
}

// Create stores the order and assigns the next ID.
func (r *Repository) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = o.Clone()
	return nil
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id int64) (order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o.Clone(), nil
}

// UpdateState stores o if the current state is still ch.From.
func (r *Repository) UpdateState(ctx context.Context, o order.Order, ch order.StateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkState(o.ID, ch.From); err != nil {
		return err
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

// AppendItem replaces the stored item list and totals.
func (r *Repository) AppendItem(ctx context.Context, o order.Order) error {
	return r.replace(o)
}

// RemoveItem replaces the stored item list and totals.
func (r *Repository) RemoveItem(ctx context.Context, o order.Order, pos int) error {
	return r.replace(o)
}

// ListByTable returns the table's orders, oldest first.
func (r *Repository) ListByTable(ctx context.Context, table int) ([]order.Order, error) {
	return r.filter(func(o order.Order) bool { return o.Table == table }), nil
}

// ListByState returns orders in any of states, oldest first. No states
// means every order.
func (r *Repository) ListByState(ctx context.Context, states ...order.State) ([]order.Order, error) {
	want := make(map[order.State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	return r.filter(func(o order.Order) bool { return len(want) == 0 || want[o.State] }), nil
}

// RecordPayment stores p together with the paid transition.
func (r *Repository) RecordPayment(ctx context.Context, o order.Order, ch order.StateChange, p order.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkState(o.ID, ch.From); err != nil {
		return err
	}
	if _, ok := r.payments[o.ID]; ok {
		return order.ErrTerminalState
	}
	r.orders[o.ID] = o.Clone()
	r.payments[o.ID] = p
	return nil
}

// GetPayment returns the payment recorded for an order.
func (r *Repository) GetPayment(ctx context.Context, orderID int64) (order.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[orderID]
	if !ok {
		return order.Payment{}, order.ErrPaymentNotFound
	}
	return p, nil
}

func (r *Repository) checkState(id int64, want order.State) error {
	cur, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if cur.State != want {
		return &order.TransitionError{OrderID: id, From: cur.State, To: want, Err: order.ErrInvalidTransition}
	}
	return nil
}

func (r *Repository) replace(o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *Repository) filter(keep func(order.Order) bool) []order.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
