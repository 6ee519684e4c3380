// Package service runs the order workflow: it validates every change
// against the state machine, persists it, prices the order from the live
// settings and tells the order's observers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tablepos/pkg/apperr"
	"tablepos/pkg/logger"
	"tablepos/pkg/notify"
	"tablepos/pkg/order"
	"tablepos/pkg/settings"
)

// ErrStillActive is returned by Forget for an order that can still change.
var ErrStillActive = apperr.New(apperr.KindInvalidInput, "service: order is still active")

// Options tune a Service.
type Options struct {
	// Observers are subscribed to every new order, in this order.
	Observers []notify.Observer
	// ReleaseOnTerminal forgets an order as soon as it is paid or
	// cancelled. Otherwise its subscriptions stay until Forget.
	ReleaseOnTerminal bool
	Now               func() time.Time
}

// Service is the OrderService. Changes to one order are serialized; changes
// to different orders run in parallel.
type Service struct {
	repo     order.Repository
	registry *notify.Registry
	settings *settings.Handle
	log      *logger.Logger
	opts     Options

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New returns a Service.
func New(repo order.Repository, registry *notify.Registry, cfg *settings.Handle, log *logger.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		registry: registry,
		settings: cfg,
		log:      log.With("component", "orders"),
		opts:     opts,
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (s *Service) lock(id int64) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// CreateOrder opens a pending order for table, subscribes the default
// observers and announces it.
func (s *Service) CreateOrder(ctx context.Context, table int, actor string) (order.Order, error) {
	o, err := order.New(table, actor, s.now())
	if err != nil {
		return order.Order{}, err
	}
	if err := s.repo.Create(ctx, &o); err != nil {
		return order.Order{}, fmt.Errorf("create order: %w", err)
	}
	for _, obs := range s.opts.Observers {
		s.registry.Subscribe(o.ID, obs)
	}
	d := s.registry.Notify(ctx, s.event(notify.KindOrderCreated, o, actor))
	s.log.Info(ctx, "order created", "order_id", o.ID, "table", o.Table, "actor", actor, "observers", d.Observers)
	return o, nil
}

// Subscribe adds obs to the order's observers. It reports false when an
// observer with the same ID was already subscribed.
func (s *Service) Subscribe(ctx context.Context, id int64, obs notify.Observer) (bool, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return false, err
	}
	return s.registry.Subscribe(id, obs), nil
}

// Unsubscribe removes the observer with observerID from the order.
func (s *Service) Unsubscribe(id int64, observerID string) bool {
	return s.registry.Unsubscribe(id, observerID)
}

// AddItem appends li to the order and reprices it.
func (s *Service) AddItem(ctx context.Context, id int64, li order.LineItem, actor string) (order.Order, error) {
	unlock := s.lock(id)
	defer unlock()

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	next := cur.Clone()
	if err := next.AddItem(li); err != nil {
		return cur, err
	}
	s.price(ctx, &next)
	if err := s.repo.AppendItem(ctx, next); err != nil {
		return cur, fmt.Errorf("append item: %w", err)
	}

	ev := s.event(notify.KindItemsChanged, next, actor)
	ev.Item = &notify.ItemChange{Action: notify.ItemAdded, Position: len(next.Items) - 1, Item: li}
	d := s.registry.Notify(ctx, ev)
	s.log.Info(ctx, "item added", "order_id", id, "menu_item", li.MenuItem, "quantity", li.Quantity, "observers", d.Observers)
	return next, nil
}

// RemoveItem drops the item at pos and reprices the order.
func (s *Service) RemoveItem(ctx context.Context, id int64, pos int, actor string) (order.Order, error) {
	unlock := s.lock(id)
	defer unlock()

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	next := cur.Clone()
	li, err := next.RemoveItem(pos)
	if err != nil {
		return cur, err
	}
	s.price(ctx, &next)
	if err := s.repo.RemoveItem(ctx, next, pos); err != nil {
		return cur, fmt.Errorf("remove item: %w", err)
	}

	ev := s.event(notify.KindItemsChanged, next, actor)
	ev.Item = &notify.ItemChange{Action: notify.ItemRemoved, Position: pos, Item: li}
	d := s.registry.Notify(ctx, ev)
	s.log.Info(ctx, "item removed", "order_id", id, "menu_item", li.MenuItem, "observers", d.Observers)
	return next, nil
}

// ChangeState moves the order to to. Reaching paid goes through
// ProcessPayment only.
func (s *Service) ChangeState(ctx context.Context, id int64, to order.State, actor string) (order.Order, error) {
	unlock := s.lock(id)
	defer unlock()

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	next := cur.Clone()
	ch, err := next.Transition(to, actor, s.now())
	if err != nil {
		return cur, err
	}
	if to == order.StatePaid {
		return cur, &order.TransitionError{OrderID: id, From: cur.State, To: to, Err: order.ErrPaymentRequired}
	}
	if err := s.repo.UpdateState(ctx, next, ch); err != nil {
		return cur, fmt.Errorf("persist transition: %w", err)
	}

	d := s.registry.Notify(ctx, s.transitionEvent(next, ch))
	s.log.Info(ctx, "order transition",
		"order_id", id,
		"table", next.Table,
		"from", ch.From,
		"to", ch.To,
		"actor", actor,
		"observers", d.Observers,
	)
	s.afterTransition(ctx, next)
	return next, nil
}

// Cancel moves the order to cancelled.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) (order.Order, error) {
	return s.ChangeState(ctx, id, order.StateCancelled, actor)
}

// ProcessPayment settles a delivered order for its total. A nil tip uses
// the suggested tip from the live settings. The payment and the paid
// transition are stored together.
func (s *Service) ProcessPayment(ctx context.Context, id int64, method order.Method, tip *decimal.Decimal, actor string) (order.Payment, error) {
	if _, err := order.ParseMethod(string(method)); err != nil {
		return order.Payment{}, err
	}
	if tip != nil && tip.IsNegative() {
		return order.Payment{}, apperr.Wrap(order.ErrInvalidPayment, "negative tip %s", tip.StringFixed(2))
	}

	unlock := s.lock(id)
	defer unlock()

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return order.Payment{}, err
	}
	next := cur.Clone()
	at := s.now()
	ch, err := next.Transition(order.StatePaid, actor, at)
	if err != nil {
		return order.Payment{}, err
	}

	p := order.Payment{
		ID:          uuid.NewString(),
		OrderID:     id,
		Method:      method,
		Amount:      next.Total,
		ProcessedBy: actor,
		CreatedAt:   at,
	}
	if tip != nil {
		p.Tip = tip.Round(2)
	} else {
		p.Tip = s.settings.Instance(ctx).Get().SuggestedTip(next.Total)
	}
	if err := s.repo.RecordPayment(ctx, next, ch, p); err != nil {
		return order.Payment{}, fmt.Errorf("record payment: %w", err)
	}

	d := s.registry.Notify(ctx, s.transitionEvent(next, ch))
	ev := s.event(notify.KindPayment, next, actor)
	ev.Payment = &p
	s.registry.Notify(ctx, ev)
	s.log.Info(ctx, "payment processed",
		"order_id", id,
		"table", next.Table,
		"from", ch.From,
		"to", ch.To,
		"method", p.Method,
		"amount", p.Amount.StringFixed(2),
		"tip", p.Tip.StringFixed(2),
		"observers", d.Observers,
	)
	s.afterTransition(ctx, next)
	return p, nil
}

// Forget drops a finished order from active memory: its lock entry and
// its subscriptions. The stored order is untouched.
func (s *Service) Forget(ctx context.Context, id int64) error {
	unlock := s.lock(id)
	defer unlock()

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !o.State.Terminal() {
		return apperr.Wrap(ErrStillActive, "order %d is %s", id, o.State)
	}
	s.forget(ctx, id)
	return nil
}

func (s *Service) afterTransition(ctx context.Context, o order.Order) {
	if s.opts.ReleaseOnTerminal && o.State.Terminal() {
		s.forget(ctx, o.ID)
	}
}

// forget must be called with the order's lock held.
func (s *Service) forget(ctx context.Context, id int64) {
	n := s.registry.Release(id)
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	s.log.Debug(ctx, "order released", "order_id", id, "subscriptions", n)
}

// Get returns an order.
func (s *Service) Get(ctx context.Context, id int64) (order.Order, error) {
	return s.repo.Get(ctx, id)
}

// ListByTable returns a table's orders.
func (s *Service) ListByTable(ctx context.Context, table int) ([]order.Order, error) {
	return s.repo.ListByTable(ctx, table)
}

// ListByState returns orders in any of states; none means all.
func (s *Service) ListByState(ctx context.Context, states ...order.State) ([]order.Order, error) {
	return s.repo.ListByState(ctx, states...)
}

// GetPayment returns the payment of a paid order.
func (s *Service) GetPayment(ctx context.Context, id int64) (order.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

func (s *Service) price(ctx context.Context, o *order.Order) {
	t := s.settings.Instance(ctx).Get().Totals(o.ItemsSubtotal())
	o.Subtotal, o.Tax, o.Total = t.Subtotal, t.Tax, t.Total
}

func (s *Service) event(kind notify.Kind, o order.Order, actor string) notify.Event {
	return notify.Event{
		Kind:    kind,
		OrderID: o.ID,
		Table:   o.Table,
		Actor:   actor,
		At:      s.now(),
		Order:   o.Clone(),
	}
}

func (s *Service) transitionEvent(o order.Order, ch order.StateChange) notify.Event {
	ev := s.event(notify.KindStateChange, o, ch.By)
	ev.From, ev.To, ev.At = ch.From, ch.To, ch.At
	return ev
}
