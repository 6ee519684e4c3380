package notify

import (
	"context"
	"fmt"
	"strings"

	"tablepos/pkg/logger"
	"tablepos/pkg/order"
)

// Kitchen announces new orders, item changes and cancellations.
type Kitchen struct {
	log *logger.Logger
}

func NewKitchen(log *logger.Logger) *Kitchen {
	return &Kitchen{log: log.With("observer", "kitchen")}
}

func (k *Kitchen) ID() string { return "kitchen" }

func (k *Kitchen) Notify(ctx context.Context, ev Event) error {
	switch {
	case ev.Kind == KindOrderCreated:
		k.log.Info(ctx, fmt.Sprintf("[KITCHEN] new order #%d, table %d", ev.OrderID, ev.Table),
			"order_id", ev.OrderID, "items", describeItems(ev.Order.Items))
	case ev.Kind == KindItemsChanged && ev.Item != nil:
		k.log.Info(ctx, fmt.Sprintf("[KITCHEN] item %s on order #%d, table %d: %dx %s",
			ev.Item.Action, ev.OrderID, ev.Table, ev.Item.Item.Quantity, ev.Item.Item.MenuItem),
			"order_id", ev.OrderID, "notes", ev.Item.Item.Notes)
	case ev.Kind == KindStateChange && ev.To == order.StateCancelled:
		k.log.Info(ctx, fmt.Sprintf("[KITCHEN] order #%d cancelled, table %d", ev.OrderID, ev.Table),
			"order_id", ev.OrderID)
	}
	return nil
}

// Waiter is told when food is ready, delivered and paid for.
type Waiter struct {
	log *logger.Logger
}

func NewWaiter(log *logger.Logger) *Waiter {
	return &Waiter{log: log.With("observer", "waiter")}
}

func (w *Waiter) ID() string { return "waiter" }

func (w *Waiter) Notify(ctx context.Context, ev Event) error {
	switch {
	case ev.Kind == KindStateChange && ev.To == order.StateReady:
		w.log.Info(ctx, fmt.Sprintf("[WAITER] order #%d ready, take it to table %d", ev.OrderID, ev.Table),
			"order_id", ev.OrderID)
	case ev.Kind == KindStateChange && ev.To == order.StateDelivered:
		w.log.Info(ctx, fmt.Sprintf("[WAITER] order #%d delivered to table %d, total %s",
			ev.OrderID, ev.Table, ev.Order.Total.StringFixed(2)), "order_id", ev.OrderID)
	case ev.Kind == KindPayment && ev.Payment != nil:
		w.log.Info(ctx, fmt.Sprintf("[WAITER] payment received for order #%d, table %d: %s via %s",
			ev.OrderID, ev.Table, ev.Payment.Amount.StringFixed(2), ev.Payment.Method),
			"order_id", ev.OrderID, "tip", ev.Payment.Tip.StringFixed(2))
	}
	return nil
}

// Admin records every event.
type Admin struct {
	log *logger.Logger
}

func NewAdmin(log *logger.Logger) *Admin {
	return &Admin{log: log.With("observer", "admin")}
}

func (a *Admin) ID() string { return "admin" }

func (a *Admin) Notify(ctx context.Context, ev Event) error {
	var msg string
	switch ev.Kind {
	case KindStateChange:
		msg = fmt.Sprintf("[ADMIN] order #%d: %s -> %s, table %d", ev.OrderID, ev.From, ev.To, ev.Table)
	case KindItemsChanged:
		msg = fmt.Sprintf("[ADMIN] order #%d: items changed, table %d", ev.OrderID, ev.Table)
		if ev.Item != nil {
			msg = fmt.Sprintf("[ADMIN] order #%d: item %s %dx %s, table %d",
				ev.OrderID, ev.Item.Action, ev.Item.Item.Quantity, ev.Item.Item.MenuItem, ev.Table)
		}
	case KindPayment:
		msg = fmt.Sprintf("[ADMIN] order #%d: paid, table %d", ev.OrderID, ev.Table)
		if ev.Payment != nil {
			msg = fmt.Sprintf("[ADMIN] order #%d: paid %s via %s, table %d",
				ev.OrderID, ev.Payment.Charged().StringFixed(2), ev.Payment.Method, ev.Table)
		}
	default:
		msg = fmt.Sprintf("[ADMIN] order #%d: %s, table %d", ev.OrderID, ev.Kind, ev.Table)
	}
	a.log.Info(ctx, msg, "order_id", ev.OrderID, "event", ev.Kind, "actor", ev.Actor)
	return nil
}

func describeItems(items []order.LineItem) string {
	parts := make([]string, len(items))
	for i, li := range items {
		parts[i] = fmt.Sprintf("%dx %s", li.Quantity, li.MenuItem)
	}
	return strings.Join(parts, ", ")
}
