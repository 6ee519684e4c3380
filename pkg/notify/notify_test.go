package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tablepos/pkg/logger"
	"tablepos/pkg/order"
)

type recorder struct {
	calls []string
}

func (r *recorder) observer(name string, fail error) Func {
	return Func{Name: name, Fn: func(_ context.Context, ev Event) error {
		r.calls = append(r.calls, name+":"+string(ev.Kind))
		return fail
	}}
}

func stateEvent(id int64) Event {
	return Event{Kind: KindStateChange, OrderID: id, Table: 3, From: order.StatePending, To: order.StatePreparing, At: time.Now()}
}

func TestNotifyDeliversInSubscriptionOrder(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	rec := &recorder{}
	for _, name := range []string{"kitchen", "waiter", "admin"} {
		if !reg.Subscribe(1, rec.observer(name, nil)) {
			t.Fatalf("subscribe %s", name)
		}
	}

	d := reg.Notify(context.Background(), stateEvent(1))
	if d.Observers != 3 || d.Failed != 0 {
		t.Fatalf("unexpected delivery %+v", d)
	}
	want := "kitchen:state_change,waiter:state_change,admin:state_change"
	if got := strings.Join(rec.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	rec := &recorder{}
	reg.Subscribe(1, rec.observer("kitchen", nil))
	if reg.Subscribe(1, rec.observer("kitchen", nil)) {
		t.Fatal("duplicate subscription accepted")
	}
	reg.Notify(context.Background(), stateEvent(1))
	if len(rec.calls) != 1 {
		t.Fatalf("expected one delivery, got %d", len(rec.calls))
	}
}

func TestFailingObserverIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(logger.New(&buf, logger.LevelInfo, "test", nil))
	rec := &recorder{}
	reg.Subscribe(1, rec.observer("kitchen", nil))
	reg.Subscribe(1, rec.observer("waiter", errors.New("printer jammed")))
	reg.Subscribe(1, Func{Name: "panicky", Fn: func(context.Context, Event) error { panic("boom") }})
	reg.Subscribe(1, rec.observer("admin", nil))

	d := reg.Notify(context.Background(), stateEvent(1))
	if d.Observers != 4 || d.Failed != 2 {
		t.Fatalf("unexpected delivery %+v", d)
	}
	want := "kitchen:state_change,waiter:state_change,admin:state_change"
	if got := strings.Join(rec.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
	if !strings.Contains(buf.String(), "ObserverFailure") || !strings.Contains(buf.String(), "printer jammed") {
		t.Fatalf("failure not logged: %s", buf.String())
	}
}

func TestSubjectsAreIndependent(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	rec := &recorder{}
	reg.Subscribe(1, rec.observer("kitchen", nil))
	reg.Subscribe(2, rec.observer("admin", nil))

	reg.Notify(context.Background(), stateEvent(2))
	if got := strings.Join(rec.calls, ","); got != "admin:state_change" {
		t.Fatalf("calls = %s", got)
	}
}

func TestUnsubscribeAndRelease(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	rec := &recorder{}
	reg.Subscribe(1, rec.observer("kitchen", nil))
	reg.Subscribe(1, rec.observer("waiter", nil))

	if !reg.Unsubscribe(1, "kitchen") || reg.Unsubscribe(1, "kitchen") {
		t.Fatal("unsubscribe should succeed exactly once")
	}
	if obs := reg.Observers(1); len(obs) != 1 || obs[0].ID() != "waiter" {
		t.Fatalf("unexpected observers %v", obs)
	}
	if n := reg.Release(1); n != 1 {
		t.Fatalf("release dropped %d", n)
	}
	if d := reg.Notify(context.Background(), stateEvent(1)); d.Observers != 0 {
		t.Fatalf("released subject still notified: %+v", d)
	}
}

func TestBuiltInObservers(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "test", nil)
	reg := NewRegistry(log)
	reg.Subscribe(7, NewKitchen(log))
	reg.Subscribe(7, NewWaiter(log))
	reg.Subscribe(7, NewAdmin(log))
	ctx := context.Background()

	snapshot := order.Order{ID: 7, Table: 2, Total: decimal.RequireFromString("116")}
	reg.Notify(ctx, Event{Kind: KindOrderCreated, OrderID: 7, Table: 2, Order: snapshot})
	reg.Notify(ctx, Event{Kind: KindStateChange, OrderID: 7, Table: 2, From: order.StatePreparing, To: order.StateReady, Order: snapshot})
	reg.Notify(ctx, Event{Kind: KindPayment, OrderID: 7, Table: 2, Order: snapshot, Payment: &order.Payment{
		Method: order.MethodCash, Amount: decimal.RequireFromString("116"), Tip: decimal.RequireFromString("17.40"),
	}})

	out := buf.String()
	for _, want := range []string{
		"[KITCHEN] new order #7, table 2",
		"[WAITER] order #7 ready, take it to table 2",
		"[ADMIN] order #7: preparing -> ready, table 2",
		"[WAITER] payment received for order #7, table 2: 116.00 via cash",
		"[ADMIN] order #7: paid 133.40 via cash, table 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in log output", want)
		}
	}
	if strings.Contains(out, "[KITCHEN] order #7 cancelled") {
		t.Error("kitchen reacted to a non-cancel transition")
	}
}
