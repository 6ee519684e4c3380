package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tablepos/pkg/order"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := New()
	o, _ := order.New(4, "ana", time.Now())
	if err := repo.Create(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID != 1 {
		t.Fatalf("expected id 1, got %d", o.ID)
	}

	o.AddItem(order.LineItem{MenuItem: "pozole", Quantity: 1, UnitPrice: decimal.NewFromInt(120)})
	if err := repo.AppendItem(ctx, o); err != nil {
		t.Fatalf("append item: %v", err)
	}
	got, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].MenuItem != "pozole" {
		t.Fatalf("unexpected items %+v", got.Items)
	}

	ch, _ := o.Transition(order.StatePreparing, "ana", time.Now())
	if err := repo.UpdateState(ctx, o, ch); err != nil {
		t.Fatalf("update state: %v", err)
	}
	if err := repo.UpdateState(ctx, o, ch); !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("expected stale update to fail, got %v", err)
	}

	byState, _ := repo.ListByState(ctx, order.StatePreparing)
	byTable, _ := repo.ListByTable(ctx, 4)
	if len(byState) != 1 || len(byTable) != 1 {
		t.Fatalf("list: state=%d table=%d", len(byState), len(byTable))
	}
	if none, _ := repo.ListByState(ctx, order.StatePaid); len(none) != 0 {
		t.Fatalf("expected no paid orders")
	}

	if _, err := repo.Get(ctx, 99); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetPayment(ctx, 1); !errors.Is(err, order.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestStoredOrdersAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := New()
	o, _ := order.New(1, "ana", time.Now())
	repo.Create(ctx, &o)

	got, _ := repo.Get(ctx, o.ID)
	got.Items = append(got.Items, order.LineItem{MenuItem: "x", Quantity: 1})
	again, _ := repo.Get(ctx, o.ID)
	if len(again.Items) != 0 {
		t.Fatal("caller mutation leaked into the repository")
	}
}
