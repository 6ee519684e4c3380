package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one menu item on an order. UnitPrice is captured when the
// item is added and never re-read from the menu.
type LineItem struct {
	MenuItem  string          `json:"menu_item"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty"`
}

// Subtotal is Quantity * UnitPrice.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) validate() error {
	if li.MenuItem == "" {
		return wrap(ErrInvalidItem, "menu item is required")
	}
	if li.Quantity <= 0 {
		return wrap(ErrInvalidItem, "quantity %d for %s", li.Quantity, li.MenuItem)
	}
	if li.UnitPrice.IsNegative() {
		return wrap(ErrInvalidItem, "negative price for %s", li.MenuItem)
	}
	return nil
}

// StateChange records one accepted transition.
type StateChange struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	By   string    `json:"by"`
}

// Order is a table's order. Subtotal, Tax and Total are fixed whenever the
// item list changes and are never recomputed once items are locked.
type Order struct {
	ID          int64           `json:"id"`
	Table       int             `json:"table"`
	Items       []LineItem      `json:"items"`
	State       State           `json:"state"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	Transitions []StateChange   `json:"transitions"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// New returns a pending order for table.
func New(table int, by string, at time.Time) (Order, error) {
	if table <= 0 {
		return Order{}, wrap(ErrInvalidOrder, "table %d", table)
	}
	return Order{Table: table, State: StatePending, CreatedBy: by, CreatedAt: at}, nil
}

// Clone returns a deep copy so a mutation can be prepared without touching o.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	c.Transitions = append([]StateChange(nil), o.Transitions...)
	return c
}

// ItemsSubtotal sums the line items.
func (o Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range o.Items {
		sum = sum.Add(li.Subtotal())
	}
	return sum
}

// Transition moves o to the next state and stamps it.
func (o *Order) Transition(to State, by string, at time.Time) (StateChange, error) {
	if err := CheckTransition(o.State, to); err != nil {
		return StateChange{}, &TransitionError{OrderID: o.ID, From: o.State, To: to, Err: err}
	}
	ch := StateChange{From: o.State, To: to, At: at, By: by}
	o.State = to
	o.Transitions = append(o.Transitions, ch)
	return ch, nil
}

// AddItem appends li while the order is still editable.
func (o *Order) AddItem(li LineItem) error {
	if err := o.checkEditable(); err != nil {
		return err
	}
	if err := li.validate(); err != nil {
		return err
	}
	o.Items = append(o.Items, li)
	return nil
}

// RemoveItem drops the item at pos while the order is still editable.
func (o *Order) RemoveItem(pos int) (LineItem, error) {
	if err := o.checkEditable(); err != nil {
		return LineItem{}, err
	}
	if pos < 0 || pos >= len(o.Items) {
		return LineItem{}, wrap(ErrItemNotFound, "order %d position %d", o.ID, pos)
	}
	li := o.Items[pos]
	o.Items = append(o.Items[:pos:pos], o.Items[pos+1:]...)
	return li, nil
}

func (o Order) checkEditable() error {
	if o.State.Editable() {
		return nil
	}
	if o.State.Terminal() {
		return wrap(ErrTerminalState, "order %d is %s", o.ID, o.State)
	}
	return wrap(ErrOrderLocked, "order %d is %s", o.ID, o.State)
}

// Repository persists orders, their items, state log and payments.
type Repository interface {
	// Create stores a new order and assigns its ID.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	// UpdateState persists o.State after ch, failing if the stored state is
	// no longer ch.From.
	UpdateState(ctx context.Context, o Order, ch StateChange) error
	// AppendItem persists the last item of o along with its totals.
	AppendItem(ctx context.Context, o Order) error
	// RemoveItem persists the removal of position pos along with o's totals.
	RemoveItem(ctx context.Context, o Order, pos int) error
	ListByTable(ctx context.Context, table int) ([]Order, error)
	ListByState(ctx context.Context, states ...State) ([]Order, error)
	// RecordPayment stores p and the transition to paid in one step.
	RecordPayment(ctx context.Context, o Order, ch StateChange, p Payment) error
	GetPayment(ctx context.Context, orderID int64) (Payment, error)
}
