package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tablepos/pkg/order"
)

// Schema creates the tables the repository needs.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id           BIGSERIAL PRIMARY KEY,
	table_number INT NOT NULL,
	state        TEXT NOT NULL,
	subtotal     NUMERIC(12,2) NOT NULL DEFAULT 0,
	tax          NUMERIC(12,2) NOT NULL DEFAULT 0,
	total        NUMERIC(12,2) NOT NULL DEFAULT 0,
	created_by   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	position   INT NOT NULL,
	menu_item  TEXT NOT NULL,
	quantity   INT NOT NULL,
	unit_price NUMERIC(12,2) NOT NULL,
	notes      TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS order_state_log (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	from_state TEXT NOT NULL,
	to_state   TEXT NOT NULL,
	changed_by TEXT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS payments (
	id           UUID PRIMARY KEY,
	order_id     BIGINT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
	method       TEXT NOT NULL,
	amount       NUMERIC(12,2) NOT NULL,
	tip          NUMERIC(12,2) NOT NULL,
	processed_by TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_table_idx ON orders (table_number);
CREATE INDEX IF NOT EXISTS orders_state_idx ON orders (state);
`

// Repository persists orders in PostgreSQL. It works with either the lib/pq
// or the pgx database/sql driver.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates missing tables.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Create inserts a new order with its items.
func (r *Repository) Create(ctx context.Context, o *order.Order) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (table_number,state,subtotal,tax,total,created_by,created_at,updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING id`,
			o.Table, o.State, o.Subtotal, o.Tax, o.Total, o.CreatedBy, o.CreatedAt,
		).Scan(&o.ID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, li := range o.Items {
			if err := insertItem(ctx, tx, o.ID, i, li); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves an order by ID with its items and state log.
func (r *Repository) Get(ctx context.Context, id int64) (order.Order, error) {
	orders, err := r.load(ctx, `WHERE id=$1`, id)
	if err != nil {
		return order.Order{}, err
	}
	if len(orders) == 0 {
		return order.Order{}, order.ErrNotFound
	}
	return orders[0], nil
}

// UpdateState writes the new state if the row is still in ch.From.
func (r *Repository) UpdateState(ctx context.Context, o order.Order, ch order.StateChange) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return updateState(ctx, tx, o.ID, ch)
	})
}

// AppendItem inserts the last item of o and rewrites the totals.
func (r *Repository) AppendItem(ctx context.Context, o order.Order) error {
	if len(o.Items) == 0 {
		return fmt.Errorf("append item: order %d has no items", o.ID)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		pos := len(o.Items) - 1
		if err := insertItem(ctx, tx, o.ID, pos, o.Items[pos]); err != nil {
			return err
		}
		return updateTotals(ctx, tx, o)
	})
}

// RemoveItem deletes the item at pos, closes the gap and rewrites totals.
func (r *Repository) RemoveItem(ctx context.Context, o order.Order, pos int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id=$1 AND position=$2`, o.ID, pos)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return order.ErrItemNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE order_items SET position=position-1 WHERE order_id=$1 AND position>$2`, o.ID, pos); err != nil {
			return fmt.Errorf("renumber items: %w", err)
		}
		return updateTotals(ctx, tx, o)
	})
}

// ListByTable fetches a table's orders, oldest first.
func (r *Repository) ListByTable(ctx context.Context, table int) ([]order.Order, error) {
	return r.load(ctx, `WHERE table_number=$1`, table)
}

// ListByState fetches orders in any of states. No states means all orders.
func (r *Repository) ListByState(ctx context.Context, states ...order.State) ([]order.Order, error) {
	if len(states) == 0 {
		return r.load(ctx, ``)
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return r.load(ctx, `WHERE state = ANY($1)`, pq.Array(names))
}

// RecordPayment writes the paid transition and the payment atomically.
func (r *Repository) RecordPayment(ctx context.Context, o order.Order, ch order.StateChange, p order.Payment) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateState(ctx, tx, o.ID, ch); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payments (id,order_id,method,amount,tip,processed_by,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.OrderID, p.Method, p.Amount, p.Tip, p.ProcessedBy, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
}

// GetPayment fetches the payment of an order.
func (r *Repository) GetPayment(ctx context.Context, orderID int64) (order.Payment, error) {
	var p order.Payment
	err := r.db.QueryRowContext(ctx,
		`SELECT id,order_id,method,amount,tip,processed_by,created_at FROM payments WHERE order_id=$1`, orderID,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Tip, &p.ProcessedBy, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Payment{}, order.ErrPaymentNotFound
	}
	return p, err
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) load(ctx context.Context, where string, args ...any) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id,table_number,state,subtotal,tax,total,created_by,created_at FROM orders `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	var orders []order.Order
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.Table, &o.State, &o.Subtotal, &o.Tax, &o.Total, &o.CreatedBy, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := r.loadDetails(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) loadDetails(ctx context.Context, o *order.Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT menu_item,quantity,unit_price,notes FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var li order.LineItem
		if err := rows.Scan(&li.MenuItem, &li.Quantity, &li.UnitPrice, &li.Notes); err != nil {
			rows.Close()
			return err
		}
		o.Items = append(o.Items, li)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT from_state,to_state,changed_by,changed_at FROM order_state_log WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ch order.StateChange
		if err := rows.Scan(&ch.From, &ch.To, &ch.By, &ch.At); err != nil {
			return err
		}
		o.Transitions = append(o.Transitions, ch)
	}
	return rows.Err()
}

func insertItem(ctx context.Context, tx *sql.Tx, orderID int64, pos int, li order.LineItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_items (order_id,position,menu_item,quantity,unit_price,notes) VALUES ($1,$2,$3,$4,$5,$6)`,
		orderID, pos, li.MenuItem, li.Quantity, li.UnitPrice, li.Notes)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", li.MenuItem, err)
	}
	return nil
}

func updateTotals(ctx context.Context, tx *sql.Tx, o order.Order) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET subtotal=$2, tax=$3, total=$4, updated_at=now() WHERE id=$1`,
		o.ID, o.Subtotal, o.Tax, o.Total)
	if err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrNotFound
	}
	return nil
}

func updateState(ctx context.Context, tx *sql.Tx, id int64, ch order.StateChange) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET state=$2, updated_at=$3 WHERE id=$1 AND state=$4`, id, ch.To, ch.At, ch.From)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &order.TransitionError{OrderID: id, From: ch.From, To: ch.To, Err: order.ErrInvalidTransition}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_state_log (order_id,from_state,to_state,changed_by,changed_at) VALUES ($1,$2,$3,$4,$5)`,
		id, ch.From, ch.To, ch.By, ch.At)
	if err != nil {
		return fmt.Errorf("insert state log: %w", err)
	}
	return nil
}
