package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, guest_label, notes, round)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, product_id, product_name, unit_price, quantity, guest_label, notes, round, created_at
`

type CreateOrderItemParams struct {
	OrderID     uuid.UUID      `json:"order_id"`
	ProductID   uuid.UUID      `json:"product_id"`
	ProductName string         `json:"product_name"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Quantity    int32          `json:"quantity"`
	GuestLabel  string         `json:"guest_label"`
	Notes       pgtype.Text    `json:"notes"`
	Round       int32          `json:"round"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.UnitPrice,
		arg.Quantity,
		arg.GuestLabel,
		arg.Notes,
		arg.Round,
	)
	return scanOrderItem(row)
}

const deleteOrderItem = `-- name: DeleteOrderItem :exec
DELETE FROM order_items
WHERE id = $1 AND order_id = $2
`

type DeleteOrderItemParams struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) error {
	_, err := q.db.Exec(ctx, deleteOrderItem, arg.ID, arg.OrderID)
	return err
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, product_id, product_name, unit_price, quantity, guest_label, notes, round, created_at FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderItemQuantity = `-- name: UpdateOrderItemQuantity :one
UPDATE order_items
SET quantity = $3
WHERE id = $1 AND order_id = $2
RETURNING id, order_id, product_id, product_name, unit_price, quantity, guest_label, notes, round, created_at
`

type UpdateOrderItemQuantityParams struct {
	ID       uuid.UUID `json:"id"`
	OrderID  uuid.UUID `json:"order_id"`
	Quantity int32     `json:"quantity"`
}

func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItemQuantity, arg.ID, arg.OrderID, arg.Quantity)
	return scanOrderItem(row)
}

const updateOrderItemNotes = `-- name: UpdateOrderItemNotes :one
UPDATE order_items
SET notes = $3
WHERE id = $1 AND order_id = $2
RETURNING id, order_id, product_id, product_name, unit_price, quantity, guest_label, notes, round, created_at
`

type UpdateOrderItemNotesParams struct {
	ID      uuid.UUID   `json:"id"`
	OrderID uuid.UUID   `json:"order_id"`
	Notes   pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateOrderItemNotes(ctx context.Context, arg UpdateOrderItemNotesParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItemNotes, arg.ID, arg.OrderID, arg.Notes)
	return scanOrderItem(row)
}

func scanOrderItem(row rowScanner) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.UnitPrice,
		&i.Quantity,
		&i.GuestLabel,
		&i.Notes,
		&i.Round,
		&i.CreatedAt,
	)
	return i, err
}
