package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (outlet_id, table_id, created_by)
VALUES ($1, $2, $3)
RETURNING id, outlet_id, table_id, status, round, total_amount, paid_amount, tip_amount, version, created_by, created_at, updated_at, settled_at
`

type CreateOrderParams struct {
	OutletID  uuid.UUID `json:"outlet_id"`
	TableID   uuid.UUID `json:"table_id"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.OutletID, arg.TableID, arg.CreatedBy)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT id, outlet_id, table_id, status, round, total_amount, paid_amount, tip_amount, version, created_by, created_at, updated_at, settled_at FROM orders
WHERE id = $1 AND outlet_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.OutletID)
	return scanOrder(row)
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT id, outlet_id, table_id, status, round, total_amount, paid_amount, tip_amount, version, created_by, created_at, updated_at, settled_at FROM orders
WHERE id = $1 AND outlet_id = $2
FOR NO KEY UPDATE
`

type GetOrderForUpdateParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.OutletID)
	return scanOrder(row)
}

const listOrdersByTable = `-- name: ListOrdersByTable :many
SELECT id, outlet_id, table_id, status, round, total_amount, paid_amount, tip_amount, version, created_by, created_at, updated_at, settled_at FROM orders
WHERE table_id = $1 AND outlet_id = $2
ORDER BY created_at DESC
LIMIT $3
`

type ListOrdersByTableParams struct {
	TableID  uuid.UUID `json:"table_id"`
	OutletID uuid.UUID `json:"outlet_id"`
	Limit    int32     `json:"limit"`
}

func (q *Queries) ListOrdersByTable(ctx context.Context, arg ListOrdersByTableParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByTable, arg.TableID, arg.OutletID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const updateOrderLedger = `-- name: UpdateOrderLedger :one
UPDATE orders
SET status = $2,
    round = $3,
    total_amount = $4,
    paid_amount = $5,
    tip_amount = $6,
    settled_at = $7,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $8
RETURNING id, outlet_id, table_id, status, round, total_amount, paid_amount, tip_amount, version, created_by, created_at, updated_at, settled_at
`

type UpdateOrderLedgerParams struct {
	ID          uuid.UUID          `json:"id"`
	Status      OrderStatus        `json:"status"`
	Round       int32              `json:"round"`
	TotalAmount pgtype.Numeric     `json:"total_amount"`
	PaidAmount  pgtype.Numeric     `json:"paid_amount"`
	TipAmount   pgtype.Numeric     `json:"tip_amount"`
	SettledAt   pgtype.Timestamptz `json:"settled_at"`
	Version     int32              `json:"version"`
}

func (q *Queries) UpdateOrderLedger(ctx context.Context, arg UpdateOrderLedgerParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderLedger,
		arg.ID,
		arg.Status,
		arg.Round,
		arg.TotalAmount,
		arg.PaidAmount,
		arg.TipAmount,
		arg.SettledAt,
		arg.Version,
	)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.TableID,
		&i.Status,
		&i.Round,
		&i.TotalAmount,
		&i.PaidAmount,
		&i.TipAmount,
		&i.Version,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.SettledAt,
	)
	return i, err
}
