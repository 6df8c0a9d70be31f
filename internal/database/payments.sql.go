package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (order_id, amount, tip, payment_method, guest_label, idempotency_key, processed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, amount, tip, payment_method, guest_label, idempotency_key, processed_by, processed_at
`

type CreatePaymentParams struct {
	OrderID        uuid.UUID      `json:"order_id"`
	Amount         pgtype.Numeric `json:"amount"`
	Tip            pgtype.Numeric `json:"tip"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	GuestLabel     pgtype.Text    `json:"guest_label"`
	IdempotencyKey string         `json:"idempotency_key"`
	ProcessedBy    uuid.UUID      `json:"processed_by"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.OrderID,
		arg.Amount,
		arg.Tip,
		arg.PaymentMethod,
		arg.GuestLabel,
		arg.IdempotencyKey,
		arg.ProcessedBy,
	)
	return scanPayment(row)
}

const getPaymentByIdempotencyKey = `-- name: GetPaymentByIdempotencyKey :one
SELECT id, order_id, amount, tip, payment_method, guest_label, idempotency_key, processed_by, processed_at FROM payments
WHERE order_id = $1 AND idempotency_key = $2
`

type GetPaymentByIdempotencyKeyParams struct {
	OrderID        uuid.UUID `json:"order_id"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func (q *Queries) GetPaymentByIdempotencyKey(ctx context.Context, arg GetPaymentByIdempotencyKeyParams) (Payment, error) {
	row := q.db.QueryRow(ctx, getPaymentByIdempotencyKey, arg.OrderID, arg.IdempotencyKey)
	return scanPayment(row)
}

const listPaymentsByOrder = `-- name: ListPaymentsByOrder :many
SELECT id, order_id, amount, tip, payment_method, guest_label, idempotency_key, processed_by, processed_at FROM payments
WHERE order_id = $1
ORDER BY processed_at, id
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
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

func scanPayment(row rowScanner) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Amount,
		&i.Tip,
		&i.PaymentMethod,
		&i.GuestLabel,
		&i.IdempotencyKey,
		&i.ProcessedBy,
		&i.ProcessedAt,
	)
	return i, err
}
