package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kiwari-pos/floor/internal/database"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// FloorStore defines the DB methods the floor services need.
// Satisfied by *database.Queries (and its WithTx variant).
type FloorStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.DiningTable, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error)
	GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.DiningTable, error)
	ListTables(ctx context.Context, arg database.ListTablesParams) ([]database.DiningTable, error)
	UpdateTableState(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error)

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	ListOrdersByTable(ctx context.Context, arg database.ListOrdersByTableParams) ([]database.Order, error)
	UpdateOrderLedger(ctx context.Context, arg database.UpdateOrderLedgerParams) (database.Order, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) error
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	UpdateOrderItemNotes(ctx context.Context, arg database.UpdateOrderItemNotesParams) (database.OrderItem, error)

	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, arg database.GetPaymentByIdempotencyKeyParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// NewFloorStore creates a FloorStore from a DBTX (pool or tx).
type NewFloorStore func(db database.DBTX) FloorStore

// isIdempotencyConflict checks if the error is a unique constraint violation
// on the per-order idempotency key (pgconn error code 23505).
func isIdempotencyConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "payments_order_idempotency_key"
	}
	return false
}
