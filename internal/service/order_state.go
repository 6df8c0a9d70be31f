package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/billing"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/shopspring/decimal"
)

// OrderSnapshot is an order with its items, payments and derived balances.
type OrderSnapshot struct {
	Order          database.Order
	Status         database.OrderStatus
	Items          []database.OrderItem
	Payments       []database.Payment
	Total          decimal.Decimal
	Paid           decimal.Decimal
	Tips           decimal.Decimal
	Remaining      decimal.Decimal
	GuestSubtotals map[string]decimal.Decimal
}

// orderState is the aggregate loaded inside a transaction.
type orderState struct {
	order    database.Order
	items    []database.OrderItem
	payments []database.Payment
}

func loadOrder(ctx context.Context, store FloorStore, outletID, orderID uuid.UUID, lock bool) (*orderState, error) {
	var (
		order database.Order
		err   error
	)
	if lock {
		order, err = store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, OutletID: outletID})
	} else {
		order, err = store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OutletID: outletID})
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	payments, err := store.ListPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return &orderState{order: order, items: items, payments: payments}, nil
}

func (s *orderState) settled() bool {
	return s.order.Status == database.OrderStatusSETTLED
}

func (s *orderState) lines() []billing.Line {
	lines := make([]billing.Line, 0, len(s.items))
	for _, it := range s.items {
		lines = append(lines, billing.Line{
			UnitPrice:  numericToDecimal(it.UnitPrice),
			Quantity:   it.Quantity,
			GuestLabel: it.GuestLabel,
		})
	}
	return lines
}

func (s *orderState) tenders() []billing.Tender {
	tenders := make([]billing.Tender, 0, len(s.payments))
	for _, p := range s.payments {
		tenders = append(tenders, billing.Tender{
			Amount:     numericToDecimal(p.Amount),
			Tip:        numericToDecimal(p.Tip),
			GuestLabel: p.GuestLabel.String,
		})
	}
	return tenders
}

func (s *orderState) findItem(itemID uuid.UUID) (int, bool) {
	for i, it := range s.items {
		if it.ID == itemID {
			return i, true
		}
	}
	return -1, false
}

// status derives the order status from its items and payments. SETTLED is
// sticky: once stored it is never recomputed away.
func (s *orderState) status() database.OrderStatus {
	if s.settled() {
		return database.OrderStatusSETTLED
	}
	total := billing.Total(s.lines())
	paid := billing.Paid(s.tenders())
	if billing.IsSettled(total, paid, len(s.payments)) {
		return database.OrderStatusSETTLED
	}
	if paid.IsPositive() {
		return database.OrderStatusPARTIALLYPAID
	}
	return database.OrderStatusOPEN
}

func (s *orderState) snapshot() *OrderSnapshot {
	lines := s.lines()
	tenders := s.tenders()
	total := billing.Total(lines)
	paid := billing.Paid(tenders)
	return &OrderSnapshot{
		Order:          s.order,
		Status:         s.status(),
		Items:          s.items,
		Payments:       s.payments,
		Total:          total,
		Paid:           paid,
		Tips:           billing.Tips(tenders),
		Remaining:      billing.Remaining(total, paid),
		GuestSubtotals: billing.SubtotalsByGuest(lines),
	}
}

// save writes the derived totals and status back under the version check.
// It reports whether this save moved the order into SETTLED.
func (s *orderState) save(ctx context.Context, store FloorStore) (bool, error) {
	wasSettled := s.settled()
	status := s.status()
	tenders := s.tenders()

	settledAt := s.order.SettledAt
	if status == database.OrderStatusSETTLED && !settledAt.Valid {
		settledAt = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
	}

	order, err := store.UpdateOrderLedger(ctx, database.UpdateOrderLedgerParams{
		ID:          s.order.ID,
		Status:      status,
		Round:       s.order.Round,
		TotalAmount: decimalToNumeric(billing.Total(s.lines())),
		PaidAmount:  decimalToNumeric(billing.Paid(tenders)),
		TipAmount:   decimalToNumeric(billing.Tips(tenders)),
		SettledAt:   settledAt,
		Version:     s.order.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrConcurrentModification
		}
		return false, fmt.Errorf("update order: %w", err)
	}
	s.order = order
	return !wasSettled && status == database.OrderStatusSETTLED, nil
}
