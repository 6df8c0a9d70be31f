package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/floor/internal/billing"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/shopspring/decimal"
)

const maxPaymentAttempts = 2

// Split plan modes.
const (
	SplitEven  = "even"
	SplitGuest = "guest"
)

// ReplayCache remembers recorded payments by idempotency key so retries can
// be answered without touching the order. The payments table stays the
// source of truth.
type ReplayCache interface {
	Lookup(ctx context.Context, orderID uuid.UUID, key string) (database.Payment, bool, error)
	Remember(ctx context.Context, p database.Payment) error
}

// ApplyPaymentRequest is the validated input for recording a payment.
type ApplyPaymentRequest struct {
	OutletID       uuid.UUID
	OrderID        uuid.UUID
	Amount         decimal.Decimal
	Tip            decimal.Decimal
	Method         string
	GuestLabel     string
	IdempotencyKey string
	ProcessedBy    uuid.UUID
}

// PaymentResult is the outcome of ApplyPayment. Replayed is set when the
// payment had already been recorded under the same idempotency key.
type PaymentResult struct {
	Snapshot    *OrderSnapshot
	Payment     database.Payment
	IsFullyPaid bool
	Replayed    bool
}

// SplitPlan is a suggested way to pay the remaining balance.
type SplitPlan struct {
	Mode      string
	Remaining decimal.Decimal
	Shares    []decimal.Decimal
	Guests    map[string]decimal.Decimal
}

// PaymentService records payments against orders.
type PaymentService struct {
	pool     TxBeginner
	newStore NewFloorStore
	tables   *TableService
	cache    ReplayCache
	notifier Notifier
}

// NewPaymentService creates a new PaymentService. cache may be nil.
func NewPaymentService(pool TxBeginner, newStore NewFloorStore, tables *TableService, cache ReplayCache, notifier Notifier) *PaymentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PaymentService{pool: pool, newStore: newStore, tables: tables, cache: cache, notifier: notifier}
}

// ApplyPayment records a payment. When the idempotency key was already used
// on this order it returns the original result together with
// ErrDuplicatePayment and changes nothing.
func (s *PaymentService) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResult, error) {
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.IdempotencyKey == "" || tooLong(req.IdempotencyKey, maxIdempotencyKeyLen) {
		return nil, ErrIdempotencyKeyRequired
	}
	if tooLong(strings.TrimSpace(req.GuestLabel), maxGuestLabelLen) {
		return nil, ErrInvalidGuestLabel
	}

	if s.cache != nil {
		p, ok, err := s.cache.Lookup(ctx, req.OrderID, req.IdempotencyKey)
		if err != nil {
			log.Printf("WARN: replay cache lookup for order %s: %v", req.OrderID, err)
		} else if ok {
			return s.replay(ctx, req.OutletID, p)
		}
	}

	// A concurrent insert with the same key loses on the unique index; the
	// retry then finds the winner's payment under the order lock.
	var lastErr error
	for attempt := 0; attempt < maxPaymentAttempts; attempt++ {
		result, settledNow, err := s.applyTx(ctx, req)
		if err == nil {
			s.afterCommit(ctx, result, settledNow)
			return result, nil
		}
		if isIdempotencyConflict(err) {
			lastErr = ErrConcurrentModification
			continue
		}
		return result, err
	}
	return nil, lastErr
}

func (s *PaymentService) applyTx(ctx context.Context, req ApplyPaymentRequest) (*PaymentResult, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.newStore(tx)

	st, err := loadOrder(ctx, store, req.OutletID, req.OrderID, true)
	if err != nil {
		return nil, false, err
	}

	existing, err := store.GetPaymentByIdempotencyKey(ctx, database.GetPaymentByIdempotencyKeyParams{
		OrderID:        st.order.ID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err == nil {
		snap := st.snapshot()
		return &PaymentResult{
			Snapshot:    snap,
			Payment:     existing,
			IsFullyPaid: snap.Status == database.OrderStatusSETTLED,
			Replayed:    true,
		}, false, ErrDuplicatePayment
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("get payment by key: %w", err)
	}

	if st.settled() {
		return nil, false, ErrOrderAlreadySettled
	}
	if err := validateTender(st, req); err != nil {
		return nil, false, err
	}

	var guest string
	if g := strings.TrimSpace(req.GuestLabel); g != "" {
		guest = billing.GuestLabel(g)
	}
	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:        st.order.ID,
		Amount:         decimalToNumeric(req.Amount),
		Tip:            decimalToNumeric(req.Tip),
		PaymentMethod:  database.PaymentMethod(req.Method),
		GuestLabel:     optionalText(guest),
		IdempotencyKey: req.IdempotencyKey,
		ProcessedBy:    req.ProcessedBy,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create payment: %w", err)
	}
	st.payments = append(st.payments, payment)

	settledNow, err := st.save(ctx, store)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	snap := st.snapshot()
	return &PaymentResult{
		Snapshot:    snap,
		Payment:     payment,
		IsFullyPaid: snap.Status == database.OrderStatusSETTLED,
	}, settledNow, nil
}

func validateTender(st *orderState, req ApplyPaymentRequest) error {
	if !database.PaymentMethod(req.Method).Valid() {
		return ErrInvalidPaymentMethod
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(billing.MinorUnitPlaces)) {
		return ErrInvalidAmount
	}
	if req.Tip.IsNegative() || !req.Tip.Equal(req.Tip.Round(billing.MinorUnitPlaces)) {
		return ErrInvalidAmount
	}
	remaining := billing.Remaining(billing.Total(st.lines()), billing.Paid(st.tenders()))
	if req.Amount.GreaterThan(remaining.Add(billing.Epsilon)) {
		return ErrInvalidAmount
	}
	return nil
}

// afterCommit runs the side effects of a recorded payment. None of them can
// undo the payment; failures are logged.
func (s *PaymentService) afterCommit(ctx context.Context, result *PaymentResult, settledNow bool) {
	snap := result.Snapshot
	emit(ctx, s.notifier, Event{
		Type:      EventPaymentApplied,
		OutletID:  snap.Order.OutletID,
		TableID:   snap.Order.TableID,
		OrderID:   snap.Order.ID,
		Status:    string(snap.Status),
		Amount:    numericToDecimal(result.Payment.Amount).StringFixed(billing.MinorUnitPlaces),
		Remaining: snap.Remaining.StringFixed(billing.MinorUnitPlaces),
	})
	if settledNow {
		signalSettled(ctx, s.tables, s.notifier, snap)
	}
	if s.cache != nil {
		if err := s.cache.Remember(ctx, result.Payment); err != nil {
			log.Printf("WARN: replay cache store for payment %s: %v", result.Payment.ID, err)
		}
	}
}

// replay answers a retried request from the cached payment and the current
// state of its order.
func (s *PaymentService) replay(ctx context.Context, outletID uuid.UUID, p database.Payment) (*PaymentResult, error) {
	snap, err := s.snapshot(ctx, outletID, p.OrderID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{
		Snapshot:    snap,
		Payment:     p,
		IsFullyPaid: snap.Status == database.OrderStatusSETTLED,
		Replayed:    true,
	}, ErrDuplicatePayment
}

// ListPayments returns the payments recorded on an order, oldest first.
func (s *PaymentService) ListPayments(ctx context.Context, outletID, orderID uuid.UUID) ([]database.Payment, error) {
	snap, err := s.snapshot(ctx, outletID, orderID)
	if err != nil {
		return nil, err
	}
	return snap.Payments, nil
}

// SplitPlan suggests how to pay the remaining balance: evenly across n
// payers, or per guest label.
func (s *PaymentService) SplitPlan(ctx context.Context, outletID, orderID uuid.UUID, mode string, n int) (*SplitPlan, error) {
	if mode != SplitEven && mode != SplitGuest {
		return nil, ErrInvalidSplit
	}
	if mode == SplitEven && (n < 1 || n > billing.MaxSplitWays) {
		return nil, ErrInvalidSplit
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st, err := loadOrder(ctx, s.newStore(tx), outletID, orderID, false)
	if err != nil {
		return nil, err
	}
	snap := st.snapshot()

	plan := &SplitPlan{Mode: mode, Remaining: snap.Remaining}
	if mode == SplitGuest {
		plan.Guests = billing.GuestBalances(st.lines(), st.tenders())
		return plan, nil
	}
	shares, err := billing.EvenSplit(snap.Remaining, n)
	if err != nil {
		return nil, ErrInvalidSplit
	}
	plan.Shares = shares
	return plan, nil
}

func (s *PaymentService) snapshot(ctx context.Context, outletID, orderID uuid.UUID) (*OrderSnapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st, err := loadOrder(ctx, s.newStore(tx), outletID, orderID, false)
	if err != nil {
		return nil, err
	}
	return st.snapshot(), nil
}
