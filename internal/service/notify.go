package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted after a state change has been committed.
const (
	EventTableStatusChanged = "table.status_changed"
	EventOrderOpened        = "order.opened"
	EventOrderUpdated       = "order.updated"
	EventRoundSubmitted     = "order.round_submitted"
	EventPaymentApplied     = "payment.applied"
	EventOrderSettled       = "order.settled"
)

// Event is a floor notification. Status carries the new table or order status.
type Event struct {
	Type           string    `json:"type"`
	OutletID       uuid.UUID `json:"outlet_id"`
	TableID        uuid.UUID `json:"table_id"`
	OrderID        uuid.UUID `json:"order_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Amount         string    `json:"amount,omitempty"`
	Remaining      string    `json:"remaining,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier delivers events. Emit is fire-and-forget; implementations log
// their own delivery failures.
type Notifier interface {
	Emit(ctx context.Context, e Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Emit(context.Context, Event) {}

func emit(ctx context.Context, n Notifier, e Event) {
	if n == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	n.Emit(ctx, e)
}
