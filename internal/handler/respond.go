package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/billing"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/service"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeServiceError maps service errors to HTTP status codes. Anything
// unrecognised is logged with op and reported as a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isNotFoundError(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrItemNotFound) ||
		errors.Is(err, service.ErrProductNotFound)
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidQuantityDelta) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrIdempotencyKeyRequired) ||
		errors.Is(err, service.ErrInvalidPax) ||
		errors.Is(err, service.ErrInvalidCapacity) ||
		errors.Is(err, service.ErrInvalidTableName) ||
		errors.Is(err, service.ErrInvalidStatusFilter) ||
		errors.Is(err, service.ErrInvalidGuestLabel) ||
		errors.Is(err, service.ErrInvalidSplit)
}

func isConflictError(err error) bool {
	return errors.Is(err, service.ErrInvalidStateTransition) ||
		errors.Is(err, service.ErrTableAlreadyHasOpenOrder) ||
		errors.Is(err, service.ErrOrderNotMutable) ||
		errors.Is(err, service.ErrOrderAlreadySettled) ||
		errors.Is(err, service.ErrTotalBelowPaid) ||
		errors.Is(err, service.ErrNothingToSubmit) ||
		errors.Is(err, service.ErrConcurrentModification)
}

// urlUUID parses a chi URL parameter. On failure it writes a 400 naming
// what and returns false.
func urlUUID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + what})
		return uuid.Nil, false
	}
	return id, true
}

func money(d decimal.Decimal) string {
	return d.StringFixed(billing.MinorUnitPlaces)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return money(d)
}

// --- Response types ---

type tableResponse struct {
	ID             uuid.UUID  `json:"id"`
	OutletID       uuid.UUID  `json:"outlet_id"`
	Name           string     `json:"name"`
	Capacity       int32      `json:"capacity"`
	Status         string     `json:"status"`
	CurrentPax     *int32     `json:"current_pax"`
	CurrentOrderID *uuid.UUID `json:"current_order_id"`
	Version        int32      `json:"version"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type occupyResponse struct {
	tableResponse
	OverCapacity bool `json:"over_capacity"`
}

type orderSummaryResponse struct {
	ID        uuid.UUID  `json:"id"`
	OutletID  uuid.UUID  `json:"outlet_id"`
	TableID   uuid.UUID  `json:"table_id"`
	Status    string     `json:"status"`
	Round     int32      `json:"round"`
	Total     string     `json:"total"`
	Paid      string     `json:"paid"`
	Tips      string     `json:"tips"`
	Version   int32      `json:"version"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int32     `json:"quantity"`
	Subtotal    string    `json:"subtotal"`
	GuestLabel  string    `json:"guest_label"`
	Notes       *string   `json:"notes"`
	Round       int32     `json:"round"`
}

type paymentResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	Amount         string    `json:"amount"`
	Tip            string    `json:"tip"`
	PaymentMethod  string    `json:"payment_method"`
	GuestLabel     *string   `json:"guest_label"`
	IdempotencyKey string    `json:"idempotency_key"`
	ProcessedBy    uuid.UUID `json:"processed_by"`
	ProcessedAt    time.Time `json:"processed_at"`
}

type orderResponse struct {
	orderSummaryResponse
	Remaining      string              `json:"remaining"`
	Items          []orderItemResponse `json:"items"`
	Payments       []paymentResponse   `json:"payments"`
	GuestSubtotals map[string]string   `json:"guest_subtotals"`
}

func toTableResponse(t database.DiningTable) tableResponse {
	resp := tableResponse{
		ID:        t.ID,
		OutletID:  t.OutletID,
		Name:      t.Name,
		Capacity:  t.Capacity,
		Status:    string(t.Status),
		Version:   t.Version,
		UpdatedAt: t.UpdatedAt,
	}
	if t.CurrentPax.Valid {
		pax := t.CurrentPax.Int32
		resp.CurrentPax = &pax
	}
	if t.CurrentOrderID.Valid {
		id := uuid.UUID(t.CurrentOrderID.Bytes)
		resp.CurrentOrderID = &id
	}
	return resp
}

func toOrderSummaryResponse(o database.Order) orderSummaryResponse {
	resp := orderSummaryResponse{
		ID:        o.ID,
		OutletID:  o.OutletID,
		TableID:   o.TableID,
		Status:    string(o.Status),
		Round:     o.Round,
		Total:     numericToString(o.TotalAmount),
		Paid:      numericToString(o.PaidAmount),
		Tips:      numericToString(o.TipAmount),
		Version:   o.Version,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
	}
	if o.SettledAt.Valid {
		t := o.SettledAt.Time
		resp.SettledAt = &t
	}
	return resp
}

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Amount:         numericToString(p.Amount),
		Tip:            numericToString(p.Tip),
		PaymentMethod:  string(p.PaymentMethod),
		IdempotencyKey: p.IdempotencyKey,
		ProcessedBy:    p.ProcessedBy,
		ProcessedAt:    p.ProcessedAt,
	}
	if p.GuestLabel.Valid {
		g := p.GuestLabel.String
		resp.GuestLabel = &g
	}
	return resp
}

// toOrderResponse renders a snapshot. Totals come from the snapshot, not the
// stored columns, so the response always matches the items shown.
func toOrderResponse(s *service.OrderSnapshot) orderResponse {
	resp := orderResponse{
		orderSummaryResponse: toOrderSummaryResponse(s.Order),
		Remaining:            money(s.Remaining),
		Items:                make([]orderItemResponse, len(s.Items)),
		Payments:             make([]paymentResponse, len(s.Payments)),
		GuestSubtotals:       make(map[string]string, len(s.GuestSubtotals)),
	}
	resp.Status = string(s.Status)
	resp.Total = money(s.Total)
	resp.Paid = money(s.Paid)
	resp.Tips = money(s.Tips)

	for i, it := range s.Items {
		line := billing.Line{UnitPrice: decimalFromNumeric(it.UnitPrice), Quantity: it.Quantity}
		item := orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   numericToString(it.UnitPrice),
			Quantity:    it.Quantity,
			Subtotal:    money(line.Subtotal()),
			GuestLabel:  it.GuestLabel,
			Round:       it.Round,
		}
		if it.Notes.Valid {
			n := it.Notes.String
			item.Notes = &n
		}
		resp.Items[i] = item
	}
	for i, p := range s.Payments {
		resp.Payments[i] = toPaymentResponse(p)
	}
	for label, amount := range s.GuestSubtotals {
		resp.GuestSubtotals[label] = money(amount)
	}
	return resp
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	d, err := decimal.NewFromString(numericToString(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}
