package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/floor/internal/auth"
	"github.com/kiwari-pos/floor/internal/billing"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/middleware"
	"github.com/kiwari-pos/floor/internal/service"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader carries the client's retry key for a payment.
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	ApplyPayment(ctx context.Context, req service.ApplyPaymentRequest) (*service.PaymentResult, error)
	ListPayments(ctx context.Context, outletID, orderID uuid.UUID) ([]database.Payment, error)
	SplitPlan(ctx context.Context, outletID, orderID uuid.UUID, mode string, n int) (*service.SplitPlan, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/orders
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(auth.RoleOwner, auth.RoleManager, auth.RoleCashier)).
		Post("/{id}/payments", h.Apply)
	r.Get("/{id}/payments", h.List)
	r.Get("/{id}/split", h.Split)
}

// --- Request / Response types ---

type applyPaymentRequest struct {
	Amount         string `json:"amount"`
	Tip            string `json:"tip"`
	PaymentMethod  string `json:"payment_method"`
	GuestLabel     string `json:"guest_label"`
	IdempotencyKey string `json:"idempotency_key"`
}

type applyPaymentResponse struct {
	Payment     paymentResponse `json:"payment"`
	Order       orderResponse   `json:"order"`
	IsFullyPaid bool            `json:"is_fully_paid"`
	Replayed    bool            `json:"replayed"`
}

type splitPlanResponse struct {
	Mode      string            `json:"mode"`
	Remaining string            `json:"remaining"`
	Shares    []string          `json:"shares,omitempty"`
	Guests    map[string]string `json:"guests,omitempty"`
}

// --- Handlers ---

// Apply handles POST /outlets/{oid}/orders/{id}/payments.
// A retried request with a known idempotency key answers 200 with the
// original payment and replayed=true; a new payment answers 201.
func (h *PaymentHandler) Apply(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req applyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}
	tip := decimal.Zero
	if strings.TrimSpace(req.Tip) != "" {
		tip, err = decimal.NewFromString(strings.TrimSpace(req.Tip))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tip"})
			return
		}
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	result, err := h.svc.ApplyPayment(r.Context(), service.ApplyPaymentRequest{
		OutletID:       outletID,
		OrderID:        orderID,
		Amount:         amount,
		Tip:            tip,
		Method:         strings.ToUpper(strings.TrimSpace(req.PaymentMethod)),
		GuestLabel:     req.GuestLabel,
		IdempotencyKey: key,
		ProcessedBy:    claims.UserID,
	})
	status := http.StatusCreated
	if errors.Is(err, service.ErrDuplicatePayment) && result != nil {
		status = http.StatusOK
	} else if err != nil {
		writeServiceError(w, fmt.Sprintf("apply payment to order %s", orderID), err)
		return
	}

	writeJSON(w, status, applyPaymentResponse{
		Payment:     toPaymentResponse(result.Payment),
		Order:       toOrderResponse(result.Snapshot),
		IsFullyPaid: result.IsFullyPaid,
		Replayed:    result.Replayed,
	})
}

// List handles GET /outlets/{oid}/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), outletID, orderID)
	if err != nil {
		writeServiceError(w, "list payments", err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": resp})
}

// Split handles GET /outlets/{oid}/orders/{id}/split?mode=even&n=3 and
// ?mode=guest.
func (h *PaymentHandler) Split(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = service.SplitEven
	}
	n := 0
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed > billing.MaxSplitWays {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid n"})
			return
		}
		n = parsed
	}

	plan, err := h.svc.SplitPlan(r.Context(), outletID, orderID, mode, n)
	if err != nil {
		writeServiceError(w, "split plan", err)
		return
	}

	resp := splitPlanResponse{Mode: plan.Mode, Remaining: money(plan.Remaining)}
	for _, s := range plan.Shares {
		resp.Shares = append(resp.Shares, money(s))
	}
	if plan.Guests != nil {
		resp.Guests = make(map[string]string, len(plan.Guests))
		for label, amount := range plan.Guests {
			resp.Guests[label] = money(amount)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
