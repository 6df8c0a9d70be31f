package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/middleware"
	"github.com/kiwari-pos/floor/internal/service"
)

// LedgerServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderLedger; narrow interface for testability.
type LedgerServicer interface {
	Open(ctx context.Context, req service.OpenOrderRequest) (*service.OrderSnapshot, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.OrderSnapshot, error)
	UpdateQuantity(ctx context.Context, outletID, orderID, itemID uuid.UUID, delta int32) (*service.OrderSnapshot, error)
	UpdateNotes(ctx context.Context, outletID, orderID, itemID uuid.UUID, notes string) (*service.OrderSnapshot, error)
	SubmitRound(ctx context.Context, outletID, orderID uuid.UUID) (*service.OrderSnapshot, error)
	Snapshot(ctx context.Context, outletID, orderID uuid.UUID) (*service.OrderSnapshot, error)
	ListByTable(ctx context.Context, outletID, tableID uuid.UUID, limit int32) ([]database.Order, error)
}

// OrderHandler handles order ledger endpoints.
type OrderHandler struct {
	ledger LedgerServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(ledger LedgerServicer) *OrderHandler {
	return &OrderHandler{ledger: ledger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{itemID}/quantity", h.UpdateQuantity)
	r.Patch("/{id}/items/{itemID}/notes", h.UpdateNotes)
	r.Post("/{id}/submit", h.SubmitRound)
}

// RegisterTableRoutes registers the per-table order endpoints.
// Expected to be mounted inside /outlets/{oid}/tables.
func (h *OrderHandler) RegisterTableRoutes(r chi.Router) {
	r.Post("/{tid}/orders", h.Open)
	r.Get("/{tid}/orders", h.ListByTable)
}

// --- Request types ---

type addItemRequest struct {
	ProductID  string `json:"product_id"`
	Quantity   int32  `json:"quantity"`
	GuestLabel string `json:"guest_label"`
	Notes      string `json:"notes"`
}

type updateQuantityRequest struct {
	Delta int32 `json:"delta"`
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

// --- Handlers ---

// Open handles POST /outlets/{oid}/tables/{tid}/orders.
func (h *OrderHandler) Open(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tableID, ok := urlUUID(w, r, "tid", "table ID")
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	snap, err := h.ledger.Open(r.Context(), service.OpenOrderRequest{
		OutletID:  outletID,
		TableID:   tableID,
		CreatedBy: claims.UserID,
	})
	if err != nil {
		writeServiceError(w, "open order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(snap))
}

// ListByTable handles GET /outlets/{oid}/tables/{tid}/orders, newest first.
func (h *OrderHandler) ListByTable(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tableID, ok := urlUUID(w, r, "tid", "table ID")
	if !ok {
		return
	}

	var limit int32
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = int32(n)
	}

	orders, err := h.ledger.ListByTable(r.Context(), outletID, tableID, limit)
	if err != nil {
		writeServiceError(w, "list table orders", err)
		return
	}

	resp := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderSummaryResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// Get handles GET /outlets/{oid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	snap, err := h.ledger.Snapshot(r.Context(), outletID, orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(snap))
}

// AddItem handles POST /outlets/{oid}/orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	snap, err := h.ledger.AddItem(r.Context(), service.AddItemRequest{
		OutletID:   outletID,
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   req.Quantity,
		GuestLabel: req.GuestLabel,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, fmt.Sprintf("add item to order %s", orderID), err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(snap))
}

// UpdateQuantity handles PATCH /outlets/{oid}/orders/{id}/items/{itemID}/quantity.
// The body carries a signed delta; reaching zero removes the item.
func (h *OrderHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "itemID", "item ID")
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	snap, err := h.ledger.UpdateQuantity(r.Context(), outletID, orderID, itemID, req.Delta)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("update quantity on order %s", orderID), err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(snap))
}

// UpdateNotes handles PATCH /outlets/{oid}/orders/{id}/items/{itemID}/notes.
func (h *OrderHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "itemID", "item ID")
	if !ok {
		return
	}

	var req updateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	snap, err := h.ledger.UpdateNotes(r.Context(), outletID, orderID, itemID, req.Notes)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("update notes on order %s", orderID), err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(snap))
}

// SubmitRound handles POST /outlets/{oid}/orders/{id}/submit.
func (h *OrderHandler) SubmitRound(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}

	snap, err := h.ledger.SubmitRound(r.Context(), outletID, orderID)
	if err != nil {
		writeServiceError(w, fmt.Sprintf("submit round on order %s", orderID), err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(snap))
}
