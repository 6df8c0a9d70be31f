package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/floor/internal/auth"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/middleware"
	"github.com/kiwari-pos/floor/internal/service"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	Create(ctx context.Context, outletID uuid.UUID, name string, capacity int32) (database.DiningTable, error)
	Get(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	List(ctx context.Context, outletID uuid.UUID, status string) ([]database.DiningTable, error)
	Occupy(ctx context.Context, outletID, tableID uuid.UUID, pax int32) (*service.OccupyResult, error)
	Free(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	MarkClean(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	Reserve(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	CancelReservation(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	MarkServed(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	BeginPayment(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
}

// TableHandler handles floor table endpoints.
type TableHandler struct {
	svc TableServicer
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc TableServicer) *TableHandler {
	return &TableHandler{svc: svc}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.With(middleware.RequireRole(auth.RoleOwner, auth.RoleManager)).Post("/", h.Create)
	r.Get("/{tid}", h.Get)
	r.Post("/{tid}/occupy", h.Occupy)
	r.Post("/{tid}/served", h.transition("mark served", h.svc.MarkServed))
	r.Post("/{tid}/paying", h.transition("begin payment", h.svc.BeginPayment))
	r.Post("/{tid}/free", h.transition("free table", h.svc.Free))
	r.Post("/{tid}/clean", h.transition("mark clean", h.svc.MarkClean))
	r.Post("/{tid}/reserve", h.transition("reserve table", h.svc.Reserve))
	r.Post("/{tid}/cancel-reservation", h.transition("cancel reservation", h.svc.CancelReservation))
}

// --- Request types ---

type createTableRequest struct {
	Name     string `json:"name"`
	Capacity int32  `json:"capacity"`
}

type occupyRequest struct {
	Pax int32 `json:"pax"`
}

// --- Handlers ---

// Create handles POST /outlets/{oid}/tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.svc.Create(r.Context(), outletID, req.Name, req.Capacity)
	if err != nil {
		writeServiceError(w, "create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// List handles GET /outlets/{oid}/tables, optionally filtered by ?status=.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}

	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	tables, err := h.svc.List(r.Context(), outletID, status)
	if err != nil {
		writeServiceError(w, "list tables", err)
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": resp})
}

// Get handles GET /outlets/{oid}/tables/{tid}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tableID, ok := urlUUID(w, r, "tid", "table ID")
	if !ok {
		return
	}

	table, err := h.svc.Get(r.Context(), outletID, tableID)
	if err != nil {
		writeServiceError(w, "get table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Occupy handles POST /outlets/{oid}/tables/{tid}/occupy.
func (h *TableHandler) Occupy(w http.ResponseWriter, r *http.Request) {
	outletID, ok := urlUUID(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tableID, ok := urlUUID(w, r, "tid", "table ID")
	if !ok {
		return
	}

	var req occupyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Occupy(r.Context(), outletID, tableID, req.Pax)
	if err != nil {
		writeServiceError(w, "occupy table", err)
		return
	}
	writeJSON(w, http.StatusOK, occupyResponse{
		tableResponse: toTableResponse(result.Table),
		OverCapacity:  result.OverCapacity,
	})
}

type tableAction func(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)

// transition builds a handler for the body-less lifecycle endpoints.
func (h *TableHandler) transition(op string, action tableAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outletID, ok := urlUUID(w, r, "oid", "outlet ID")
		if !ok {
			return
		}
		tableID, ok := urlUUID(w, r, "tid", "table ID")
		if !ok {
			return
		}

		table, err := action(r.Context(), outletID, tableID)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, toTableResponse(table))
	}
}
