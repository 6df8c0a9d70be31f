package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/auth"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/handler"
	"github.com/kiwari-pos/floor/internal/middleware"
	"github.com/kiwari-pos/floor/internal/service"
	"github.com/shopspring/decimal"
)

const testJWTSecret = "test-secret-for-floor"

var errNotConfigured = errors.New("mock not configured")

// --- Mock TableServicer ---

type mockTableService struct {
	createFn  func(ctx context.Context, outletID uuid.UUID, name string, capacity int32) (database.DiningTable, error)
	getFn     func(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error)
	listFn    func(ctx context.Context, outletID uuid.UUID, status string) ([]database.DiningTable, error)
	occupyFn  func(ctx context.Context, outletID, tableID uuid.UUID, pax int32) (*service.OccupyResult, error)
	transitFn func(action string, outletID, tableID uuid.UUID) (database.DiningTable, error)
}

func (m *mockTableService) Create(ctx context.Context, outletID uuid.UUID, name string, capacity int32) (database.DiningTable, error) {
	if m.createFn != nil {
		return m.createFn(ctx, outletID, name, capacity)
	}
	return database.DiningTable{}, errNotConfigured
}

func (m *mockTableService) Get(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	if m.getFn != nil {
		return m.getFn(ctx, outletID, tableID)
	}
	return database.DiningTable{}, service.ErrTableNotFound
}

func (m *mockTableService) List(ctx context.Context, outletID uuid.UUID, status string) ([]database.DiningTable, error) {
	if m.listFn != nil {
		return m.listFn(ctx, outletID, status)
	}
	return []database.DiningTable{}, nil
}

func (m *mockTableService) Occupy(ctx context.Context, outletID, tableID uuid.UUID, pax int32) (*service.OccupyResult, error) {
	if m.occupyFn != nil {
		return m.occupyFn(ctx, outletID, tableID, pax)
	}
	return nil, errNotConfigured
}

func (m *mockTableService) transit(action string, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	if m.transitFn != nil {
		return m.transitFn(action, outletID, tableID)
	}
	return database.DiningTable{}, service.ErrTableNotFound
}

func (m *mockTableService) Free(_ context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return m.transit(service.ActionFree, outletID, tableID)
}

func (m *mockTableService) MarkClean(_ context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return m.transit(service.ActionMarkClean, outletID, tableID)
}

func (m *mockTableService) Reserve(_ context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return m.transit(service.ActionReserve, outletID, tableID)
}

func (m *mockTableService) CancelReservation(_ context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return m.transit(service.ActionCancelReservation, outletID, tableID)
}

func (m *mockTableService) MarkServed(_ context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return m.transit(service.ActionMarkServed, outletID, tableID)
}

func (m *mockTableService) BeginPayment(_ context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return m.transit(service.ActionBeginPayment, outletID, tableID)
}

// --- Mock LedgerServicer ---

type mockLedger struct {
	openFn     func(ctx context.Context, req service.OpenOrderRequest) (*service.OrderSnapshot, error)
	addItemFn  func(ctx context.Context, req service.AddItemRequest) (*service.OrderSnapshot, error)
	quantityFn func(ctx context.Context, outletID, orderID, itemID uuid.UUID, delta int32) (*service.OrderSnapshot, error)
	notesFn    func(ctx context.Context, outletID, orderID, itemID uuid.UUID, notes string) (*service.OrderSnapshot, error)
	submitFn   func(ctx context.Context, outletID, orderID uuid.UUID) (*service.OrderSnapshot, error)
	snapshotFn func(ctx context.Context, outletID, orderID uuid.UUID) (*service.OrderSnapshot, error)
	listFn     func(ctx context.Context, outletID, tableID uuid.UUID, limit int32) ([]database.Order, error)
}

func (m *mockLedger) Open(ctx context.Context, req service.OpenOrderRequest) (*service.OrderSnapshot, error) {
	if m.openFn != nil {
		return m.openFn(ctx, req)
	}
	return nil, errNotConfigured
}

func (m *mockLedger) AddItem(ctx context.Context, req service.AddItemRequest) (*service.OrderSnapshot, error) {
	if m.addItemFn != nil {
		return m.addItemFn(ctx, req)
	}
	return nil, errNotConfigured
}

func (m *mockLedger) UpdateQuantity(ctx context.Context, outletID, orderID, itemID uuid.UUID, delta int32) (*service.OrderSnapshot, error) {
	if m.quantityFn != nil {
		return m.quantityFn(ctx, outletID, orderID, itemID, delta)
	}
	return nil, errNotConfigured
}

func (m *mockLedger) UpdateNotes(ctx context.Context, outletID, orderID, itemID uuid.UUID, notes string) (*service.OrderSnapshot, error) {
	if m.notesFn != nil {
		return m.notesFn(ctx, outletID, orderID, itemID, notes)
	}
	return nil, errNotConfigured
}

func (m *mockLedger) SubmitRound(ctx context.Context, outletID, orderID uuid.UUID) (*service.OrderSnapshot, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, outletID, orderID)
	}
	return nil, errNotConfigured
}

func (m *mockLedger) Snapshot(ctx context.Context, outletID, orderID uuid.UUID) (*service.OrderSnapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, outletID, orderID)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockLedger) ListByTable(ctx context.Context, outletID, tableID uuid.UUID, limit int32) ([]database.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, outletID, tableID, limit)
	}
	return []database.Order{}, nil
}

// --- Mock PaymentServicer ---

type mockPaymentService struct {
	applyFn func(ctx context.Context, req service.ApplyPaymentRequest) (*service.PaymentResult, error)
	listFn  func(ctx context.Context, outletID, orderID uuid.UUID) ([]database.Payment, error)
	splitFn func(ctx context.Context, outletID, orderID uuid.UUID, mode string, n int) (*service.SplitPlan, error)
}

func (m *mockPaymentService) ApplyPayment(ctx context.Context, req service.ApplyPaymentRequest) (*service.PaymentResult, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, req)
	}
	return nil, errNotConfigured
}

func (m *mockPaymentService) ListPayments(ctx context.Context, outletID, orderID uuid.UUID) ([]database.Payment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, outletID, orderID)
	}
	return []database.Payment{}, nil
}

func (m *mockPaymentService) SplitPlan(ctx context.Context, outletID, orderID uuid.UUID, mode string, n int) (*service.SplitPlan, error) {
	if m.splitFn != nil {
		return m.splitFn(ctx, outletID, orderID, mode, n)
	}
	return nil, errNotConfigured
}

// --- Router and request helpers ---

type floorMocks struct {
	tables   *mockTableService
	ledger   *mockLedger
	payments *mockPaymentService
}

func newFloorMocks() *floorMocks {
	return &floorMocks{
		tables:   &mockTableService{},
		ledger:   &mockLedger{},
		payments: &mockPaymentService{},
	}
}

// router mounts the handlers the same way the server does.
func (m *floorMocks) router() *chi.Mux {
	th := handler.NewTableHandler(m.tables)
	oh := handler.NewOrderHandler(m.ledger)
	ph := handler.NewPaymentHandler(m.payments)

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/outlets/{oid}", func(r chi.Router) {
		r.Use(middleware.RequireOutlet)
		r.Route("/tables", func(r chi.Router) {
			th.RegisterRoutes(r)
			oh.RegisterTableRoutes(r)
		})
		r.Route("/orders", func(r chi.Router) {
			oh.RegisterRoutes(r)
			ph.RegisterRoutes(r)
		})
	})
	return r
}

func testClaims(outletID uuid.UUID, role string) *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), OutletID: outletID, Role: role}
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	return doAuthRequestWithHeaders(t, router, method, path, body, claims, nil)
}

func doAuthRequestWithHeaders(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.OutletID, claims.Role, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rr.Body.String())
	}
	return resp
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d (body=%s)", rr.Code, want, rr.Body.String())
	}
}

// --- Fixtures ---

func testNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		panic(err)
	}
	return n
}

func testTable(outletID uuid.UUID, status database.TableStatus) database.DiningTable {
	return database.DiningTable{
		ID:        uuid.New(),
		OutletID:  outletID,
		Name:      "T1",
		Capacity:  4,
		Status:    status,
		Version:   1,
		UpdatedAt: time.Now(),
	}
}

// testSnapshot is an open order with two 25.00 items for guest A.
func testSnapshot(outletID, tableID, orderID uuid.UUID) *service.OrderSnapshot {
	total := decimal.RequireFromString("50.00")
	return &service.OrderSnapshot{
		Order: database.Order{
			ID:          orderID,
			OutletID:    outletID,
			TableID:     tableID,
			Status:      database.OrderStatusOPEN,
			Round:       1,
			TotalAmount: testNumeric("50.00"),
			PaidAmount:  testNumeric("0.00"),
			TipAmount:   testNumeric("0.00"),
			Version:     2,
			CreatedAt:   time.Now(),
		},
		Status: database.OrderStatusOPEN,
		Items: []database.OrderItem{{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   uuid.New(),
			ProductName: "Nasi Goreng",
			UnitPrice:   testNumeric("25.00"),
			Quantity:    2,
			GuestLabel:  "A",
			Round:       1,
		}},
		Payments:       []database.Payment{},
		Total:          total,
		Paid:           decimal.Zero,
		Tips:           decimal.Zero,
		Remaining:      total,
		GuestSubtotals: map[string]decimal.Decimal{"A": total},
	}
}
