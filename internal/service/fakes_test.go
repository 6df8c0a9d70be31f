package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// memDB is an in-memory FloorStore. memPool serializes transactions with a
// single mutex, which stands in for the row locks, and restores the
// pre-transaction state on rollback.
type memDB struct {
	tables   map[uuid.UUID]database.DiningTable
	orders   map[uuid.UUID]database.Order
	items    []database.OrderItem
	payments []database.Payment
	products map[uuid.UUID]database.GetProductForOrderRow

	createPaymentErr error
	clock            time.Time
}

func newMemDB() *memDB {
	return &memDB{
		tables:   map[uuid.UUID]database.DiningTable{},
		orders:   map[uuid.UUID]database.Order{},
		products: map[uuid.UUID]database.GetProductForOrderRow{},
		clock:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

type memState struct {
	tables   map[uuid.UUID]database.DiningTable
	orders   map[uuid.UUID]database.Order
	items    []database.OrderItem
	payments []database.Payment
}

func (m *memDB) save() memState {
	s := memState{
		tables:   make(map[uuid.UUID]database.DiningTable, len(m.tables)),
		orders:   make(map[uuid.UUID]database.Order, len(m.orders)),
		items:    append([]database.OrderItem(nil), m.items...),
		payments: append([]database.Payment(nil), m.payments...),
	}
	for k, v := range m.tables {
		s.tables[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *memDB) restore(s memState) {
	m.tables, m.orders, m.items, m.payments = s.tables, s.orders, s.items, s.payments
}

func (m *memDB) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memDB) addProduct(outletID uuid.UUID, name, price string) uuid.UUID {
	id := uuid.New()
	m.products[id] = database.GetProductForOrderRow{
		ID:        id,
		OutletID:  outletID,
		Name:      name,
		BasePrice: decimalToNumeric(decimal.RequireFromString(price)),
	}
	return id
}

func (m *memDB) addTable(outletID uuid.UUID, name string, capacity int32) database.DiningTable {
	t := database.DiningTable{
		ID:        uuid.New(),
		OutletID:  outletID,
		Name:      name,
		Capacity:  capacity,
		Status:    database.TableStatusAVAILABLE,
		Version:   1,
		CreatedAt: m.now(),
	}
	t.UpdatedAt = t.CreatedAt
	m.tables[t.ID] = t
	return t
}

func (m *memDB) GetProductForOrder(_ context.Context, arg database.GetProductForOrderParams) (database.GetProductForOrderRow, error) {
	p, ok := m.products[arg.ID]
	if !ok || p.OutletID != arg.OutletID {
		return database.GetProductForOrderRow{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memDB) CreateTable(_ context.Context, arg database.CreateTableParams) (database.DiningTable, error) {
	t := m.addTable(arg.OutletID, arg.Name, arg.Capacity)
	return t, nil
}

func (m *memDB) GetTable(_ context.Context, arg database.GetTableParams) (database.DiningTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || t.OutletID != arg.OutletID {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memDB) GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.DiningTable, error) {
	return m.GetTable(ctx, database.GetTableParams{ID: arg.ID, OutletID: arg.OutletID})
}

func (m *memDB) ListTables(_ context.Context, arg database.ListTablesParams) ([]database.DiningTable, error) {
	out := []database.DiningTable{}
	for _, t := range m.tables {
		if t.OutletID != arg.OutletID {
			continue
		}
		if arg.Status.Valid && string(t.Status) != arg.Status.String {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memDB) UpdateTableState(_ context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || t.Version != arg.Version {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.CurrentPax = arg.CurrentPax
	t.CurrentOrderID = arg.CurrentOrderID
	t.Version++
	t.UpdatedAt = m.now()
	m.tables[t.ID] = t
	return t, nil
}

func (m *memDB) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	o := database.Order{
		ID:          uuid.New(),
		OutletID:    arg.OutletID,
		TableID:     arg.TableID,
		Status:      database.OrderStatusOPEN,
		Round:       1,
		TotalAmount: decimalToNumeric(decimal.Zero),
		PaidAmount:  decimalToNumeric(decimal.Zero),
		TipAmount:   decimalToNumeric(decimal.Zero),
		Version:     1,
		CreatedBy:   arg.CreatedBy,
		CreatedAt:   m.now(),
	}
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = o
	return o, nil
}

func (m *memDB) GetOrder(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.OutletID != arg.OutletID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memDB) GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
	return m.GetOrder(ctx, database.GetOrderParams{ID: arg.ID, OutletID: arg.OutletID})
}

func (m *memDB) ListOrdersByTable(_ context.Context, arg database.ListOrdersByTableParams) ([]database.Order, error) {
	out := []database.Order{}
	for _, o := range m.orders {
		if o.TableID == arg.TableID && o.OutletID == arg.OutletID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memDB) UpdateOrderLedger(_ context.Context, arg database.UpdateOrderLedgerParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.Round = arg.Round
	o.TotalAmount = arg.TotalAmount
	o.PaidAmount = arg.PaidAmount
	o.TipAmount = arg.TipAmount
	o.SettledAt = arg.SettledAt
	o.Version++
	o.UpdatedAt = m.now()
	m.orders[o.ID] = o
	return o, nil
}

func (m *memDB) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	it := database.OrderItem{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		ProductID:   arg.ProductID,
		ProductName: arg.ProductName,
		UnitPrice:   arg.UnitPrice,
		Quantity:    arg.Quantity,
		GuestLabel:  arg.GuestLabel,
		Notes:       arg.Notes,
		Round:       arg.Round,
		CreatedAt:   m.now(),
	}
	m.items = append(m.items, it)
	return it, nil
}

func (m *memDB) DeleteOrderItem(_ context.Context, arg database.DeleteOrderItemParams) error {
	for i, it := range m.items {
		if it.ID == arg.ID && it.OrderID == arg.OrderID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memDB) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	out := []database.OrderItem{}
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memDB) UpdateOrderItemQuantity(_ context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error) {
	for i, it := range m.items {
		if it.ID == arg.ID && it.OrderID == arg.OrderID {
			m.items[i].Quantity = arg.Quantity
			return m.items[i], nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *memDB) UpdateOrderItemNotes(_ context.Context, arg database.UpdateOrderItemNotesParams) (database.OrderItem, error) {
	for i, it := range m.items {
		if it.ID == arg.ID && it.OrderID == arg.OrderID {
			m.items[i].Notes = arg.Notes
			return m.items[i], nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *memDB) CreatePayment(_ context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	if m.createPaymentErr != nil {
		err := m.createPaymentErr
		m.createPaymentErr = nil
		return database.Payment{}, err
	}
	for _, p := range m.payments {
		if p.OrderID == arg.OrderID && p.IdempotencyKey == arg.IdempotencyKey {
			return database.Payment{}, &pgconn.PgError{Code: "23505", ConstraintName: "payments_order_idempotency_key"}
		}
	}
	p := database.Payment{
		ID:             uuid.New(),
		OrderID:        arg.OrderID,
		Amount:         arg.Amount,
		Tip:            arg.Tip,
		PaymentMethod:  arg.PaymentMethod,
		GuestLabel:     arg.GuestLabel,
		IdempotencyKey: arg.IdempotencyKey,
		ProcessedBy:    arg.ProcessedBy,
		ProcessedAt:    m.now(),
	}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *memDB) GetPaymentByIdempotencyKey(_ context.Context, arg database.GetPaymentByIdempotencyKeyParams) (database.Payment, error) {
	for _, p := range m.payments {
		if p.OrderID == arg.OrderID && p.IdempotencyKey == arg.IdempotencyKey {
			return p, nil
		}
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *memDB) ListPaymentsByOrder(_ context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	out := []database.Payment{}
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// memPool implements TxBeginner over a memDB.
type memPool struct {
	mu       sync.Mutex
	db       *memDB
	beginErr error
	commits  int
}

func (p *memPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	p.mu.Lock()
	return &memTx{pool: p, saved: p.db.save()}, nil
}

func (p *memPool) newStore(db database.DBTX) FloorStore {
	return p.db
}

// memTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type memTx struct {
	pool  *memPool
	saved memState
	done  bool
}

func (m *memTx) Commit(ctx context.Context) error {
	if m.done {
		return pgx.ErrTxClosed
	}
	m.done = true
	m.pool.commits++
	m.pool.mu.Unlock()
	return nil
}

func (m *memTx) Rollback(ctx context.Context) error {
	if m.done {
		return pgx.ErrTxClosed
	}
	m.done = true
	m.pool.db.restore(m.saved)
	m.pool.mu.Unlock()
	return nil
}

func (m *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *memTx) Conn() *pgx.Conn { panic("not implemented") }

// recordingNotifier captures emitted events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Emit(_ context.Context, e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// memCache implements ReplayCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]database.Payment
	hits    int
}

func (c *memCache) Lookup(_ context.Context, orderID uuid.UUID, key string) (database.Payment, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[orderID.String()+":"+key]
	if ok {
		c.hits++
	}
	return p, ok, nil
}

func (c *memCache) Remember(_ context.Context, p database.Payment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]database.Payment{}
	}
	c.entries[p.OrderID.String()+":"+p.IdempotencyKey] = p
	return nil
}

// --- Fixture ---

type floor struct {
	db       *memDB
	pool     *memPool
	events   *recordingNotifier
	cache    *memCache
	tables   *TableService
	ledger   *OrderLedger
	payments *PaymentService
	outletID uuid.UUID
	userID   uuid.UUID
}

func newFloor() *floor {
	db := newMemDB()
	pool := &memPool{db: db}
	events := &recordingNotifier{}
	cache := &memCache{}
	tables := NewTableService(pool, pool.newStore, events)
	return &floor{
		db:       db,
		pool:     pool,
		events:   events,
		cache:    cache,
		tables:   tables,
		ledger:   NewOrderLedger(pool, pool.newStore, NewDBCatalog(db), tables, events),
		payments: NewPaymentService(pool, pool.newStore, tables, cache, events),
		outletID: uuid.New(),
		userID:   uuid.New(),
	}
}

func (f *floor) table(id uuid.UUID) database.DiningTable {
	return f.db.tables[id]
}

func (f *floor) pay(orderID uuid.UUID, amount, tip, key string) (*PaymentResult, error) {
	return f.payments.ApplyPayment(context.Background(), ApplyPaymentRequest{
		OutletID:       f.outletID,
		OrderID:        orderID,
		Amount:         decimal.RequireFromString(amount),
		Tip:            decimal.RequireFromString(tip),
		Method:         string(database.PaymentMethodCASH),
		IdempotencyKey: key,
		ProcessedBy:    f.userID,
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func orderRef(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
