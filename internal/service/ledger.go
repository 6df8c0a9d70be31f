package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/billing"
	"github.com/kiwari-pos/floor/internal/database"
)

const defaultHistoryLimit = 50

// OpenOrderRequest is the validated input for opening an order on a table.
type OpenOrderRequest struct {
	OutletID  uuid.UUID
	TableID   uuid.UUID
	CreatedBy uuid.UUID
}

// AddItemRequest is the validated input for adding an item to an order.
type AddItemRequest struct {
	OutletID   uuid.UUID
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	Quantity   int32
	GuestLabel string
	Notes      string
}

// OrderLedger owns an order's line items and derived totals.
type OrderLedger struct {
	pool     TxBeginner
	newStore NewFloorStore
	catalog  Catalog
	tables   *TableService
	notifier Notifier
}

// NewOrderLedger creates a new OrderLedger.
func NewOrderLedger(pool TxBeginner, newStore NewFloorStore, catalog Catalog, tables *TableService, notifier Notifier) *OrderLedger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderLedger{pool: pool, newStore: newStore, catalog: catalog, tables: tables, notifier: notifier}
}

// Open creates an OPEN order and binds it to an active table.
func (l *OrderLedger) Open(ctx context.Context, req OpenOrderRequest) (*OrderSnapshot, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := l.newStore(tx)

	table, err := lockTable(ctx, store, req.OutletID, req.TableID)
	if err != nil {
		return nil, err
	}
	if table.CurrentOrderID.Valid {
		return nil, ErrTableAlreadyHasOpenOrder
	}
	if !IsActive(table.Status) {
		return nil, &TransitionError{Action: "open an order on", From: table.Status}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OutletID:  req.OutletID,
		TableID:   table.ID,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	_, err = store.UpdateTableState(ctx, database.UpdateTableStateParams{
		ID:             table.ID,
		Status:         table.Status,
		CurrentPax:     table.CurrentPax,
		CurrentOrderID: pgtype.UUID{Bytes: order.ID, Valid: true},
		Version:        table.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("bind order to table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	st := &orderState{order: order}
	emit(ctx, l.notifier, Event{
		Type:     EventOrderOpened,
		OutletID: order.OutletID,
		TableID:  order.TableID,
		OrderID:  order.ID,
		Status:   string(order.Status),
	})
	return st.snapshot(), nil
}

// AddItem appends a line at the catalog's current price. The price is read
// once here and stored on the item.
func (l *OrderLedger) AddItem(ctx context.Context, req AddItemRequest) (*OrderSnapshot, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	guest := billing.GuestLabel(req.GuestLabel)
	if tooLong(guest, maxGuestLabelLen) {
		return nil, ErrInvalidGuestLabel
	}
	entry, err := l.catalog.Price(ctx, req.OutletID, req.ProductID)
	if err != nil {
		return nil, err
	}

	return l.mutate(ctx, req.OutletID, req.OrderID, func(store FloorStore, st *orderState) error {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     st.order.ID,
			ProductID:   entry.ProductID,
			ProductName: entry.Name,
			UnitPrice:   decimalToNumeric(entry.Price),
			Quantity:    req.Quantity,
			GuestLabel:  guest,
			Notes:       optionalText(req.Notes),
			Round:       st.order.Round,
		})
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
		st.items = append(st.items, item)
		return nil
	})
}

// UpdateQuantity adds delta to an item's quantity, removing the item when
// the result drops to zero or below.
func (l *OrderLedger) UpdateQuantity(ctx context.Context, outletID, orderID, itemID uuid.UUID, delta int32) (*OrderSnapshot, error) {
	if delta == 0 {
		return nil, ErrInvalidQuantityDelta
	}

	return l.mutate(ctx, outletID, orderID, func(store FloorStore, st *orderState) error {
		idx, ok := st.findItem(itemID)
		if !ok {
			return ErrItemNotFound
		}
		item := st.items[idx]
		sum := int64(item.Quantity) + int64(delta)
		if sum > math.MaxInt32 {
			return ErrInvalidQuantity
		}
		qty := int32(max(sum, 0))

		next := make([]database.OrderItem, 0, len(st.items))
		for i, it := range st.items {
			if i == idx {
				if qty <= 0 {
					continue
				}
				it.Quantity = qty
			}
			next = append(next, it)
		}
		probe := &orderState{order: st.order, items: next, payments: st.payments}
		paid := billing.Paid(st.tenders())
		if billing.Total(probe.lines()).LessThan(paid.Sub(billing.Epsilon)) {
			return ErrTotalBelowPaid
		}

		if qty <= 0 {
			if err := store.DeleteOrderItem(ctx, database.DeleteOrderItemParams{ID: item.ID, OrderID: st.order.ID}); err != nil {
				return fmt.Errorf("delete order item: %w", err)
			}
			st.items = next
			return nil
		}

		updated, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
			ID:       item.ID,
			OrderID:  st.order.ID,
			Quantity: qty,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("update order item: %w", err)
		}
		next[idx] = updated
		st.items = next
		return nil
	})
}

// UpdateNotes replaces an item's notes. Totals are unaffected.
func (l *OrderLedger) UpdateNotes(ctx context.Context, outletID, orderID, itemID uuid.UUID, notes string) (*OrderSnapshot, error) {
	return l.mutate(ctx, outletID, orderID, func(store FloorStore, st *orderState) error {
		idx, ok := st.findItem(itemID)
		if !ok {
			return ErrItemNotFound
		}
		updated, err := store.UpdateOrderItemNotes(ctx, database.UpdateOrderItemNotesParams{
			ID:      itemID,
			OrderID: st.order.ID,
			Notes:   optionalText(notes),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("update order item notes: %w", err)
		}
		st.items[idx] = updated
		return nil
	})
}

// SubmitRound sends the current round to the kitchen: the order moves on to
// the next round and the table waits for food.
func (l *OrderLedger) SubmitRound(ctx context.Context, outletID, orderID uuid.UUID) (*OrderSnapshot, error) {
	var (
		table database.DiningTable
		prev  database.TableStatus
	)
	snap, err := l.mutate(ctx, outletID, orderID, func(store FloorStore, st *orderState) error {
		pending := 0
		for _, it := range st.items {
			if it.Round == st.order.Round {
				pending++
			}
		}
		if pending == 0 {
			return ErrNothingToSubmit
		}

		var err error
		table, prev, err = transitionTable(ctx, store, outletID, st.order.TableID, ActionSubmitRound, nil)
		if err != nil {
			return err
		}
		if !table.CurrentOrderID.Valid || uuid.UUID(table.CurrentOrderID.Bytes) != st.order.ID {
			return &TransitionError{Action: ActionSubmitRound, From: prev, To: database.TableStatusWAITINGFOOD}
		}
		st.order.Round++
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitTableStatus(ctx, l.notifier, prev, table)
	emit(ctx, l.notifier, Event{
		Type:     EventRoundSubmitted,
		OutletID: outletID,
		TableID:  table.ID,
		OrderID:  orderID,
		Status:   string(snap.Status),
	})
	return snap, nil
}

// Snapshot returns the order with its derived balances.
func (l *OrderLedger) Snapshot(ctx context.Context, outletID, orderID uuid.UUID) (*OrderSnapshot, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st, err := loadOrder(ctx, l.newStore(tx), outletID, orderID, false)
	if err != nil {
		return nil, err
	}
	return st.snapshot(), nil
}

// ListByTable returns the most recent orders opened on a table.
func (l *OrderLedger) ListByTable(ctx context.Context, outletID, tableID uuid.UUID, limit int32) ([]database.Order, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := l.newStore(tx)

	if _, err := store.GetTable(ctx, database.GetTableParams{ID: tableID, OutletID: outletID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	orders, err := store.ListOrdersByTable(ctx, database.ListOrdersByTableParams{
		TableID:  tableID,
		OutletID: outletID,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// mutate locks the order, rejects changes to a SETTLED order, applies fn and
// saves the recomputed totals. A change that settles the order (a paid
// order trimmed down to exactly what was paid) signals the table.
func (l *OrderLedger) mutate(ctx context.Context, outletID, orderID uuid.UUID, fn func(FloorStore, *orderState) error) (*OrderSnapshot, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := l.newStore(tx)

	st, err := loadOrder(ctx, store, outletID, orderID, true)
	if err != nil {
		return nil, err
	}
	if st.settled() {
		return nil, ErrOrderNotMutable
	}
	if err := fn(store, st); err != nil {
		return nil, err
	}
	settledNow, err := st.save(ctx, store)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	snap := st.snapshot()
	emit(ctx, l.notifier, Event{
		Type:      EventOrderUpdated,
		OutletID:  st.order.OutletID,
		TableID:   st.order.TableID,
		OrderID:   st.order.ID,
		Status:    string(snap.Status),
		Remaining: snap.Remaining.StringFixed(billing.MinorUnitPlaces),
	})
	if settledNow {
		signalSettled(ctx, l.tables, l.notifier, snap)
	}
	return snap, nil
}

// signalSettled tells the table its order is settled. The order is already
// committed, so a failure is only logged; reads reconcile the table later.
func signalSettled(ctx context.Context, tables *TableService, n Notifier, snap *OrderSnapshot) {
	o := snap.Order
	if tables != nil {
		if _, err := tables.SettleOrder(ctx, o.OutletID, o.TableID, o.ID); err != nil {
			log.Printf("ERROR: settle signal for table %s order %s: %v", o.TableID, o.ID, err)
		}
	}
	emit(ctx, n, Event{
		Type:     EventOrderSettled,
		OutletID: o.OutletID,
		TableID:  o.TableID,
		OrderID:  o.ID,
		Status:   string(database.OrderStatusSETTLED),
		Amount:   snap.Paid.StringFixed(billing.MinorUnitPlaces),
	})
}
