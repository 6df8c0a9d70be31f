package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/database"
)

// Table actions. Each one is a row in the transition table below.
const (
	ActionOccupy            = "occupy"
	ActionSubmitRound       = "submit round for"
	ActionMarkServed        = "mark served"
	ActionBeginPayment      = "begin payment for"
	ActionFree              = "free"
	ActionSettle            = "settle"
	ActionMarkClean         = "mark clean"
	ActionReserve           = "reserve"
	ActionCancelReservation = "cancel reservation for"
)

type transition struct {
	to   database.TableStatus
	from []database.TableStatus
}

var activeStatuses = []database.TableStatus{
	database.TableStatusOCCUPIED,
	database.TableStatusWAITINGFOOD,
	database.TableStatusSERVING,
	database.TableStatusPAYING,
}

var tableTransitions = map[string]transition{
	ActionOccupy: {
		to:   database.TableStatusOCCUPIED,
		from: []database.TableStatus{database.TableStatusAVAILABLE, database.TableStatusRESERVED},
	},
	ActionSubmitRound: {
		to:   database.TableStatusWAITINGFOOD,
		from: []database.TableStatus{database.TableStatusOCCUPIED, database.TableStatusWAITINGFOOD, database.TableStatusSERVING},
	},
	ActionMarkServed: {
		to:   database.TableStatusSERVING,
		from: []database.TableStatus{database.TableStatusWAITINGFOOD},
	},
	ActionBeginPayment: {
		to:   database.TableStatusPAYING,
		from: []database.TableStatus{database.TableStatusOCCUPIED, database.TableStatusWAITINGFOOD, database.TableStatusSERVING},
	},
	ActionFree:   {to: database.TableStatusAVAILABLE, from: activeStatuses},
	ActionSettle: {to: database.TableStatusDIRTY, from: activeStatuses},
	ActionMarkClean: {
		to:   database.TableStatusAVAILABLE,
		from: []database.TableStatus{database.TableStatusDIRTY},
	},
	ActionReserve: {
		to:   database.TableStatusRESERVED,
		from: []database.TableStatus{database.TableStatusAVAILABLE},
	},
	ActionCancelReservation: {
		to:   database.TableStatusAVAILABLE,
		from: []database.TableStatus{database.TableStatusRESERVED},
	},
}

// IsActive reports whether guests are seated at a table in this status.
func IsActive(status database.TableStatus) bool {
	for _, s := range activeStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransition reports whether action is allowed from status.
func CanTransition(status database.TableStatus, action string) bool {
	t, ok := tableTransitions[action]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}

// OccupyResult is the occupied table plus the soft capacity warning.
type OccupyResult struct {
	Table        database.DiningTable
	OverCapacity bool
}

// TableService runs the table occupancy state machine. Every transition
// holds the table row lock for the duration of its transaction.
type TableService struct {
	pool     TxBeginner
	newStore NewFloorStore
	notifier Notifier
}

// NewTableService creates a new TableService.
func NewTableService(pool TxBeginner, newStore NewFloorStore, notifier Notifier) *TableService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TableService{pool: pool, newStore: newStore, notifier: notifier}
}

// Create adds an AVAILABLE table to the outlet floor.
func (s *TableService) Create(ctx context.Context, outletID uuid.UUID, name string, capacity int32) (database.DiningTable, error) {
	name = strings.TrimSpace(name)
	if name == "" || tooLong(name, maxTableNameLen) {
		return database.DiningTable{}, ErrInvalidTableName
	}
	if capacity < 1 {
		return database.DiningTable{}, ErrInvalidCapacity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	table, err := s.newStore(tx).CreateTable(ctx, database.CreateTableParams{
		OutletID: outletID,
		Name:     name,
		Capacity: capacity,
	})
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("create table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, fmt.Errorf("commit tx: %w", err)
	}
	return table, nil
}

// Get returns a table, healing it to DIRTY first if its order was settled
// but the settlement signal never reached it.
func (s *TableService) Get(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.newStore(tx)

	table, err := store.GetTable(ctx, database.GetTableParams{ID: tableID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.DiningTable{}, ErrTableNotFound
		}
		return database.DiningTable{}, fmt.Errorf("get table: %w", err)
	}

	healed, changed, err := s.reconcile(ctx, store, table)
	if err != nil {
		return database.DiningTable{}, err
	}
	if !changed {
		return table, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, fmt.Errorf("commit tx: %w", err)
	}
	s.emitStatus(ctx, table.Status, healed)
	return healed, nil
}

// List returns the outlet's tables, optionally filtered by status.
func (s *TableService) List(ctx context.Context, outletID uuid.UUID, status string) ([]database.DiningTable, error) {
	filter := pgtype.Text{}
	if status != "" {
		if !database.TableStatus(status).Valid() {
			return nil, ErrInvalidStatusFilter
		}
		filter = pgtype.Text{String: status, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.newStore(tx)

	tables, err := store.ListTables(ctx, database.ListTablesParams{OutletID: outletID, Status: filter})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var healedFrom []database.TableStatus
	var healed []database.DiningTable
	for i, t := range tables {
		fixed, changed, err := s.reconcile(ctx, store, t)
		if err != nil {
			return nil, err
		}
		if changed {
			healedFrom = append(healedFrom, t.Status)
			healed = append(healed, fixed)
			tables[i] = fixed
		}
	}
	if len(healed) == 0 {
		return tables, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	for i := range healed {
		s.emitStatus(ctx, healedFrom[i], healed[i])
	}

	// A status filter may no longer match after healing.
	if filter.Valid {
		kept := tables[:0]
		for _, t := range tables {
			if string(t.Status) == status {
				kept = append(kept, t)
			}
		}
		tables = kept
	}
	return tables, nil
}

// reconcile moves an active table whose bound order is already SETTLED to
// DIRTY. It reports whether the table was changed.
func (s *TableService) reconcile(ctx context.Context, store FloorStore, table database.DiningTable) (database.DiningTable, bool, error) {
	if !IsActive(table.Status) || !table.CurrentOrderID.Valid {
		return table, false, nil
	}
	order, err := store.GetOrder(ctx, database.GetOrderParams{
		ID:       uuid.UUID(table.CurrentOrderID.Bytes),
		OutletID: table.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return table, false, nil
		}
		return table, false, fmt.Errorf("get order: %w", err)
	}
	if order.Status != database.OrderStatusSETTLED {
		return table, false, nil
	}

	log.Printf("WARN: table %s still %s after order %s settled, moving to DIRTY", table.ID, table.Status, order.ID)
	updated, _, err := advanceTable(ctx, store, table.OutletID, table.ID, ActionSettle, func(t database.DiningTable) bool {
		return t.CurrentOrderID.Valid && uuid.UUID(t.CurrentOrderID.Bytes) == order.ID
	})
	if err != nil {
		if errors.Is(err, errTransitionSkipped) || errors.Is(err, ErrInvalidStateTransition) {
			return table, false, nil
		}
		return table, false, err
	}
	return updated, true, nil
}

// Occupy seats pax guests. Exceeding capacity is allowed but flagged.
func (s *TableService) Occupy(ctx context.Context, outletID, tableID uuid.UUID, pax int32) (*OccupyResult, error) {
	if pax < 1 {
		return nil, ErrInvalidPax
	}
	var over bool
	table, err := s.run(ctx, outletID, tableID, ActionOccupy, func(t database.DiningTable, p *database.UpdateTableStateParams) {
		p.CurrentPax = pgtype.Int4{Int32: pax, Valid: true}
		p.CurrentOrderID = pgtype.UUID{}
		if pax > t.Capacity {
			over = true
			log.Printf("WARN: table %s seated %d guests over capacity %d", t.ID, pax, t.Capacity)
		}
	})
	if err != nil {
		return nil, err
	}
	return &OccupyResult{Table: table, OverCapacity: over}, nil
}

// Free releases an active table. The bound order, if any, is left untouched.
func (s *TableService) Free(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return s.run(ctx, outletID, tableID, ActionFree, clearOccupancy)
}

func (s *TableService) MarkClean(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return s.run(ctx, outletID, tableID, ActionMarkClean, clearOccupancy)
}

func (s *TableService) Reserve(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return s.run(ctx, outletID, tableID, ActionReserve, clearOccupancy)
}

func (s *TableService) CancelReservation(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return s.run(ctx, outletID, tableID, ActionCancelReservation, clearOccupancy)
}

func (s *TableService) MarkServed(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return s.run(ctx, outletID, tableID, ActionMarkServed, nil)
}

func (s *TableService) BeginPayment(ctx context.Context, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	return s.run(ctx, outletID, tableID, ActionBeginPayment, nil)
}

// SettleOrder is the settlement signal: the table moves to DIRTY and drops
// its occupancy. It is idempotent and ignored when the table no longer
// references orderID.
func (s *TableService) SettleOrder(ctx context.Context, outletID, tableID, orderID uuid.UUID) (database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	table, prev, err := advanceTable(ctx, s.newStore(tx), outletID, tableID, ActionSettle, func(t database.DiningTable) bool {
		return IsActive(t.Status) && t.CurrentOrderID.Valid && uuid.UUID(t.CurrentOrderID.Bytes) == orderID
	})
	if errors.Is(err, errTransitionSkipped) {
		return table, nil
	}
	if err != nil {
		return database.DiningTable{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, fmt.Errorf("commit tx: %w", err)
	}
	s.emitStatus(ctx, prev, table)
	return table, nil
}

func (s *TableService) run(ctx context.Context, outletID, tableID uuid.UUID, action string, edit func(database.DiningTable, *database.UpdateTableStateParams)) (database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	table, prev, err := transitionTable(ctx, s.newStore(tx), outletID, tableID, action, edit)
	if err != nil {
		return database.DiningTable{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, fmt.Errorf("commit tx: %w", err)
	}
	s.emitStatus(ctx, prev, table)
	return table, nil
}

func (s *TableService) emitStatus(ctx context.Context, prev database.TableStatus, t database.DiningTable) {
	emitTableStatus(ctx, s.notifier, prev, t)
}

func emitTableStatus(ctx context.Context, n Notifier, prev database.TableStatus, t database.DiningTable) {
	e := Event{
		Type:           EventTableStatusChanged,
		OutletID:       t.OutletID,
		TableID:        t.ID,
		Status:         string(t.Status),
		PreviousStatus: string(prev),
	}
	if t.CurrentOrderID.Valid {
		e.OrderID = uuid.UUID(t.CurrentOrderID.Bytes)
	}
	emit(ctx, n, e)
}

var errTransitionSkipped = errors.New("transition skipped")

func clearOccupancy(_ database.DiningTable, p *database.UpdateTableStateParams) {
	p.CurrentPax = pgtype.Int4{}
	p.CurrentOrderID = pgtype.UUID{}
}

// advanceTable runs the settle-style transition that is skipped, not
// rejected, when guard says the table is no longer ours to change.
func advanceTable(ctx context.Context, store FloorStore, outletID, tableID uuid.UUID, action string, guard func(database.DiningTable) bool) (database.DiningTable, database.TableStatus, error) {
	table, err := lockTable(ctx, store, outletID, tableID)
	if err != nil {
		return database.DiningTable{}, "", err
	}
	if !guard(table) {
		return table, table.Status, errTransitionSkipped
	}
	return applyTransition(ctx, store, table, action, clearOccupancy)
}

// transitionTable locks the table row, checks the action against the
// transition table and writes the new state under the version check.
func transitionTable(ctx context.Context, store FloorStore, outletID, tableID uuid.UUID, action string, edit func(database.DiningTable, *database.UpdateTableStateParams)) (database.DiningTable, database.TableStatus, error) {
	table, err := lockTable(ctx, store, outletID, tableID)
	if err != nil {
		return database.DiningTable{}, "", err
	}
	return applyTransition(ctx, store, table, action, edit)
}

func lockTable(ctx context.Context, store FloorStore, outletID, tableID uuid.UUID) (database.DiningTable, error) {
	table, err := store.GetTableForUpdate(ctx, database.GetTableForUpdateParams{ID: tableID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.DiningTable{}, ErrTableNotFound
		}
		return database.DiningTable{}, fmt.Errorf("lock table: %w", err)
	}
	return table, nil
}

func applyTransition(ctx context.Context, store FloorStore, table database.DiningTable, action string, edit func(database.DiningTable, *database.UpdateTableStateParams)) (database.DiningTable, database.TableStatus, error) {
	t, ok := tableTransitions[action]
	if !ok || !CanTransition(table.Status, action) {
		return database.DiningTable{}, table.Status, &TransitionError{Action: action, From: table.Status, To: t.to}
	}

	params := database.UpdateTableStateParams{
		ID:             table.ID,
		Status:         t.to,
		CurrentPax:     table.CurrentPax,
		CurrentOrderID: table.CurrentOrderID,
		Version:        table.Version,
	}
	if edit != nil {
		edit(table, &params)
	}

	updated, err := store.UpdateTableState(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.DiningTable{}, table.Status, ErrConcurrentModification
		}
		return database.DiningTable{}, table.Status, fmt.Errorf("update table: %w", err)
	}
	return updated, table.Status, nil
}
