package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (outlet_id, name, capacity)
VALUES ($1, $2, $3)
RETURNING id, outlet_id, name, capacity, status, current_pax, current_order_id, version, created_at, updated_at
`

type CreateTableParams struct {
	OutletID uuid.UUID `json:"outlet_id"`
	Name     string    `json:"name"`
	Capacity int32     `json:"capacity"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, createTable, arg.OutletID, arg.Name, arg.Capacity)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.Capacity,
		&i.Status,
		&i.CurrentPax,
		&i.CurrentOrderID,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTable = `-- name: GetTable :one
SELECT id, outlet_id, name, capacity, status, current_pax, current_order_id, version, created_at, updated_at FROM dining_tables
WHERE id = $1 AND outlet_id = $2
`

type GetTableParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, getTable, arg.ID, arg.OutletID)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.Capacity,
		&i.Status,
		&i.CurrentPax,
		&i.CurrentOrderID,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT id, outlet_id, name, capacity, status, current_pax, current_order_id, version, created_at, updated_at FROM dining_tables
WHERE id = $1 AND outlet_id = $2
FOR NO KEY UPDATE
`

type GetTableForUpdateParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetTableForUpdate(ctx context.Context, arg GetTableForUpdateParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, arg.ID, arg.OutletID)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.Capacity,
		&i.Status,
		&i.CurrentPax,
		&i.CurrentOrderID,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT id, outlet_id, name, capacity, status, current_pax, current_order_id, version, created_at, updated_at FROM dining_tables
WHERE outlet_id = $1
  AND ($2::text IS NULL OR status::text = $2::text)
ORDER BY name
`

type ListTablesParams struct {
	OutletID uuid.UUID   `json:"outlet_id"`
	Status   pgtype.Text `json:"status"`
}

func (q *Queries) ListTables(ctx context.Context, arg ListTablesParams) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables, arg.OutletID, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DiningTable{}
	for rows.Next() {
		var i DiningTable
		if err := rows.Scan(
			&i.ID,
			&i.OutletID,
			&i.Name,
			&i.Capacity,
			&i.Status,
			&i.CurrentPax,
			&i.CurrentOrderID,
			&i.Version,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTableState = `-- name: UpdateTableState :one
UPDATE dining_tables
SET status = $2,
    current_pax = $3,
    current_order_id = $4,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $5
RETURNING id, outlet_id, name, capacity, status, current_pax, current_order_id, version, created_at, updated_at
`

type UpdateTableStateParams struct {
	ID             uuid.UUID   `json:"id"`
	Status         TableStatus `json:"status"`
	CurrentPax     pgtype.Int4 `json:"current_pax"`
	CurrentOrderID pgtype.UUID `json:"current_order_id"`
	Version        int32       `json:"version"`
}

func (q *Queries) UpdateTableState(ctx context.Context, arg UpdateTableStateParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, updateTableState,
		arg.ID,
		arg.Status,
		arg.CurrentPax,
		arg.CurrentOrderID,
		arg.Version,
	)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.Capacity,
		&i.Status,
		&i.CurrentPax,
		&i.CurrentOrderID,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
