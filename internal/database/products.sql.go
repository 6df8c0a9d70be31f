package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT id, outlet_id, name, base_price FROM products
WHERE id = $1 AND outlet_id = $2 AND is_active = true
`

type GetProductForOrderParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

type GetProductForOrderRow struct {
	ID        uuid.UUID      `json:"id"`
	OutletID  uuid.UUID      `json:"outlet_id"`
	Name      string         `json:"name"`
	BasePrice pgtype.Numeric `json:"base_price"`
}

func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (GetProductForOrderRow, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, arg.ID, arg.OutletID)
	var i GetProductForOrderRow
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.BasePrice,
	)
	return i, err
}
