package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/shopspring/decimal"
)

// CatalogEntry is the price snapshot taken when an item is added to an order.
type CatalogEntry struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
}

// Catalog looks up the current price of a product. It is read once per added
// item and never consulted again for that item.
type Catalog interface {
	Price(ctx context.Context, outletID, productID uuid.UUID) (CatalogEntry, error)
}

// ProductReader is the slice of the menu read model the catalog needs.
type ProductReader interface {
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.GetProductForOrderRow, error)
}

// DBCatalog reads prices from the products table.
type DBCatalog struct {
	products ProductReader
}

func NewDBCatalog(products ProductReader) *DBCatalog {
	return &DBCatalog{products: products}
}

func (c *DBCatalog) Price(ctx context.Context, outletID, productID uuid.UUID) (CatalogEntry, error) {
	row, err := c.products.GetProductForOrder(ctx, database.GetProductForOrderParams{
		ID:       productID,
		OutletID: outletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CatalogEntry{}, ErrProductNotFound
		}
		return CatalogEntry{}, fmt.Errorf("get product: %w", err)
	}
	return CatalogEntry{
		ProductID: row.ID,
		Name:      row.Name,
		Price:     numericToDecimal(row.BasePrice),
	}, nil
}
