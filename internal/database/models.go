package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusOPEN          OrderStatus = "OPEN"
	OrderStatusPARTIALLYPAID OrderStatus = "PARTIALLY_PAID"
	OrderStatusSETTLED       OrderStatus = "SETTLED"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

func (e OrderStatus) Valid() bool {
	switch e {
	case OrderStatusOPEN,
		OrderStatusPARTIALLYPAID,
		OrderStatusSETTLED:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCASH     PaymentMethod = "CASH"
	PaymentMethodCARD     PaymentMethod = "CARD"
	PaymentMethodTRANSFER PaymentMethod = "TRANSFER"
)

func (e *PaymentMethod) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentMethod(s)
	case string:
		*e = PaymentMethod(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentMethod: %T", src)
	}
	return nil
}

func (e PaymentMethod) Valid() bool {
	switch e {
	case PaymentMethodCASH,
		PaymentMethodCARD,
		PaymentMethodTRANSFER:
		return true
	}
	return false
}

type TableStatus string

const (
	TableStatusAVAILABLE   TableStatus = "AVAILABLE"
	TableStatusOCCUPIED    TableStatus = "OCCUPIED"
	TableStatusWAITINGFOOD TableStatus = "WAITING_FOOD"
	TableStatusSERVING     TableStatus = "SERVING"
	TableStatusPAYING      TableStatus = "PAYING"
	TableStatusDIRTY       TableStatus = "DIRTY"
	TableStatusRESERVED    TableStatus = "RESERVED"
)

func (e *TableStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TableStatus(s)
	case string:
		*e = TableStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TableStatus: %T", src)
	}
	return nil
}

func (e TableStatus) Valid() bool {
	switch e {
	case TableStatusAVAILABLE,
		TableStatusOCCUPIED,
		TableStatusWAITINGFOOD,
		TableStatusSERVING,
		TableStatusPAYING,
		TableStatusDIRTY,
		TableStatusRESERVED:
		return true
	}
	return false
}

type DiningTable struct {
	ID             uuid.UUID   `json:"id"`
	OutletID       uuid.UUID   `json:"outlet_id"`
	Name           string      `json:"name"`
	Capacity       int32       `json:"capacity"`
	Status         TableStatus `json:"status"`
	CurrentPax     pgtype.Int4 `json:"current_pax"`
	CurrentOrderID pgtype.UUID `json:"current_order_id"`
	Version        int32       `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type Order struct {
	ID          uuid.UUID          `json:"id"`
	OutletID    uuid.UUID          `json:"outlet_id"`
	TableID     uuid.UUID          `json:"table_id"`
	Status      OrderStatus        `json:"status"`
	Round       int32              `json:"round"`
	TotalAmount pgtype.Numeric     `json:"total_amount"`
	PaidAmount  pgtype.Numeric     `json:"paid_amount"`
	TipAmount   pgtype.Numeric     `json:"tip_amount"`
	Version     int32              `json:"version"`
	CreatedBy   uuid.UUID          `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	SettledAt   pgtype.Timestamptz `json:"settled_at"`
}

type OrderItem struct {
	ID          uuid.UUID      `json:"id"`
	OrderID     uuid.UUID      `json:"order_id"`
	ProductID   uuid.UUID      `json:"product_id"`
	ProductName string         `json:"product_name"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Quantity    int32          `json:"quantity"`
	GuestLabel  string         `json:"guest_label"`
	Notes       pgtype.Text    `json:"notes"`
	Round       int32          `json:"round"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Payment struct {
	ID             uuid.UUID      `json:"id"`
	OrderID        uuid.UUID      `json:"order_id"`
	Amount         pgtype.Numeric `json:"amount"`
	Tip            pgtype.Numeric `json:"tip"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	GuestLabel     pgtype.Text    `json:"guest_label"`
	IdempotencyKey string         `json:"idempotency_key"`
	ProcessedBy    uuid.UUID      `json:"processed_by"`
	ProcessedAt    time.Time      `json:"processed_at"`
}
