package domain

import "github.com/shopspring/decimal"

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPaid, PaymentPending, PaymentPartial:
		return true
	}
	return false
}

// Sale is immutable once recorded. CustomerName is a snapshot taken at sale
// time; CustomerID may dangle after a customer is deleted.
type Sale struct {
	ID             string          `db:"id" json:"id"`
	CustomerID     *string         `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	SaleDate       string          `db:"sale_date" json:"sale_date"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentStatus  PaymentStatus   `db:"payment_status" json:"payment_status"`
	Notes          string          `db:"notes" json:"notes"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
}

// SaleItem is owned by its Sale and carries a unit price snapshot.
type SaleItem struct {
	ID        string          `db:"id" json:"id"`
	SaleID    string          `db:"sale_id" json:"sale_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Discount  decimal.Decimal `db:"discount" json:"discount"`
}

// Subtotal is quantity x price minus the line discount.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity)).Sub(i.Discount)
}
