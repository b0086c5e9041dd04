package domain

// TransactionType marks the direction of a stock movement.
type TransactionType string

const (
	TransactionIn  TransactionType = "in"
	TransactionOut TransactionType = "out"
)

// Valid reports whether t is one of the known movement directions.
func (t TransactionType) Valid() bool {
	return t == TransactionIn || t == TransactionOut
}

// InventoryTransaction is one append-only stock movement. Rows are never
// updated; the product's current_stock must always reconcile to the sum of
// its movements.
type InventoryTransaction struct {
	ID              string          `db:"id" json:"id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	Quantity        int64           `db:"quantity" json:"quantity"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`
	TransactionDate string          `db:"transaction_date" json:"transaction_date"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	CreatedAt       string          `db:"created_at" json:"created_at"`
}

// Signed returns the movement's contribution to current stock.
func (t InventoryTransaction) Signed() int64 {
	if t.TransactionType == TransactionOut {
		return -t.Quantity
	}
	return t.Quantity
}
