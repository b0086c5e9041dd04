package domain

// Customer is an optional sale counterparty. Sales keep their own name
// snapshot, so customers can be edited or removed without touching history.
type Customer struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Phone     string `db:"phone" json:"phone,omitempty"`
	Email     string `db:"email" json:"email,omitempty"`
	CreatedBy string `db:"created_by" json:"created_by"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
