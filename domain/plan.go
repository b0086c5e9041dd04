package domain

import "github.com/shopspring/decimal"

type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanScheduled PlanStatus = "scheduled"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanScheduled, PlanCompleted, PlanCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves this status.
func (s PlanStatus) Terminal() bool {
	return s == PlanCompleted || s == PlanCancelled
}

// PurchasePlan collects intended future purchases. It has no stock effect
// until completed.
type PurchasePlan struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	PlannedDate string          `db:"planned_date" json:"planned_date"`
	Status      PlanStatus      `db:"status" json:"status"`
	Notes       string          `db:"notes" json:"notes"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   string          `db:"created_at" json:"created_at"`
}

// PurchasePlanItem is owned by its plan. ProductID is optional: items without
// one carry a free-text ProdName and are skipped when the plan completes.
type PurchasePlanItem struct {
	ID        string          `db:"id" json:"id"`
	PlanID    string          `db:"plan_id" json:"plan_id"`
	ProductID *string         `db:"product_id" json:"product_id,omitempty"`
	ProdName  string          `db:"prod_name" json:"prod_name"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Subtotal is the item's allocated budget.
func (i PurchasePlanItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}
