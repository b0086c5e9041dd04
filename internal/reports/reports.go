// Package reports serves read-only projections for dashboards. Nothing here
// writes, and nothing here is authoritative for stock.
package reports

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/policy"
)

type Service struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type Summary struct {
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
	Count   int64           `db:"count" json:"sales_count"`
}

// DailySummary aggregates today's sales.
func (s *Service) DailySummary(ctx context.Context, actor domain.Actor) (*Summary, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityReport); err != nil {
		return nil, err
	}
	var out Summary
	err := s.db.GetContext(ctx, &out,
		`SELECT COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS count
		 FROM sales WHERE sale_date = DATE('now')`)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MonthlySummary aggregates the current calendar month.
func (s *Service) MonthlySummary(ctx context.Context, actor domain.Actor) (*Summary, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityReport); err != nil {
		return nil, err
	}
	var out Summary
	err := s.db.GetContext(ctx, &out,
		`SELECT COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS count
		 FROM sales WHERE strftime('%Y-%m', sale_date) = strftime('%Y-%m', 'now')`)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type TopProduct struct {
	ProductID    string          `db:"product_id" json:"product_id"`
	Name         string          `db:"name" json:"name"`
	QuantitySold int64           `db:"quantity_sold" json:"quantity_sold"`
	Revenue      decimal.Decimal `db:"revenue" json:"revenue"`
}

// TopProducts ranks products by units sold.
func (s *Service) TopProducts(ctx context.Context, limit int, actor domain.Actor) ([]TopProduct, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityReport); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	var out []TopProduct
	err := s.db.SelectContext(ctx, &out,
		`SELECT si.product_id, p.name, SUM(si.quantity) AS quantity_sold,
		        SUM(si.quantity * si.price - si.discount) AS revenue
		 FROM sale_items si
		 JOIN products p ON p.id = si.product_id
		 GROUP BY si.product_id, p.name
		 ORDER BY quantity_sold DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LowStock lists products at or below the threshold.
func (s *Service) LowStock(ctx context.Context, threshold int64, actor domain.Actor) ([]domain.Product, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityReport); err != nil {
		return nil, err
	}
	if threshold < 0 {
		threshold = 0
	}
	var out []domain.Product
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, name, purchase_price, sale_price, current_stock, additional_costs, created_by, created_at, updated_at
		 FROM products WHERE current_stock <= ? ORDER BY current_stock, name`, threshold)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Profit sums (unit price - product purchase price) x quantity over the
// period. The unit price is the snapshot on the sale item; the purchase
// price is the product's current one.
func (s *Service) Profit(ctx context.Context, from, to string, actor domain.Actor) (decimal.Decimal, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityReport); err != nil {
		return decimal.Zero, err
	}
	query := `SELECT COALESCE(SUM((si.price - p.purchase_price) * si.quantity), 0)
	          FROM sale_items si
	          JOIN products p ON p.id = si.product_id
	          JOIN sales s ON s.id = si.sale_id`
	var clauses []string
	var args []any
	if from != "" {
		clauses = append(clauses, "s.sale_date >= ?")
		args = append(args, from)
	}
	if to != "" {
		clauses = append(clauses, "s.sale_date <= ?")
		args = append(args, to)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	var profit decimal.Decimal
	if err := s.db.GetContext(ctx, &profit, query, args...); err != nil {
		return decimal.Zero, err
	}
	return profit, nil
}
