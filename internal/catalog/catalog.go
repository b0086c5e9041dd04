// Package catalog owns the product lifecycle. Stock is never written here
// directly: creation, edits and refills all route through the ledger so each
// change leaves an audit movement.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/ledger"
	"github.com/Gabiro3/curuza-pos2/internal/policy"
)

type Service struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type CreateInput struct {
	Name            string
	PurchasePrice   decimal.Decimal
	SalePrice       decimal.Decimal
	InitialStock    int64
	AdditionalCosts domain.AdditionalCosts
}

type UpdateInput struct {
	Name            string
	PurchasePrice   decimal.Decimal
	SalePrice       decimal.Decimal
	NewStock        int64
	AdditionalCosts domain.AdditionalCosts
}

func validatePricing(name string, purchase, sale decimal.Decimal, costs domain.AdditionalCosts) error {
	if name == "" {
		return fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}
	if !purchase.IsPositive() {
		return fmt.Errorf("%w: purchase price must be positive", domain.ErrValidation)
	}
	if !sale.IsPositive() {
		return fmt.Errorf("%w: sale price must be positive", domain.ErrValidation)
	}
	for _, c := range costs {
		if c.Title == "" {
			return fmt.Errorf("%w: additional cost title is required", domain.ErrValidation)
		}
		if c.Price.IsNegative() {
			return fmt.Errorf("%w: additional cost price cannot be negative", domain.ErrValidation)
		}
	}
	return nil
}

// Create inserts a product and, when initial stock is given, records the
// opening movement in the same transaction.
func (s *Service) Create(ctx context.Context, input CreateInput, actor domain.Actor) (*domain.Product, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntityProduct); err != nil {
		return nil, err
	}
	if err := validatePricing(input.Name, input.PurchasePrice, input.SalePrice, input.AdditionalCosts); err != nil {
		return nil, err
	}
	if input.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock cannot be negative", domain.ErrValidation)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, purchase_price, sale_price, current_stock, additional_costs, created_by)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, input.Name, input.PurchasePrice, input.SalePrice, input.AdditionalCosts, actor.UserID)
	if err != nil {
		return nil, err
	}

	if input.InitialStock > 0 {
		if _, err := ledger.RecordMovementTx(ctx, tx, id, input.InitialStock, domain.TransactionIn, "Initial stock", actor.UserID); err != nil {
			return nil, err
		}
	}

	product, err := fetchProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

// Update writes descriptive fields directly; the stock field goes through
// ledger reconciliation so the edit produces exactly one movement when the
// value actually changes.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput, actor domain.Actor) (*domain.Product, error) {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionUpdate, policy.EntityProduct, existing.CreatedBy); err != nil {
		return nil, err
	}
	if err := validatePricing(input.Name, input.PurchasePrice, input.SalePrice, input.AdditionalCosts); err != nil {
		return nil, err
	}
	if input.NewStock < 0 {
		return nil, fmt.Errorf("%w: stock level cannot be negative", domain.ErrValidation)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET name = ?, purchase_price = ?, sale_price = ?, additional_costs = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		input.Name, input.PurchasePrice, input.SalePrice, input.AdditionalCosts, id)
	if err != nil {
		return nil, err
	}

	if _, err := ledger.ReconcileAdjustmentTx(ctx, tx, id, input.NewStock, "Stock adjustment during product edit", actor.UserID); err != nil {
		return nil, err
	}

	product, err := fetchProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

// Refill records an inbound movement for restocking.
func (s *Service) Refill(ctx context.Context, id string, quantity int64, notes string, actor domain.Actor) (*domain.InventoryTransaction, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntityMovement); err != nil {
		return nil, err
	}
	if notes == "" {
		notes = "Stock refill"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	mv, err := ledger.RecordMovementTx(ctx, tx, id, quantity, domain.TransactionIn, notes, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return mv, nil
}

// Delete removes a product and its movements. Products referenced by any sale
// item are kept: the sale history depends on them.
func (s *Service) Delete(ctx context.Context, id string, actor domain.Actor) error {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionDelete, policy.EntityProduct, existing.CreatedBy); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Checked inside the delete transaction so a sale landing concurrently
	// cannot slip a reference in after the count.
	var refs int64
	if err := tx.GetContext(ctx, &refs, `SELECT COUNT(*) FROM sale_items WHERE product_id = ?`, id); err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: product %s is referenced by %d sale item(s)", domain.ErrHasSalesHistory, id, refs)
	}

	// Movements first, so no transaction ever points at a missing product.
	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_transactions WHERE product_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) Get(ctx context.Context, id string, actor domain.Actor) (*domain.Product, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityProduct); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.Product, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityProduct); err != nil {
		return nil, err
	}
	var products []domain.Product
	err := s.db.SelectContext(ctx, &products,
		`SELECT id, name, purchase_price, sale_price, current_stock, additional_costs, created_by, created_at, updated_at
		 FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*domain.Product, error) {
	return fetchProduct(ctx, s.db, id)
}

func fetchProduct(ctx context.Context, q sqlx.QueryerContext, id string) (*domain.Product, error) {
	var product domain.Product
	err := sqlx.GetContext(ctx, q, &product,
		`SELECT id, name, purchase_price, sale_price, current_stock, additional_costs, created_by, created_at, updated_at
		 FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}
