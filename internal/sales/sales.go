// Package sales coordinates the multi-entity write behind recording a sale:
// one sale row, its items, and one outbound ledger movement per item, all in
// a single database transaction.
package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/config"
	"github.com/Gabiro3/curuza-pos2/internal/ledger"
	"github.com/Gabiro3/curuza-pos2/internal/policy"
)

type Service struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type ItemInput struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

type SaleInput struct {
	CustomerID    *string
	CustomerName  string
	SaleDate      string
	Items         []ItemInput
	PaymentMethod domain.PaymentMethod
	PaymentStatus domain.PaymentStatus
	Notes         string
}

// SaleRecord bundles a sale with its line items.
type SaleRecord struct {
	domain.Sale
	Items []domain.SaleItem `json:"items"`
}

func validateInput(input SaleInput) error {
	if input.CustomerName == "" {
		return fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: sale must contain at least one item", domain.ErrValidation)
	}
	if !input.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, input.PaymentMethod)
	}
	if !input.PaymentStatus.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, input.PaymentStatus)
	}
	for _, item := range input.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item product id is required", domain.ErrValidation)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", domain.ErrValidation)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item unit price cannot be negative", domain.ErrValidation)
		}
		if item.Discount.IsNegative() {
			return fmt.Errorf("%w: item discount cannot be negative", domain.ErrValidation)
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity))
		if item.Discount.GreaterThan(lineTotal) {
			return fmt.Errorf("%w: discount %s exceeds line total %s for product %s",
				domain.ErrValidation, item.Discount, lineTotal, item.ProductID)
		}
	}
	return nil
}

// RecordSale executes the whole sale as one transaction. Validation failures
// reject the request before any write. A stock movement that fails after the
// sale rows are written rolls the transaction back and surfaces as a
// PartialSaleError naming the offending item.
func (s *Service) RecordSale(ctx context.Context, input SaleInput, actor domain.Actor) (*SaleRecord, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntitySale); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Pre-flight checks against the authoritative stock, inside the same
	// transaction that will decrement it. Nothing has been written yet, so
	// a failure here is a plain rejection.
	for _, item := range input.Items {
		var stock int64
		err := tx.GetContext(ctx, &stock, `SELECT current_stock FROM products WHERE id = ?`, item.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, item.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if stock < item.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d unit(s), requested %d",
				domain.ErrInsufficientStock, item.ProductID, stock, item.Quantity)
		}
	}
	if input.CustomerID != nil {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = ?)`, *input.CustomerID); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, *input.CustomerID)
		}
	}

	total := decimal.Zero
	discountTotal := decimal.Zero
	for _, item := range input.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Sub(item.Discount))
		discountTotal = discountTotal.Add(item.Discount)
	}

	saleDate := input.SaleDate
	if saleDate == "" {
		saleDate = time.Now().Format("2006-01-02")
	}

	sale := domain.Sale{
		ID:             uuid.NewString(),
		CustomerID:     input.CustomerID,
		CustomerName:   input.CustomerName,
		SaleDate:       saleDate,
		TotalAmount:    total,
		DiscountAmount: discountTotal,
		PaymentMethod:  input.PaymentMethod,
		PaymentStatus:  input.PaymentStatus,
		Notes:          input.Notes,
		CreatedBy:      actor.UserID,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sales (id, customer_id, customer_name, sale_date, total_amount, discount_amount, payment_method, payment_status, notes, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.CustomerID, sale.CustomerName, sale.SaleDate, sale.TotalAmount, sale.DiscountAmount,
		sale.PaymentMethod, sale.PaymentStatus, sale.Notes, sale.CreatedBy)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SaleItem, 0, len(input.Items))
	for _, item := range input.Items {
		saleItem := domain.SaleItem{
			ID:        uuid.NewString(),
			SaleID:    sale.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
			Discount:  item.Discount,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sale_items (id, sale_id, product_id, quantity, price, discount)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			saleItem.ID, saleItem.SaleID, saleItem.ProductID, saleItem.Quantity, saleItem.Price, saleItem.Discount)
		if err != nil {
			return nil, err
		}
		items = append(items, saleItem)
	}

	// Movements last. If stock raced away between the pre-flight check and
	// here, the rollback undoes the sale rows above and the caller learns
	// exactly which item failed.
	for _, item := range input.Items {
		notes := "Sale: " + input.CustomerName
		if _, err := ledger.RecordMovementTx(ctx, tx, item.ProductID, item.Quantity, domain.TransactionOut, notes, actor.UserID); err != nil {
			config.LogError(config.GetLogger(), "sales", "RecordSale", err)
			return nil, &domain.PartialSaleError{ProductID: item.ProductID, Quantity: item.Quantity, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &SaleRecord{Sale: sale, Items: items}, nil
}

// Get returns one sale with its items.
func (s *Service) Get(ctx context.Context, id string, actor domain.Actor) (*SaleRecord, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntitySale); err != nil {
		return nil, err
	}
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale,
		`SELECT id, customer_id, customer_name, sale_date, total_amount, discount_amount, payment_method, payment_status, notes, created_by, created_at
		 FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sale %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var items []domain.SaleItem
	err = s.db.SelectContext(ctx, &items,
		`SELECT id, sale_id, product_id, quantity, price, discount FROM sale_items WHERE sale_id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &SaleRecord{Sale: sale, Items: items}, nil
}

// List returns sales newest first, optionally bounded by sale_date.
func (s *Service) List(ctx context.Context, from, to string, actor domain.Actor) ([]domain.Sale, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntitySale); err != nil {
		return nil, err
	}
	query := `SELECT id, customer_id, customer_name, sale_date, total_amount, discount_amount, payment_method, payment_status, notes, created_by, created_at FROM sales`
	var clauses []string
	var args []any
	if from != "" {
		clauses = append(clauses, "sale_date >= ?")
		args = append(args, from)
	}
	if to != "" {
		clauses = append(clauses, "sale_date <= ?")
		args = append(args, to)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	var sales []domain.Sale
	if err := s.db.SelectContext(ctx, &sales, query, args...); err != nil {
		return nil, err
	}
	return sales, nil
}
