// Package ledger maintains the append-only inventory transaction log and the
// current_stock projection derived from it. Every stock change in the system,
// however triggered, goes through here so that the audit log and the live
// value can never drift apart.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/policy"
)

type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordMovement appends an inventory transaction and adjusts the product's
// current stock in one database transaction.
func (l *Ledger) RecordMovement(ctx context.Context, productID string, quantity int64, txType domain.TransactionType, notes string, actor domain.Actor) (*domain.InventoryTransaction, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntityMovement); err != nil {
		return nil, err
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	mv, err := RecordMovementTx(ctx, tx, productID, quantity, txType, notes, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return mv, nil
}

// RecordMovementTx is RecordMovement inside a caller-owned transaction. The
// sale coordinator and plan completion use it so their multi-entity writes
// commit or roll back as one unit. The stock check and the decrement share a
// single conditional UPDATE, so concurrent writers cannot both pass the check.
func RecordMovementTx(ctx context.Context, tx *sqlx.Tx, productID string, quantity int64, txType domain.TransactionType, notes, createdBy string) (*domain.InventoryTransaction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: movement quantity must be positive", domain.ErrValidation)
	}
	if !txType.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, txType)
	}

	var res sql.Result
	var err error
	if txType == domain.TransactionOut {
		res, err = tx.ExecContext(ctx,
			`UPDATE products SET current_stock = current_stock - ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND current_stock >= ?`,
			quantity, productID, quantity)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE products SET current_stock = current_stock + ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			quantity, productID)
	}
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var stock int64
		err := tx.GetContext(ctx, &stock, `SELECT current_stock FROM products WHERE id = ?`, productID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: product %s has %d unit(s), requested %d", domain.ErrInsufficientStock, productID, stock, quantity)
	}

	mv := &domain.InventoryTransaction{
		ID:              uuid.NewString(),
		ProductID:       productID,
		Quantity:        quantity,
		TransactionType: txType,
		TransactionDate: time.Now().Format("2006-01-02"),
		Notes:           notes,
		CreatedBy:       createdBy,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_transactions (id, product_id, quantity, transaction_type, transaction_date, notes, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.ProductID, mv.Quantity, mv.TransactionType, mv.TransactionDate, mv.Notes, mv.CreatedBy)
	if err != nil {
		return nil, err
	}
	return mv, nil
}

// ReconcileAdjustment converts a direct stock-value edit into an equivalent
// movement, so the edit still leaves exactly one audit entry. Setting the
// stock to its current value is a no-op and returns a nil movement.
func (l *Ledger) ReconcileAdjustment(ctx context.Context, productID string, newStock int64, notes string, actor domain.Actor) (*domain.InventoryTransaction, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntityMovement); err != nil {
		return nil, err
	}
	if newStock < 0 {
		return nil, fmt.Errorf("%w: stock level cannot be negative", domain.ErrValidation)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	mv, err := ReconcileAdjustmentTx(ctx, tx, productID, newStock, notes, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return mv, nil
}

// ReconcileAdjustmentTx is ReconcileAdjustment inside a caller-owned
// transaction.
func ReconcileAdjustmentTx(ctx context.Context, tx *sqlx.Tx, productID string, newStock int64, notes, createdBy string) (*domain.InventoryTransaction, error) {
	if newStock < 0 {
		return nil, fmt.Errorf("%w: stock level cannot be negative", domain.ErrValidation)
	}
	var current int64
	err := tx.GetContext(ctx, &current, `SELECT current_stock FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}

	delta := newStock - current
	if delta == 0 {
		return nil, nil
	}
	if notes == "" {
		notes = "Stock adjustment"
	}
	if delta > 0 {
		return RecordMovementTx(ctx, tx, productID, delta, domain.TransactionIn, notes, createdBy)
	}
	return RecordMovementTx(ctx, tx, productID, -delta, domain.TransactionOut, notes, createdBy)
}

// History returns the product's movements, newest first.
func (l *Ledger) History(ctx context.Context, productID string, actor domain.Actor) ([]domain.InventoryTransaction, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityMovement); err != nil {
		return nil, err
	}
	var exists bool
	if err := l.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, productID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	var movements []domain.InventoryTransaction
	err := l.db.SelectContext(ctx, &movements,
		`SELECT id, product_id, quantity, transaction_type, transaction_date, notes, created_by, created_at
		 FROM inventory_transactions WHERE product_id = ? ORDER BY created_at DESC, rowid DESC`, productID)
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// Rebuild replays the product's transaction log and returns the stock level
// it implies. Products enter the ledger at zero stock (initial stock is
// itself a movement), so the replayed sum is the whole truth.
func (l *Ledger) Rebuild(ctx context.Context, productID string, actor domain.Actor) (int64, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityMovement); err != nil {
		return 0, err
	}
	var exists bool
	if err := l.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, productID); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	var replayed int64
	err := l.db.GetContext(ctx, &replayed,
		`SELECT COALESCE(SUM(CASE WHEN transaction_type = 'in' THEN quantity ELSE -quantity END), 0)
		 FROM inventory_transactions WHERE product_id = ?`, productID)
	if err != nil {
		return 0, err
	}
	return replayed, nil
}

// Verify compares the live current_stock against the replayed ledger and
// reports both values. A mismatch means the projection invariant is broken.
func (l *Ledger) Verify(ctx context.Context, productID string, actor domain.Actor) (live, replayed int64, err error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityMovement); err != nil {
		return 0, 0, err
	}
	err = l.db.GetContext(ctx, &live, `SELECT current_stock FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return 0, 0, err
	}
	replayed, err = l.Rebuild(ctx, productID, actor)
	if err != nil {
		return 0, 0, err
	}
	return live, replayed, nil
}
