package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/migrations"
)

var (
	admin = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	clerk = domain.Actor{UserID: "clerk-1", Role: domain.RoleUser}
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	migrations.Run(db)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedProduct inserts a product and, when stock is given, the matching
// opening movement, keeping the ledger invariant intact from the start.
func seedProduct(t *testing.T, db *sqlx.DB, name string, stock int64) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO products (id, name, purchase_price, sale_price, current_stock, additional_costs, created_by)
		 VALUES (?, ?, 50, 100, ?, '[]', 'admin-1')`, id, name, stock)
	require.NoError(t, err)
	if stock > 0 {
		_, err = db.Exec(
			`INSERT INTO inventory_transactions (id, product_id, quantity, transaction_type, transaction_date, notes, created_by)
			 VALUES (?, ?, ?, 'in', DATE('now'), 'Initial stock', 'admin-1')`,
			uuid.NewString(), id, stock)
		require.NoError(t, err)
	}
	return id
}

func currentStock(t *testing.T, db *sqlx.DB, productID string) int64 {
	t.Helper()
	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT current_stock FROM products WHERE id = ?`, productID))
	return stock
}

func movementCount(t *testing.T, db *sqlx.DB, productID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM inventory_transactions WHERE product_id = ?`, productID))
	return n
}

func TestRecordMovementAdjustsStock(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Sugar 1kg", 10)

	mv, err := l.RecordMovement(ctx, productID, 5, domain.TransactionIn, "Restock", clerk)
	require.NoError(t, err)
	assert.Equal(t, int64(5), mv.Quantity)
	assert.Equal(t, domain.TransactionIn, mv.TransactionType)
	assert.Equal(t, "clerk-1", mv.CreatedBy)
	assert.Equal(t, int64(15), currentStock(t, db, productID))

	mv, err = l.RecordMovement(ctx, productID, 3, domain.TransactionOut, "Damage", clerk)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionOut, mv.TransactionType)
	assert.Equal(t, int64(12), currentStock(t, db, productID))

	assert.Equal(t, int64(3), movementCount(t, db, productID))
}

func TestRecordMovementInsufficientStock(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Rice 5kg", 7)

	_, err := l.RecordMovement(ctx, productID, 8, domain.TransactionOut, "", clerk)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	// No side effects: stock and log untouched.
	assert.Equal(t, int64(7), currentStock(t, db, productID))
	assert.Equal(t, int64(1), movementCount(t, db, productID))
}

func TestRecordMovementUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	l := New(db)

	_, err := l.RecordMovement(context.Background(), "no-such-id", 1, domain.TransactionIn, "", admin)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordMovementValidation(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Salt", 4)

	_, err := l.RecordMovement(ctx, productID, 0, domain.TransactionIn, "", admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.RecordMovement(ctx, productID, -2, domain.TransactionOut, "", admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.RecordMovement(ctx, productID, 1, domain.TransactionType("sideways"), "", admin)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecordMovementUnauthenticatedRole(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	productID := seedProduct(t, db, "Oil 1L", 4)

	nobody := domain.Actor{UserID: "x", Role: domain.Role("guest")}
	_, err := l.RecordMovement(context.Background(), productID, 1, domain.TransactionIn, "", nobody)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int64(4), currentStock(t, db, productID))
}

func TestReconcileAdjustment(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Soap", 7)

	// Raising 7 -> 12 appends a single inbound movement of 5.
	mv, err := l.ReconcileAdjustment(ctx, productID, 12, "Stock adjustment during product edit", admin)
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.Equal(t, domain.TransactionIn, mv.TransactionType)
	assert.Equal(t, int64(5), mv.Quantity)
	assert.Equal(t, "Stock adjustment during product edit", mv.Notes)
	assert.Equal(t, int64(12), currentStock(t, db, productID))

	// Same value again is a no-op.
	mv, err = l.ReconcileAdjustment(ctx, productID, 12, "", admin)
	require.NoError(t, err)
	assert.Nil(t, mv)
	assert.Equal(t, int64(2), movementCount(t, db, productID))

	// Lowering produces an outbound movement.
	mv, err = l.ReconcileAdjustment(ctx, productID, 4, "", admin)
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.Equal(t, domain.TransactionOut, mv.TransactionType)
	assert.Equal(t, int64(8), mv.Quantity)
	assert.Equal(t, "Stock adjustment", mv.Notes)
	assert.Equal(t, int64(4), currentStock(t, db, productID))

	_, err = l.ReconcileAdjustment(ctx, productID, -1, "", admin)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRebuildMatchesLiveStock(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Flour 10kg", 10)

	_, err := l.RecordMovement(ctx, productID, 6, domain.TransactionIn, "", admin)
	require.NoError(t, err)
	_, err = l.RecordMovement(ctx, productID, 9, domain.TransactionOut, "", admin)
	require.NoError(t, err)
	_, err = l.ReconcileAdjustment(ctx, productID, 20, "", admin)
	require.NoError(t, err)
	_, err = l.RecordMovement(ctx, productID, 20, domain.TransactionOut, "", admin)
	require.NoError(t, err)

	live, replayed, err := l.Verify(ctx, productID, clerk)
	require.NoError(t, err)
	assert.Equal(t, live, replayed)
	assert.Equal(t, int64(0), live)
}

func TestRebuildAndVerifyRequireMovementRead(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Matches", 2)

	nobody := domain.Actor{UserID: "x", Role: domain.Role("guest")}
	_, err := l.Rebuild(ctx, productID, nobody)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = l.Verify(ctx, productID, nobody)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	replayed, err := l.Rebuild(ctx, productID, clerk)
	require.NoError(t, err)
	assert.Equal(t, int64(2), replayed)
}

func TestHistoryOrderAndNotFound(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	productID := seedProduct(t, db, "Tea", 3)

	_, err := l.RecordMovement(ctx, productID, 2, domain.TransactionOut, "Sale: walk-in", clerk)
	require.NoError(t, err)

	history, err := l.History(ctx, productID, clerk)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TransactionOut, history[0].TransactionType)
	assert.Equal(t, "Sale: walk-in", history[0].Notes)

	_, err = l.History(ctx, "missing", clerk)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
