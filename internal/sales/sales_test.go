package sales

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/catalog"
	"github.com/Gabiro3/curuza-pos2/internal/customers"
	"github.com/Gabiro3/curuza-pos2/internal/ledger"
	"github.com/Gabiro3/curuza-pos2/internal/migrations"
)

var clerk = domain.Actor{UserID: "clerk-1", Role: domain.RoleUser}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	migrations.Run(db)
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newProduct(t *testing.T, db *sqlx.DB, name string, stock int64) *domain.Product {
	t.Helper()
	product, err := catalog.New(db).Create(context.Background(), catalog.CreateInput{
		Name:          name,
		PurchasePrice: dec(70),
		SalePrice:     dec(100),
		InitialStock:  stock,
	}, clerk)
	require.NoError(t, err)
	return product
}

func tableCount(t *testing.T, db *sqlx.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func TestRecordSale(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	product := newProduct(t, db, "Fanta Citron", 10)

	sale, err := s.RecordSale(ctx, SaleInput{
		CustomerName:  "Mukamana Alice",
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 3, UnitPrice: dec(100), Discount: dec(10)}},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}, clerk)
	require.NoError(t, err)

	assert.True(t, sale.TotalAmount.Equal(dec(290)), "total was %s", sale.TotalAmount)
	assert.True(t, sale.DiscountAmount.Equal(dec(10)))
	require.Len(t, sale.Items, 1)
	assert.Equal(t, int64(3), sale.Items[0].Quantity)
	assert.True(t, sale.Items[0].Price.Equal(dec(100)))

	// Stock decremented and the movement logged with the customer snapshot.
	live, replayed, err := ledger.New(db).Verify(ctx, product.ID, clerk)
	require.NoError(t, err)
	assert.Equal(t, int64(7), live)
	assert.Equal(t, live, replayed)

	var notes string
	require.NoError(t, db.Get(&notes,
		`SELECT notes FROM inventory_transactions WHERE product_id = ? AND transaction_type = 'out'`, product.ID))
	assert.Equal(t, "Sale: Mukamana Alice", notes)

	// Round trip through Get.
	got, err := s.Get(ctx, sale.ID, clerk)
	require.NoError(t, err)
	assert.Equal(t, "Mukamana Alice", got.CustomerName)
	require.Len(t, got.Items, 1)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	product := newProduct(t, db, "Primus 72cl", 7)

	_, err := s.RecordSale(context.Background(), SaleInput{
		CustomerName:  "Walk-in",
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 8, UnitPrice: dec(100)}},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}, clerk)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Rejected before any write.
	assert.Equal(t, int64(0), tableCount(t, db, "sales"))
	assert.Equal(t, int64(0), tableCount(t, db, "sale_items"))
	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT current_stock FROM products WHERE id = ?`, product.ID))
	assert.Equal(t, int64(7), stock)
	var outMovements int64
	require.NoError(t, db.Get(&outMovements,
		`SELECT COUNT(*) FROM inventory_transactions WHERE transaction_type = 'out'`))
	assert.Equal(t, int64(0), outMovements)
}

func TestRecordSaleAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	plenty := newProduct(t, db, "Plenty", 100)
	scarce := newProduct(t, db, "Scarce", 1)

	_, err := s.RecordSale(context.Background(), SaleInput{
		CustomerName: "Walk-in",
		Items: []ItemInput{
			{ProductID: plenty.ID, Quantity: 10, UnitPrice: dec(100)},
			{ProductID: scarce.ID, Quantity: 2, UnitPrice: dec(100)},
		},
		PaymentMethod: domain.PaymentCard,
		PaymentStatus: domain.PaymentPending,
	}, clerk)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	// The passing item must not have been decremented either.
	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT current_stock FROM products WHERE id = ?`, plenty.ID))
	assert.Equal(t, int64(100), stock)
	assert.Equal(t, int64(0), tableCount(t, db, "sales"))
	assert.Equal(t, int64(0), tableCount(t, db, "sale_items"))
}

func TestRecordSalePartialFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	product := newProduct(t, db, "Twice Listed", 7)

	// Each line passes the per-item pre-flight on its own, so the sale and
	// its items are persisted before the second movement finds the stock
	// already spent. That failure must undo everything.
	_, err := s.RecordSale(context.Background(), SaleInput{
		CustomerName: "Walk-in",
		Items: []ItemInput{
			{ProductID: product.ID, Quantity: 5, UnitPrice: dec(100)},
			{ProductID: product.ID, Quantity: 5, UnitPrice: dec(100)},
		},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}, clerk)

	var partial *domain.PartialSaleError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, product.ID, partial.ProductID)
	assert.Equal(t, int64(5), partial.Quantity)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(0), tableCount(t, db, "sales"))
	assert.Equal(t, int64(0), tableCount(t, db, "sale_items"))
	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT current_stock FROM products WHERE id = ?`, product.ID))
	assert.Equal(t, int64(7), stock)

	// The rolled-back decrement left no movement behind either.
	var outMovements int64
	require.NoError(t, db.Get(&outMovements,
		`SELECT COUNT(*) FROM inventory_transactions WHERE transaction_type = 'out'`))
	assert.Equal(t, int64(0), outMovements)

	live, replayed, verr := ledger.New(db).Verify(context.Background(), product.ID, clerk)
	require.NoError(t, verr)
	assert.Equal(t, live, replayed)
}

func TestRecordSaleMultiItemTotals(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	a := newProduct(t, db, "Item A", 20)
	b := newProduct(t, db, "Item B", 20)

	sale, err := s.RecordSale(context.Background(), SaleInput{
		CustomerName: "Uwimana Jean",
		Items: []ItemInput{
			{ProductID: a.ID, Quantity: 2, UnitPrice: decimal.NewFromFloat(150.50), Discount: dec(1)},
			{ProductID: b.ID, Quantity: 5, UnitPrice: dec(40), Discount: dec(0)},
		},
		PaymentMethod: domain.PaymentTransfer,
		PaymentStatus: domain.PaymentPartial,
	}, clerk)
	require.NoError(t, err)

	// 2*150.50 - 1 + 5*40 = 500
	assert.True(t, sale.TotalAmount.Equal(dec(500)), "total was %s", sale.TotalAmount)
	assert.True(t, sale.DiscountAmount.Equal(dec(1)))
	assert.Equal(t, int64(2), tableCount(t, db, "sale_items"))
}

func TestRecordSaleValidation(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	product := newProduct(t, db, "Valid Product", 10)

	base := SaleInput{
		CustomerName:  "Walk-in",
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: dec(100)}},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}

	cases := []struct {
		name   string
		mutate func(*SaleInput)
	}{
		{"missing customer name", func(in *SaleInput) { in.CustomerName = "" }},
		{"no items", func(in *SaleInput) { in.Items = nil }},
		{"zero quantity", func(in *SaleInput) { in.Items[0].Quantity = 0 }},
		{"negative price", func(in *SaleInput) { in.Items[0].UnitPrice = dec(-1) }},
		{"negative discount", func(in *SaleInput) { in.Items[0].Discount = dec(-1) }},
		{"discount exceeds line total", func(in *SaleInput) { in.Items[0].Discount = dec(101) }},
		{"bad payment method", func(in *SaleInput) { in.PaymentMethod = "barter" }},
		{"bad payment status", func(in *SaleInput) { in.PaymentStatus = "maybe" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := base
			input.Items = []ItemInput{base.Items[0]}
			tc.mutate(&input)
			_, err := s.RecordSale(ctx, input, clerk)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	// Nothing was written by any of the rejected attempts.
	assert.Equal(t, int64(0), tableCount(t, db, "sales"))
}

func TestRecordSaleUnknownProductAndCustomer(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	product := newProduct(t, db, "Known", 5)

	_, err := s.RecordSale(ctx, SaleInput{
		CustomerName:  "Walk-in",
		Items:         []ItemInput{{ProductID: "ghost", Quantity: 1, UnitPrice: dec(10)}},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}, clerk)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ghostCustomer := "no-such-customer"
	_, err = s.RecordSale(ctx, SaleInput{
		CustomerID:    &ghostCustomer,
		CustomerName:  "Ghost",
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: dec(10)}},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}, clerk)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordSaleWithCustomerReference(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	product := newProduct(t, db, "Referenced", 5)

	customer, err := customers.New(db).Create(ctx, customers.Input{Name: "Keza Diane"}, clerk)
	require.NoError(t, err)

	sale, err := s.RecordSale(ctx, SaleInput{
		CustomerID:    &customer.ID,
		CustomerName:  customer.Name,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: dec(100)}},
		PaymentMethod: domain.PaymentCash,
		PaymentStatus: domain.PaymentPaid,
	}, clerk)
	require.NoError(t, err)
	require.NotNil(t, sale.CustomerID)
	assert.Equal(t, customer.ID, *sale.CustomerID)

	// Deleting the customer leaves the sale's snapshot readable.
	require.NoError(t, customers.New(db).Delete(ctx, customer.ID, clerk))
	got, err := s.Get(ctx, sale.ID, clerk)
	require.NoError(t, err)
	assert.Equal(t, "Keza Diane", got.CustomerName)
}

func TestListSalesByDate(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	product := newProduct(t, db, "Dated", 50)

	for _, date := range []string{"2026-08-01", "2026-08-15", "2026-09-01"} {
		_, err := s.RecordSale(ctx, SaleInput{
			CustomerName:  "Walk-in",
			SaleDate:      date,
			Items:         []ItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: dec(100)}},
			PaymentMethod: domain.PaymentCash,
			PaymentStatus: domain.PaymentPaid,
		}, clerk)
		require.NoError(t, err)
	}

	august, err := s.List(ctx, "2026-08-01", "2026-08-31", clerk)
	require.NoError(t, err)
	assert.Len(t, august, 2)

	all, err := s.List(ctx, "", "", clerk)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
