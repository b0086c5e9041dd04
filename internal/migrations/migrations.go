package migrations

import (
	"log"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema required for the POS backend.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('admin', 'user')),
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			purchase_price NUMERIC NOT NULL DEFAULT 0,
			sale_price NUMERIC NOT NULL DEFAULT 0,
			current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
			additional_costs TEXT NOT NULL DEFAULT '[]',
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			transaction_type TEXT NOT NULL CHECK (transaction_type IN ('in', 'out')),
			transaction_date TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_transactions_product ON inventory_transactions(product_id);`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			customer_id TEXT,
			customer_name TEXT NOT NULL,
			sale_date TEXT NOT NULL,
			total_amount NUMERIC NOT NULL DEFAULT 0,
			discount_amount NUMERIC NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL CHECK (payment_method IN ('cash', 'card', 'transfer', 'other')),
			payment_status TEXT NOT NULL CHECK (payment_status IN ('paid', 'pending', 'partial')),
			notes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id TEXT PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			price NUMERIC NOT NULL DEFAULT 0,
			discount NUMERIC NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_product ON sale_items(product_id);`,
		`CREATE TABLE IF NOT EXISTS purchase_plans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			planned_date TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('draft', 'scheduled', 'completed', 'cancelled')),
			notes TEXT NOT NULL DEFAULT '',
			total_cost NUMERIC NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS purchase_plan_items (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL REFERENCES purchase_plans(id) ON DELETE CASCADE,
			product_id TEXT,
			prod_name TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_purchase_plan_items_plan ON purchase_plan_items(plan_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}
}
