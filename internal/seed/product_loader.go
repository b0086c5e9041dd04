package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LoadProducts ingests a product catalog CSV (name, purchase_price,
// sale_price, initial_stock) into empty databases. Rows with stock get a
// matching "Initial stock" movement so the ledger invariant holds from the
// first insert.
func LoadProducts(db *sqlx.DB, csvPath string) {
	if csvPath == "" {
		return
	}
	var existing int64
	if err := db.Get(&existing, `SELECT COUNT(*) FROM products`); err != nil || existing > 0 {
		return
	}

	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load product catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read product header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start product seed transaction: %v", err)
		return
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read product row: %v", err)
			continue
		}
		if len(record) < 4 {
			continue
		}
		name := strings.TrimSpace(record[0])
		purchasePrice := strings.TrimSpace(record[1])
		salePrice := strings.TrimSpace(record[2])
		stock, _ := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
		if name == "" {
			continue
		}

		id := uuid.NewString()
		if _, err := tx.Exec(
			`INSERT INTO products (id, name, purchase_price, sale_price, current_stock, additional_costs, created_by)
			 VALUES (?, ?, ?, ?, ?, '[]', 'seed')`,
			id, name, purchasePrice, salePrice, stock); err != nil {
			log.Printf("unable to insert product %s: %v", name, err)
			continue
		}
		if stock > 0 {
			if _, err := tx.Exec(
				`INSERT INTO inventory_transactions (id, product_id, quantity, transaction_type, transaction_date, notes, created_by)
				 VALUES (?, ?, ?, 'in', DATE('now'), 'Initial stock', 'seed')`,
				uuid.NewString(), id, stock); err != nil {
				log.Printf("unable to insert opening movement for %s: %v", name, err)
			}
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit product seed: %v", err)
	} else {
		log.Printf("seeded product catalog with %d rows", rows)
	}
}
