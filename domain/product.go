package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AdditionalCost is an extra line cost attached to a product (transport,
// packaging, customs and the like).
type AdditionalCost struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// AdditionalCosts is stored as a JSON array in a single column.
type AdditionalCosts []AdditionalCost

func (c AdditionalCosts) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *AdditionalCosts) Scan(src any) error {
	if src == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("additional_costs: unsupported scan type %T", src)
	}
	if len(data) == 0 {
		*c = nil
		return nil
	}
	return json.Unmarshal(data, c)
}

// Product is a catalog entry plus its live stock level. CurrentStock is a
// projection of the product's inventory transactions, never edited on its own.
type Product struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	PurchasePrice   decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	SalePrice       decimal.Decimal `db:"sale_price" json:"sale_price"`
	CurrentStock    int64           `db:"current_stock" json:"current_stock"`
	AdditionalCosts AdditionalCosts `db:"additional_costs" json:"additional_costs"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	CreatedAt       string          `db:"created_at" json:"created_at"`
	UpdatedAt       string          `db:"updated_at" json:"updated_at"`
}
