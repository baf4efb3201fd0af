package model

import (
	"github.com/shopspring/decimal"
)

// ReusableBillingRate is the share of a reusable material's unit price billed per procedure.
var ReusableBillingRate = decimal.RequireFromString("0.10")

type Material struct {
	Base
	Name      string          `db:"name" json:"name" validate:"notblank,max=100"`
	Quantity  int             `db:"quantity" json:"quantity" validate:"gte=0"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Reusable  bool            `db:"reusable" json:"reusable"`
}

// ProcedureValue is the amount billed for one use of the material.
func (m *Material) ProcedureValue() decimal.Decimal {
	return procedureValue(m.UnitPrice, m.Reusable)
}

// HasStock reports whether at least amount units are available.
func (m *Material) HasStock(amount int) bool {
	return m.Quantity >= amount
}

// Consumable reports whether a procedure using the material draws down its stock.
func (m *Material) Consumable() bool {
	return !m.Reusable
}

// HasCents reports whether d fits the two decimal places money and durations
// are stored with.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func procedureValue(unitPrice decimal.Decimal, reusable bool) decimal.Decimal {
	if reusable {
		return unitPrice.Mul(ReusableBillingRate)
	}
	return unitPrice
}

// MaterialRequest is validated by the service once the target material is known.
type MaterialRequest struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reusable  bool            `json:"reusable"`
}

type StockRequest struct {
	Amount int `json:"amount" form:"amount"`
}

type StockCheck struct {
	MaterialID string `json:"material_id"`
	Needed     int    `json:"needed"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

type MaterialFilter struct {
	Name        string
	// Reusable restricts results to the given flag.
	Reusable    *bool
	// MaxQuantity keeps materials with quantity <= MaxQuantity (low stock).
	MaxQuantity *int
	// MinQuantity keeps materials with quantity > MinQuantity (available stock).
	MinQuantity *int
}
