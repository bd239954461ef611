package models

import "github.com/shopspring/decimal"

// NewDecimal creates a decimal from float64
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// ToFloat64 safely converts a decimal to float64
func ToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
