// Package money converts between shopspring decimals, used for all
// arithmetic, and BSON Decimal128, used for storage.
package money

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToDecimal128 converts d for storage. Amounts are kept to two places.
func ToDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		// StringFixed output is always a valid decimal literal.
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

// FromDecimal128 converts a stored value back; zero on unparseable input.
func FromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Parse reads an amount from client input. Empty means zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Sum adds stored values.
func Sum(vs ...primitive.Decimal128) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vs {
		total = total.Add(FromDecimal128(v))
	}
	return total
}
