package core

import "github.com/shopspring/decimal"

// -----------------------------------------------------------------------------

// CalculateMean computes the arithmetic mean. Empty input yields zero.
func CalculateMean(data []decimal.Decimal) decimal.Decimal {
	if len(data) == 0 {
		return decimal.Zero
	}
	return CalculateSum(data).Div(decimal.NewFromInt(int64(len(data))))
}

// -----------------------------------------------------------------------------

func CalculateSum(data []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range data {
		sum = sum.Add(v)
	}
	return sum
}
