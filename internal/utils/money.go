package utils

import (
	"fmt"
	"math"
)

// FormatMoney keeps consistent decimal formatting for currency fields.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// SameAmount compares two amounts at cent precision.
func SameAmount(a, b float64) bool {
	return math.Abs(RoundMoney(a)-RoundMoney(b)) < 0.005
}
