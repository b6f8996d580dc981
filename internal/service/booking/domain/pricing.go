package domain

import "math"

// CalculateDiscount 折扣金额按百分比四舍五入到整数卢比，并限制在 [0, basePrice]
func CalculateDiscount(basePrice int64, percentage float64) int64 {
	if basePrice <= 0 || percentage <= 0 || math.IsNaN(percentage) {
		return 0
	}
	amount := int64(math.Round(float64(basePrice) * percentage / 100))
	if amount > basePrice {
		return basePrice
	}
	return amount
}
