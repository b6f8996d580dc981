package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name string
		base int64
		pct  float64
		want int64
	}{
		{"default twelve percent", 1200, 12, 144},
		{"rounds half away from zero", 1005, 10, 101},
		{"rounds to nearest rupee", 1100, 12, 132},
		{"fractional result rounds", 1001, 12, 120},
		{"zero percent", 1000, 0, 0},
		{"full discount", 1000, 100, 1000},
		{"clamped above base", 1000, 150, 1000},
		{"negative percent", 1000, -5, 0},
		{"zero base", 0, 12, 0},
		{"nan percent", 1000, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateDiscount(tt.base, tt.pct))
		})
	}
}

func TestSumPrices(t *testing.T) {
	assert.Equal(t, int64(0), SumPrices(nil))
	assert.Equal(t, int64(1700), SumPrices([]ServiceItem{{Price: 500}, {Price: 1200}}))
}

// 与 property 标签下的随机版本相同的不变量，固定取值，默认就会运行
func TestPriceInvariantOnFixedSamples(t *testing.T) {
	bases := []int64{0, 1, 299, 500, 999, 1000, 1001, 1200, 123457}
	pcts := []float64{0, 0.5, 12, 12.5, 33.3, 99.9, 100}
	outcomes := []string{"discount", "no-discount", "rejected"}

	for _, base := range bases {
		for _, pct := range pcts {
			for _, outcome := range outcomes {
				b, err := NewBooking(NewBookingParams{
					CorrelationID: "cid",
					CustomerName:  "P",
					Gender:        GenderFemale,
					DateOfBirth:   "1990-01-01",
					Services:      []ServiceItem{{ID: "s", Price: base}},
				})
				if !assert.NoError(t, err) {
					return
				}
				eligible := outcome != "no-discount"
				if !assert.NoError(t, b.ApplyPricing(base, eligible)) {
					return
				}
				switch outcome {
				case "discount":
					assert.NoError(t, b.ApplyDiscount(CalculateDiscount(base, pct), "2025-01-01"))
				case "no-discount":
					assert.NoError(t, b.ProceedWithoutDiscount())
				case "rejected":
					assert.NoError(t, b.RejectQuota())
				}

				assert.Equal(t, b.BasePrice-b.DiscountAmount, b.FinalPrice, "base=%d pct=%v %s", base, pct, outcome)
				if !b.DiscountApplied {
					assert.Zero(t, b.DiscountAmount, "base=%d pct=%v %s", base, pct, outcome)
				}
				assert.GreaterOrEqual(t, b.DiscountAmount, int64(0))
				assert.LessOrEqual(t, b.DiscountAmount, b.BasePrice)
			}
		}
	}
}
