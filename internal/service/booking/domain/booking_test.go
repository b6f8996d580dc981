package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking(NewBookingParams{
		CorrelationID: "cid-1",
		CustomerName:  "Asha",
		Gender:        GenderFemale,
		DateOfBirth:   "1990-05-17",
		Services: []ServiceItem{
			{ID: "x-ray", Name: "X-Ray Imaging", Price: 800},
			{ID: "ecg", Name: "ECG/EKG Test", Price: 400},
		},
	})
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newTestBooking(t)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, int64(1200), b.BasePrice)
	assert.Equal(t, int64(1200), b.FinalPrice)
	assert.False(t, b.DiscountApplied)
}

func TestNewBookingValidation(t *testing.T) {
	valid := NewBookingParams{
		CorrelationID: "cid",
		CustomerName:  "Ravi",
		Gender:        GenderMale,
		DateOfBirth:   "1985-01-02",
		Services:      []ServiceItem{{ID: "ecg", Price: 400}},
	}

	tests := []struct {
		name   string
		mutate func(p *NewBookingParams)
	}{
		{"missing correlation id", func(p *NewBookingParams) { p.CorrelationID = "" }},
		{"blank name", func(p *NewBookingParams) { p.CustomerName = "  " }},
		{"bad gender", func(p *NewBookingParams) { p.Gender = "other" }},
		{"bad date of birth", func(p *NewBookingParams) { p.DateOfBirth = "17/05/1990" }},
		{"no services", func(p *NewBookingParams) { p.Services = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := NewBooking(p)
			assert.ErrorIs(t, err, ErrInvalidBooking)
		})
	}
}

func TestParseDateOfBirthAcceptsRFC3339(t *testing.T) {
	d, err := ParseDateOfBirth("1990-05-17T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 17, d.Day())
}

func TestHappyPathTransitions(t *testing.T) {
	b := newTestBooking(t)

	require.NoError(t, b.ApplyPricing(1200, true))
	assert.Equal(t, StatusPricingCalculated, b.Status)
	assert.Equal(t, int64(1200), b.FinalPrice, "eligibility alone must not change the price")

	require.NoError(t, b.ApplyDiscount(144, "2025-03-10"))
	assert.Equal(t, StatusQuotaReserved, b.Status)
	assert.True(t, b.DiscountApplied)
	assert.Equal(t, int64(1056), b.FinalPrice)
	assert.Equal(t, "2025-03-10", b.QuotaDateKey)

	require.NoError(t, b.MarkPaymentCompleted())
	require.NoError(t, b.Confirm("MC-ABC-1234"))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.True(t, b.IsComplete())
	assert.Equal(t, "MC-ABC-1234", b.ReferenceID)
}

func TestApplyDiscountRequiresEligibility(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.ApplyPricing(1200, false))

	err := b.ApplyDiscount(100, "2025-03-10")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPricingCalculated, b.Status)

	require.NoError(t, b.ProceedWithoutDiscount())
	assert.Equal(t, StatusQuotaReserved, b.Status)
	assert.Equal(t, int64(1200), b.FinalPrice)
}

func TestApplyDiscountRejectsOutOfRangeAmount(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.ApplyPricing(1200, true))
	assert.ErrorIs(t, b.ApplyDiscount(1201, "d"), ErrInvalidTransition)
	assert.ErrorIs(t, b.ApplyDiscount(-1, "d"), ErrInvalidTransition)
}

func TestOutOfOrderTransitionsAreRejected(t *testing.T) {
	b := newTestBooking(t)
	assert.ErrorIs(t, b.MarkPaymentCompleted(), ErrInvalidTransition)
	assert.ErrorIs(t, b.Confirm("MC-1"), ErrInvalidTransition)
	assert.ErrorIs(t, b.RejectQuota(), ErrInvalidTransition)
	assert.Equal(t, StatusPending, b.Status)
}

func TestFailIsTerminal(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.Fail(""))
	assert.Equal(t, StatusFailed, b.Status)
	assert.Equal(t, "Booking failed", b.ErrorMessage)

	assert.ErrorIs(t, b.Fail("again"), ErrInvalidTransition)
	assert.ErrorIs(t, b.ApplyPricing(1, false), ErrInvalidTransition)
}

func TestConfirmedBookingCannotFail(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.ApplyPricing(1200, false))
	require.NoError(t, b.ProceedWithoutDiscount())
	require.NoError(t, b.MarkPaymentCompleted())
	require.NoError(t, b.Confirm("MC-1"))

	assert.ErrorIs(t, b.Fail("late"), ErrInvalidTransition)
	assert.Equal(t, "MC-1", b.ReferenceID)
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPaymentFailed.IsTerminal())
	assert.True(t, StatusQuotaRejected.Valid())
	assert.False(t, Status("shipped").Valid())
}
