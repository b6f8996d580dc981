package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestDefaultEligibilityRules(t *testing.T) {
	rules, err := NewEligibilityCELAdapter(nil, 0)
	require.NoError(t, err)
	today := date("2025-05-17")

	tests := []struct {
		name     string
		fact     port.EligibilityFact
		eligible bool
		rule     string
		reason   string
	}{
		{
			name:     "female on birthday",
			fact:     port.EligibilityFact{Gender: domain.GenderFemale, DateOfBirth: date("1990-05-17"), Today: today, BasePrice: 300},
			eligible: true,
			rule:     "birthday",
			reason:   "Birthday discount - Female customer on birthday",
		},
		{
			name: "male on birthday below threshold",
			fact: port.EligibilityFact{Gender: domain.GenderMale, DateOfBirth: date("1990-05-17"), Today: today, BasePrice: 300},
		},
		{
			name:     "order value above threshold",
			fact:     port.EligibilityFact{Gender: domain.GenderMale, DateOfBirth: date("1980-01-01"), Today: today, BasePrice: 1200},
			eligible: true,
			rule:     "order_value",
			reason:   "Order value discount - Base price ₹1200 exceeds ₹1000",
		},
		{
			name: "exactly at threshold is not eligible",
			fact: port.EligibilityFact{Gender: domain.GenderFemale, DateOfBirth: date("1980-01-01"), Today: today, BasePrice: 1000},
		},
		{
			name:     "birthday wins over order value",
			fact:     port.EligibilityFact{Gender: domain.GenderFemale, DateOfBirth: date("2000-05-17"), Today: today, BasePrice: 5000},
			eligible: true,
			rule:     "birthday",
			reason:   "Birthday discount - Female customer on birthday",
		},
		{
			name: "same day different month",
			fact: port.EligibilityFact{Gender: domain.GenderFemale, DateOfBirth: date("1990-06-17"), Today: today, BasePrice: 500},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rules.Evaluate(context.Background(), tt.fact)
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, got.Eligible)
			assert.Equal(t, tt.rule, got.Rule)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestCustomEligibilityRules(t *testing.T) {
	rules, err := NewEligibilityCELAdapter([]EligibilityRule{
		{Name: "big_spender", Condition: `base_price >= threshold * 2`, Reason: `"Big spender"`},
	}, 500)
	require.NoError(t, err)

	got, err := rules.Evaluate(context.Background(), port.EligibilityFact{Gender: domain.GenderMale, BasePrice: 1000})
	require.NoError(t, err)
	assert.True(t, got.Eligible)
	assert.Equal(t, "Big spender", got.Reason)

	got, err = rules.Evaluate(context.Background(), port.EligibilityFact{Gender: domain.GenderMale, BasePrice: 999})
	require.NoError(t, err)
	assert.False(t, got.Eligible)
}

func TestEligibilityRulesRejectBadExpressions(t *testing.T) {
	_, err := NewEligibilityCELAdapter([]EligibilityRule{
		{Name: "syntax", Condition: `base_price >`, Reason: `"x"`},
	}, 0)
	assert.Error(t, err)

	_, err = NewEligibilityCELAdapter([]EligibilityRule{
		{Name: "not_bool", Condition: `base_price + 1`, Reason: `"x"`},
	}, 0)
	assert.ErrorContains(t, err, "not_bool")

	_, err = NewEligibilityCELAdapter([]EligibilityRule{
		{Name: "reason_not_string", Condition: `true`, Reason: `42`},
	}, 0)
	assert.Error(t, err)

	_, err = NewEligibilityCELAdapter([]EligibilityRule{
		{Name: "unknown_var", Condition: `loyalty_points > 10`, Reason: `"x"`},
	}, 0)
	assert.Error(t, err)
}
