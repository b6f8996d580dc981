package adapter

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

type mockConfigRepo struct {
	mock.Mock
}

func (m *mockConfigRepo) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *mockConfigRepo) SetFloat(ctx context.Context, key string, value float64) error {
	return m.Called(ctx, key, value).Error(0)
}

func TestDiscountConfigFallback(t *testing.T) {
	repo := new(mockConfigRepo)
	repo.On("GetFloat", mock.Anything, DiscountPercentageKey).Return(0.0, false, nil)

	pct, err := NewDiscountConfigAdapter(repo, 0).DiscountPercentage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, port.DefaultDiscountPercentage, pct)

	pct, err = NewDiscountConfigAdapter(repo, 20).DiscountPercentage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, pct)
}

func TestDiscountConfigStoredValueWins(t *testing.T) {
	repo := new(mockConfigRepo)
	repo.On("GetFloat", mock.Anything, DiscountPercentageKey).Return(15.0, true, nil)

	pct, err := NewDiscountConfigAdapter(repo, 12).DiscountPercentage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, pct)
}

func TestDiscountConfigPropagatesErrors(t *testing.T) {
	repo := new(mockConfigRepo)
	boom := errors.New("db down")
	repo.On("GetFloat", mock.Anything, DiscountPercentageKey).Return(0.0, false, boom)

	_, err := NewDiscountConfigAdapter(repo, 12).DiscountPercentage(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDiscountConfigSetValidatesRange(t *testing.T) {
	repo := new(mockConfigRepo)
	repo.On("SetFloat", mock.Anything, DiscountPercentageKey, 25.0).Return(nil)
	a := NewDiscountConfigAdapter(repo, 12)

	require.NoError(t, a.SetDiscountPercentage(context.Background(), 25))
	for _, bad := range []float64{-1, 100.5, math.NaN()} {
		assert.ErrorIs(t, a.SetDiscountPercentage(context.Background(), bad), domain.ErrInvalidArgument)
	}
	repo.AssertNumberOfCalls(t, "SetFloat", 1)
}
