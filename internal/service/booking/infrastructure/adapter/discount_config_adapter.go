package adapter

import (
	"context"
	"fmt"
	"math"

	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// DiscountPercentageKey 系统配置表中的键
const DiscountPercentageKey = "discountPercentage"

// DiscountConfigAdapter 基于系统配置表实现 port.DiscountConfig，未配置时使用默认值
type DiscountConfigAdapter struct {
	repo     domain.ConfigRepository
	fallback float64
}

func NewDiscountConfigAdapter(repo domain.ConfigRepository, fallback float64) *DiscountConfigAdapter {
	if fallback <= 0 || fallback > 100 {
		fallback = port.DefaultDiscountPercentage
	}
	return &DiscountConfigAdapter{repo: repo, fallback: fallback}
}

func (a *DiscountConfigAdapter) DiscountPercentage(ctx context.Context) (float64, error) {
	v, found, err := a.repo.GetFloat(ctx, DiscountPercentageKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return a.fallback, nil
	}
	return v, nil
}

func (a *DiscountConfigAdapter) SetDiscountPercentage(ctx context.Context, percentage float64) error {
	if math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		return fmt.Errorf("%w: discount percentage must be between 0 and 100", domain.ErrInvalidArgument)
	}
	return a.repo.SetFloat(ctx, DiscountPercentageKey, percentage)
}
