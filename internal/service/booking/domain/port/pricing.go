package port

import (
	"context"
	"time"

	"medisaga/internal/service/booking/domain"
)

// DefaultDiscountPercentage 未配置时的折扣百分比
const DefaultDiscountPercentage = 12.0

// DiscountConfig 是折扣百分比的配置提供方
type DiscountConfig interface {
	DiscountPercentage(ctx context.Context) (float64, error)
	SetDiscountPercentage(ctx context.Context, percentage float64) error
}

// EligibilityFact 是折扣规则求值的输入
type EligibilityFact struct {
	Gender      domain.Gender
	DateOfBirth time.Time
	Today       time.Time
	BasePrice   int64
}

// Eligibility 折扣资格判定结果
type Eligibility struct {
	Eligible bool
	Rule     string
	Reason   string
}

// EligibilityRules 是折扣资格规则引擎的出站端口
type EligibilityRules interface {
	Evaluate(ctx context.Context, fact EligibilityFact) (Eligibility, error)
}
