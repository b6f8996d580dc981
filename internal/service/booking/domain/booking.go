// internal/service/booking/domain/booking.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Gender 预约客户的性别
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) Valid() bool { return g == GenderMale || g == GenderFemale }

// ServiceItem 是预约中的一条服务明细（值对象）
type ServiceItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// SumPrices 计算服务明细的总价
func SumPrices(items []ServiceItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Price
	}
	return total
}

// Booking 是预约聚合的根实体。
// 状态只能通过下面的方法流转，每个方法只负责状态校验与字段变更，不负责发布事件。
type Booking struct {
	CorrelationID string
	UserID        string
	CustomerName  string
	Gender        Gender
	DateOfBirth   string // YYYY-MM-DD
	Services      []ServiceItem

	BasePrice        int64
	DiscountEligible bool
	DiscountApplied  bool
	DiscountAmount   int64
	FinalPrice       int64

	Status       Status
	ReferenceID  string
	ErrorMessage string

	// QuotaDateKey 记录折扣名额是在哪一天的桶里预留的，补偿时按它释放
	QuotaDateKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBookingParams 创建预约所需的参数
type NewBookingParams struct {
	CorrelationID string
	UserID        string
	CustomerName  string
	Gender        Gender
	DateOfBirth   string
	Services      []ServiceItem
}

// 工厂函数: NewBooking 创建一个 pending 状态的预约
func NewBooking(p NewBookingParams) (*Booking, error) {
	if p.CorrelationID == "" {
		return nil, fmt.Errorf("%w: correlation id is required", ErrInvalidBooking)
	}
	if strings.TrimSpace(p.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidBooking)
	}
	if !p.Gender.Valid() {
		return nil, fmt.Errorf("%w: gender must be male or female", ErrInvalidBooking)
	}
	if _, err := ParseDateOfBirth(p.DateOfBirth); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	if len(p.Services) == 0 {
		return nil, fmt.Errorf("%w: at least one service must be selected", ErrInvalidBooking)
	}

	base := SumPrices(p.Services)
	now := time.Now()
	return &Booking{
		CorrelationID: p.CorrelationID,
		UserID:        p.UserID,
		CustomerName:  p.CustomerName,
		Gender:        p.Gender,
		DateOfBirth:   p.DateOfBirth,
		Services:      append([]ServiceItem(nil), p.Services...),
		BasePrice:     base,
		FinalPrice:    base,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ParseDateOfBirth 接受 YYYY-MM-DD 或 RFC3339 格式
func ParseDateOfBirth(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date of birth %q", s)
	}
	return t, nil
}

func (b *Booking) transition(from []Status, to Status) error {
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
}

// ApplyPricing 记录定价结果。此时折扣只是“有资格”，并未真正使用。
func (b *Booking) ApplyPricing(basePrice int64, eligible bool) error {
	if err := b.transition([]Status{StatusPending}, StatusPricingCalculated); err != nil {
		return err
	}
	b.BasePrice = basePrice
	b.DiscountEligible = eligible
	b.DiscountApplied = false
	b.DiscountAmount = 0
	b.FinalPrice = basePrice
	return nil
}

// ApplyDiscount 折扣名额预留成功后落地折扣
func (b *Booking) ApplyDiscount(amount int64, quotaDateKey string) error {
	if !b.DiscountEligible {
		return fmt.Errorf("%w: booking %s is not discount eligible", ErrInvalidTransition, b.CorrelationID)
	}
	if amount < 0 || amount > b.BasePrice {
		return fmt.Errorf("%w: discount amount %d out of range", ErrInvalidTransition, amount)
	}
	if err := b.transition([]Status{StatusPricingCalculated}, StatusQuotaReserved); err != nil {
		return err
	}
	b.DiscountApplied = true
	b.DiscountAmount = amount
	b.FinalPrice = b.BasePrice - amount
	b.QuotaDateKey = quotaDateKey
	return nil
}

// ProceedWithoutDiscount 不符合折扣条件时按原价继续
func (b *Booking) ProceedWithoutDiscount() error {
	if err := b.transition([]Status{StatusPricingCalculated}, StatusQuotaReserved); err != nil {
		return err
	}
	b.DiscountApplied = false
	b.DiscountAmount = 0
	b.FinalPrice = b.BasePrice
	return nil
}

func (b *Booking) RejectQuota() error {
	return b.transition([]Status{StatusPricingCalculated}, StatusQuotaRejected)
}

func (b *Booking) MarkPaymentCompleted() error {
	return b.transition([]Status{StatusQuotaReserved}, StatusPaymentCompleted)
}

func (b *Booking) MarkPaymentFailed() error {
	return b.transition([]Status{StatusQuotaReserved}, StatusPaymentFailed)
}

// Confirm 最终确认，只有支付完成的预约才能确认
func (b *Booking) Confirm(referenceID string) error {
	if referenceID == "" {
		return fmt.Errorf("%w: reference id is required", ErrInvalidTransition)
	}
	if err := b.transition([]Status{StatusPaymentCompleted}, StatusConfirmed); err != nil {
		return err
	}
	b.ReferenceID = referenceID
	b.ErrorMessage = ""
	return nil
}

// Fail 将预约标记为失败。终态不可再次变更。
func (b *Booking) Fail(reason string) error {
	if b.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusFailed)
	}
	if reason == "" {
		reason = "Booking failed"
	}
	b.Status = StatusFailed
	b.ErrorMessage = reason
	b.ReferenceID = ""
	b.UpdatedAt = time.Now()
	return nil
}

// IsComplete 是否已经到达终态
func (b *Booking) IsComplete() bool {
	return b.Status.IsTerminal()
}
