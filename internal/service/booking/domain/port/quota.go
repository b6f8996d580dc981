package port

import (
	"context"
	"errors"
)

// ErrLimitBelowUsage 新上限低于当天已发出的名额
var ErrLimitBelowUsage = errors.New("quota limit below current usage")

// ReserveResult 是名额预留结果的枚举
type ReserveResult int

const (
	ReserveResultReserved ReserveResult = iota + 1
	ReserveResultAlreadyHeld
	ReserveResultExhausted
)

// Succeeded 已预留（包括重复投递时名额已在手）
func (r ReserveResult) Succeeded() bool {
	return r == ReserveResultReserved || r == ReserveResultAlreadyHeld
}

func (r ReserveResult) String() string {
	switch r {
	case ReserveResultReserved:
		return "reserved"
	case ReserveResultAlreadyHeld:
		return "already_held"
	case ReserveResultExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// QuotaSnapshot 某一天的折扣名额快照
type QuotaSnapshot struct {
	DateKey string `json:"date"`
	Used    int64  `json:"used"`
	Limit   int64  `json:"limit"`
}

func (s QuotaSnapshot) Available() int64 {
	if s.Used >= s.Limit {
		return 0
	}
	return s.Limit - s.Used
}

func (s QuotaSnapshot) Exhausted() bool {
	return s.Used >= s.Limit
}

// Reservation 预留操作返回的结果与预留后的快照
type Reservation struct {
	Result ReserveResult
	QuotaSnapshot
}

// DiscountQuotaStore 是每日折扣名额的出站端口。
// 所有修改都必须是原子的条件更新（低于上限才加一、在集合中才减一），不允许先读后写。
type DiscountQuotaStore interface {
	// Reserve 在 used < limit 时占用一个名额并把 correlationID 加入预留集合
	Reserve(ctx context.Context, dateKey, correlationID string) (Reservation, error)

	// Release 是 Reserve 的补偿操作。correlationID 不在集合中时为安全的空操作，返回 false。
	Release(ctx context.Context, dateKey, correlationID string) (bool, error)

	// Check 用于确认前的最终校验：该预留是否仍然有效，以及当前快照
	Check(ctx context.Context, dateKey, correlationID string) (held bool, snapshot QuotaSnapshot, err error)

	// Status 当天尚未创建时返回 used=0 与默认上限
	Status(ctx context.Context, dateKey string) (QuotaSnapshot, error)

	// SetLimit 更新（或创建）某天的上限。limit 小于已用数量时不做修改并返回 ErrLimitBelowUsage，
	// 判断与写入在同一个原子操作中完成。
	SetLimit(ctx context.Context, dateKey string, limit int64) error

	// History 返回给定日期中已存在的快照，按日期倒序
	History(ctx context.Context, dateKeys []string) ([]QuotaSnapshot, error)
}
