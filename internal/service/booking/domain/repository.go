// internal/service/booking/domain/repository.go
package domain

import (
	"context"
	"time"
)

// BookingRepository 定义了预约聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type BookingRepository interface {
	// Create 插入一个新的预约
	Create(ctx context.Context, booking *Booking) error

	// Save 保存预约的全部可变字段
	Save(ctx context.Context, booking *Booking) error

	// FindByCorrelationID 找不到时返回 ErrBookingNotFound
	FindByCorrelationID(ctx context.Context, correlationID string) (*Booking, error)

	// ListByUser 按创建时间倒序
	ListByUser(ctx context.Context, userID string, limit int) ([]*Booking, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountDiscountedConfirmedSince(ctx context.Context, since time.Time) (int64, error)
}

// SagaEventRepository 是只追加的 saga 事件日志
type SagaEventRepository interface {
	Append(ctx context.Context, record SagaEventRecord) error

	// ListByCorrelationID 按时间戳升序返回完整的执行轨迹
	ListByCorrelationID(ctx context.Context, correlationID string) ([]SagaEventRecord, error)
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry AuditLogEntry) error

	// Query 按时间倒序
	Query(ctx context.Context, filter AuditLogFilter) ([]AuditLogEntry, error)
}

type PaymentTransactionRepository interface {
	Create(ctx context.Context, txn *PaymentTransaction) error

	// FindByCorrelationID 找不到时返回 ErrTransactionNotFound
	FindByCorrelationID(ctx context.Context, correlationID string) (*PaymentTransaction, error)

	// MarkReversed 仅当交易处于 captured 状态时生效，返回是否真正发生了冲正
	MarkReversed(ctx context.Context, correlationID string, at time.Time) (bool, error)
}

// ConfigRepository 系统配置键值存储
type ConfigRepository interface {
	GetFloat(ctx context.Context, key string) (value float64, found bool, err error)
	SetFloat(ctx context.Context, key string, value float64) error
}

type ServiceCatalogRepository interface {
	// ListActive gender 为空时返回全部，否则返回 common 与指定性别的服务
	ListActive(ctx context.Context, gender ServiceGender) ([]MedicalService, error)
	FindByIDs(ctx context.Context, ids []string) ([]MedicalService, error)

	// SeedIfEmpty 目录为空时写入默认数据，返回写入条数
	SeedIfEmpty(ctx context.Context, services []MedicalService) (int, error)
}
