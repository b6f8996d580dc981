// internal/service/booking/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// BookingModel 对应 bookings 表
type BookingModel struct {
	ID               uint   `gorm:"primaryKey"`
	CorrelationID    string `gorm:"size:64;uniqueIndex"`
	UserID           string `gorm:"size:64;index"`
	CustomerName     string `gorm:"size:255;not null"`
	Gender           string `gorm:"size:16;not null"`
	DateOfBirth      string `gorm:"size:32;not null"`
	Services         string `gorm:"type:text;not null"` // JSON 编码的服务明细
	BasePrice        int64
	DiscountEligible bool
	DiscountApplied  bool
	DiscountAmount   int64
	FinalPrice       int64
	Status           string    `gorm:"size:32;index;not null"`
	ReferenceID      string    `gorm:"size:64"`
	ErrorMessage     string    `gorm:"size:512"`
	QuotaDateKey     string    `gorm:"size:10"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

func (BookingModel) TableName() string { return "bookings" }

// SagaEventModel 只追加。自增 ID 在同一时间戳内保持写入顺序。
type SagaEventModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	EventID       string    `gorm:"size:64;uniqueIndex"`
	CorrelationID string    `gorm:"size:64;index:idx_saga_events_correlation_ts,priority:1"`
	EventType     string    `gorm:"size:64;not null"`
	Service       string    `gorm:"size:64;not null"`
	Status        string    `gorm:"size:16;not null"`
	Data          string    `gorm:"type:text"`
	Timestamp     time.Time `gorm:"index:idx_saga_events_correlation_ts,priority:2"`
}

func (SagaEventModel) TableName() string { return "saga_events" }

type AuditLogModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	EventID       string    `gorm:"size:64;index"`
	CorrelationID string    `gorm:"size:64;index"`
	EventType     string    `gorm:"column:event;size:64;not null"`
	Service       string    `gorm:"size:64;not null"`
	Status        string    `gorm:"size:16;not null"`
	Data          string    `gorm:"type:text"`
	ActorType     string    `gorm:"size:16;index"`
	ActorID       string    `gorm:"size:64"`
	ActionSource  string    `gorm:"size:32;index"`
	Timestamp     time.Time `gorm:"index"`
}

func (AuditLogModel) TableName() string { return "audit_logs" }

// DiscountQuotaModel 每天一行，used 只能通过条件更新修改
type DiscountQuotaModel struct {
	DateKey   string `gorm:"primaryKey;size:10"`
	Used      int64  `gorm:"not null;default:0"`
	Limit     int64  `gorm:"column:quota_limit;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DiscountQuotaModel) TableName() string { return "discount_quotas" }

// DiscountQuotaReservationModel 是名额的预留集合，(date_key, correlation_id) 唯一
type DiscountQuotaReservationModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	DateKey       string `gorm:"size:10;not null;uniqueIndex:uniq_quota_reservation,priority:1"`
	CorrelationID string `gorm:"size:64;not null;uniqueIndex:uniq_quota_reservation,priority:2"`
	CreatedAt     time.Time
}

func (DiscountQuotaReservationModel) TableName() string { return "discount_quota_reservations" }

type PaymentTransactionModel struct {
	CorrelationID string `gorm:"primaryKey;size:64"`
	TransactionID string `gorm:"size:64;uniqueIndex;not null"`
	Amount        int64
	Status        string `gorm:"size:16;not null"`
	CreatedAt     time.Time
	ReversedAt    *time.Time
}

func (PaymentTransactionModel) TableName() string { return "payment_transactions" }

type SystemConfigModel struct {
	Key       string `gorm:"column:config_key;primaryKey;size:64"`
	Value     string `gorm:"column:config_value;size:255;not null"`
	UpdatedAt time.Time
}

func (SystemConfigModel) TableName() string { return "system_configs" }

type MedicalServiceModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null"`
	Price       int64  `gorm:"not null"`
	Gender      string `gorm:"size:16;index;not null"`
	Description string `gorm:"size:512"`
	IsActive    bool   `gorm:"index;not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (MedicalServiceModel) TableName() string { return "medical_services" }

// ProcessedEventModel 是消费端的收件箱，用于去重重复投递
type ProcessedEventModel struct {
	EventID     string `gorm:"primaryKey;size:64"`
	Handler     string `gorm:"primaryKey;size:128"`
	ProcessedAt time.Time
}

func (ProcessedEventModel) TableName() string { return "processed_events" }

// AutoMigrate 创建或更新全部表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BookingModel{},
		&SagaEventModel{},
		&AuditLogModel{},
		&DiscountQuotaModel{},
		&DiscountQuotaReservationModel{},
		&PaymentTransactionModel{},
		&SystemConfigModel{},
		&MedicalServiceModel{},
		&ProcessedEventModel{},
	)
}
