package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"medisaga/internal/service/booking/domain"
)

const (
	defaultAuditQueryLimit = 100
	maxAuditQueryLimit     = 500
)

// GormSagaEventRepository 只提供追加与按 correlation id 读取，不提供修改
type GormSagaEventRepository struct {
	db *gorm.DB
}

func NewGormSagaEventRepository(db *gorm.DB) *GormSagaEventRepository {
	return &GormSagaEventRepository{db: db}
}

func (r *GormSagaEventRepository) Append(ctx context.Context, record domain.SagaEventRecord) error {
	model := toSagaEventModel(record)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Wrapf(err, "append saga event %s for %s", record.EventType, record.CorrelationID)
	}
	return nil
}

func (r *GormSagaEventRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]domain.SagaEventRecord, error) {
	var models []SagaEventModel
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("timestamp asc, id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list saga events for %s", correlationID)
	}
	out := make([]domain.SagaEventRecord, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainSagaEvent(m))
	}
	return out, nil
}

// GormAuditLogRepository 审计日志
type GormAuditLogRepository struct {
	db *gorm.DB
}

func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

func (r *GormAuditLogRepository) Create(ctx context.Context, entry domain.AuditLogEntry) error {
	model := toAuditLogModel(entry)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Wrapf(err, "create audit log %s for %s", entry.EventType, entry.CorrelationID)
	}
	return nil
}

func (r *GormAuditLogRepository) Query(ctx context.Context, filter domain.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	q := r.db.WithContext(ctx).Model(&AuditLogModel{})
	if filter.ActorType != "" {
		q = q.Where("actor_type = ?", string(filter.ActorType))
	}
	if filter.ActionSource != "" {
		q = q.Where("action_source = ?", string(filter.ActionSource))
	}
	if filter.CorrelationID != "" {
		q = q.Where("correlation_id = ?", filter.CorrelationID)
	}
	if !filter.From.IsZero() {
		q = q.Where("timestamp >= ?", filter.From.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditQueryLimit
	}
	if limit > maxAuditQueryLimit {
		limit = maxAuditQueryLimit
	}

	var models []AuditLogModel
	if err := q.Order("timestamp desc, id desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query audit logs")
	}
	out := make([]domain.AuditLogEntry, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainAuditLog(m))
	}
	return out, nil
}
