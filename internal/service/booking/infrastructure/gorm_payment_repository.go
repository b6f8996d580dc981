package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"medisaga/internal/service/booking/domain"
)

// GormPaymentTransactionRepository 持久化扣款记录，替代进程内的交易表
type GormPaymentTransactionRepository struct {
	db *gorm.DB
}

func NewGormPaymentTransactionRepository(db *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: db}
}

func (r *GormPaymentTransactionRepository) Create(ctx context.Context, txn *domain.PaymentTransaction) error {
	model := PaymentTransactionModel{
		CorrelationID: txn.CorrelationID,
		TransactionID: txn.TransactionID,
		Amount:        txn.Amount,
		Status:        string(txn.Status),
		CreatedAt:     txn.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Wrapf(err, "create payment transaction for %s", txn.CorrelationID)
	}
	return nil
}

func (r *GormPaymentTransactionRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*domain.PaymentTransaction, error) {
	var model PaymentTransactionModel
	err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, errors.Wrapf(err, "find payment transaction for %s", correlationID)
	}
	return toDomainTransaction(&model), nil
}

// MarkReversed 条件更新：只有 captured 的交易才会被冲正，重复调用返回 false
func (r *GormPaymentTransactionRepository) MarkReversed(ctx context.Context, correlationID string, at time.Time) (bool, error) {
	reversedAt := at.UTC()
	res := r.db.WithContext(ctx).Model(&PaymentTransactionModel{}).
		Where("correlation_id = ? AND status = ?", correlationID, string(domain.TransactionCaptured)).
		Updates(map[string]interface{}{
			"status":      string(domain.TransactionReversed),
			"reversed_at": &reversedAt,
		})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "reverse payment transaction for %s", correlationID)
	}
	return res.RowsAffected == 1, nil
}
