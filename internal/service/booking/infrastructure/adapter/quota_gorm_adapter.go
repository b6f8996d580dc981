package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medisaga/internal/service/booking/domain/port"
	"medisaga/internal/service/booking/infrastructure"
)

// DefaultDailyQuota 每日折扣名额的默认上限
const DefaultDailyQuota int64 = 100

// QuotaGormAdapter 是 port.DiscountQuotaStore 的关系型数据库实现。
// 计数只通过一条带条件的 UPDATE 修改，预留集合由唯一索引保证不重复。
type QuotaGormAdapter struct {
	db           *gorm.DB
	defaultLimit int64
}

func NewQuotaGormAdapter(db *gorm.DB, defaultLimit int64) *QuotaGormAdapter {
	if defaultLimit <= 0 {
		defaultLimit = DefaultDailyQuota
	}
	return &QuotaGormAdapter{db: db, defaultLimit: defaultLimit}
}

func (a *QuotaGormAdapter) Reserve(ctx context.Context, dateKey, correlationID string) (port.Reservation, error) {
	var out port.Reservation
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.ensureDay(tx, dateKey); err != nil {
			return err
		}

		held, err := reservationExists(tx, dateKey, correlationID)
		if err != nil {
			return err
		}
		if held {
			snap, err := loadSnapshot(tx, dateKey)
			if err != nil {
				return err
			}
			out = port.Reservation{Result: port.ReserveResultAlreadyHeld, QuotaSnapshot: snap}
			return nil
		}

		res := tx.Model(&infrastructure.DiscountQuotaModel{}).
			Where("date_key = ? AND used < quota_limit", dateKey).
			Updates(map[string]interface{}{
				"used":       gorm.Expr("used + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "increment discount quota")
		}
		if res.RowsAffected == 0 {
			snap, err := loadSnapshot(tx, dateKey)
			if err != nil {
				return err
			}
			out = port.Reservation{Result: port.ReserveResultExhausted, QuotaSnapshot: snap}
			return nil
		}

		// 唯一索引冲突会让整个事务回滚，计数随之回退
		reservation := infrastructure.DiscountQuotaReservationModel{
			DateKey:       dateKey,
			CorrelationID: correlationID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return errors.Wrap(err, "insert quota reservation")
		}

		snap, err := loadSnapshot(tx, dateKey)
		if err != nil {
			return err
		}
		out = port.Reservation{Result: port.ReserveResultReserved, QuotaSnapshot: snap}
		return nil
	})
	if err != nil {
		return port.Reservation{}, fmt.Errorf("reserve discount quota %s for %s: %w", dateKey, correlationID, err)
	}
	return out, nil
}

// Release 只有真正删除了预留记录才会减少计数，重复释放不会多减
func (a *QuotaGormAdapter) Release(ctx context.Context, dateKey, correlationID string) (bool, error) {
	released := false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("date_key = ? AND correlation_id = ?", dateKey, correlationID).
			Delete(&infrastructure.DiscountQuotaReservationModel{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete quota reservation")
		}
		if res.RowsAffected == 0 {
			return nil
		}

		upd := tx.Model(&infrastructure.DiscountQuotaModel{}).
			Where("date_key = ? AND used > 0", dateKey).
			Updates(map[string]interface{}{
				"used":       gorm.Expr("used - 1"),
				"updated_at": time.Now().UTC(),
			})
		if upd.Error != nil {
			return errors.Wrap(upd.Error, "decrement discount quota")
		}
		released = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("release discount quota %s for %s: %w", dateKey, correlationID, err)
	}
	return released, nil
}

func (a *QuotaGormAdapter) Check(ctx context.Context, dateKey, correlationID string) (bool, port.QuotaSnapshot, error) {
	db := a.db.WithContext(ctx)
	held, err := reservationExists(db, dateKey, correlationID)
	if err != nil {
		return false, port.QuotaSnapshot{}, err
	}
	snap, err := a.Status(ctx, dateKey)
	if err != nil {
		return false, port.QuotaSnapshot{}, err
	}
	return held, snap, nil
}

func (a *QuotaGormAdapter) Status(ctx context.Context, dateKey string) (port.QuotaSnapshot, error) {
	var m infrastructure.DiscountQuotaModel
	err := a.db.WithContext(ctx).Where("date_key = ?", dateKey).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return port.QuotaSnapshot{DateKey: dateKey, Used: 0, Limit: a.defaultLimit}, nil
		}
		return port.QuotaSnapshot{}, errors.Wrapf(err, "load discount quota %s", dateKey)
	}
	return toSnapshot(m), nil
}

func (a *QuotaGormAdapter) SetLimit(ctx context.Context, dateKey string, limit int64) error {
	if limit < 0 {
		return fmt.Errorf("quota limit must not be negative: %d", limit)
	}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.ensureDay(tx, dateKey); err != nil {
			return err
		}
		res := tx.Model(&infrastructure.DiscountQuotaModel{}).
			Where("date_key = ? AND used <= ?", dateKey, limit).
			Updates(map[string]interface{}{
				"quota_limit": limit,
				"updated_at":  time.Now().UTC(),
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update discount quota limit")
		}
		if res.RowsAffected == 0 {
			return port.ErrLimitBelowUsage
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set discount quota limit %s: %w", dateKey, err)
	}
	return nil
}

func (a *QuotaGormAdapter) History(ctx context.Context, dateKeys []string) ([]port.QuotaSnapshot, error) {
	if len(dateKeys) == 0 {
		return nil, nil
	}
	var models []infrastructure.DiscountQuotaModel
	err := a.db.WithContext(ctx).
		Where("date_key IN ?", dateKeys).
		Order("date_key desc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "load discount quota history")
	}
	out := make([]port.QuotaSnapshot, 0, len(models))
	for _, m := range models {
		out = append(out, toSnapshot(m))
	}
	return out, nil
}

func (a *QuotaGormAdapter) ensureDay(tx *gorm.DB, dateKey string) error {
	now := time.Now().UTC()
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&infrastructure.DiscountQuotaModel{
		DateKey:   dateKey,
		Limit:     a.defaultLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	return errors.Wrapf(err, "ensure discount quota %s", dateKey)
}

func reservationExists(db *gorm.DB, dateKey, correlationID string) (bool, error) {
	var n int64
	err := db.Model(&infrastructure.DiscountQuotaReservationModel{}).
		Where("date_key = ? AND correlation_id = ?", dateKey, correlationID).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check quota reservation")
	}
	return n > 0, nil
}

func loadSnapshot(tx *gorm.DB, dateKey string) (port.QuotaSnapshot, error) {
	var m infrastructure.DiscountQuotaModel
	if err := tx.Where("date_key = ?", dateKey).Take(&m).Error; err != nil {
		return port.QuotaSnapshot{}, errors.Wrapf(err, "load discount quota %s", dateKey)
	}
	return toSnapshot(m), nil
}

func toSnapshot(m infrastructure.DiscountQuotaModel) port.QuotaSnapshot {
	return port.QuotaSnapshot{DateKey: m.DateKey, Used: m.Used, Limit: m.Limit}
}
