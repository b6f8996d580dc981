package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"medisaga/internal/service/booking/domain"
)

// GormBookingRepository 是 domain.BookingRepository 的 GORM 实现
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	model, err := ToBookingModel(booking)
	if err != nil {
		return errors.Wrap(err, "map booking")
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create booking %s", booking.CorrelationID)
	}
	return nil
}

// Save 使用 map 做部分更新，保证零值字段（false、0、空串）也会被写入
func (r *GormBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	model, err := ToBookingModel(booking)
	if err != nil {
		return errors.Wrap(err, "map booking")
	}
	updateData := map[string]interface{}{
		"base_price":        model.BasePrice,
		"discount_eligible": model.DiscountEligible,
		"discount_applied":  model.DiscountApplied,
		"discount_amount":   model.DiscountAmount,
		"final_price":       model.FinalPrice,
		"status":            model.Status,
		"reference_id":      model.ReferenceID,
		"error_message":     model.ErrorMessage,
		"quota_date_key":    model.QuotaDateKey,
		"updated_at":        time.Now().UTC(),
	}
	err = r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("correlation_id = ?", booking.CorrelationID).
		Updates(updateData).Error
	if err != nil {
		return errors.Wrapf(err, "save booking %s", booking.CorrelationID)
	}
	return nil
}

func (r *GormBookingRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*domain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, errors.Wrapf(err, "find booking %s", correlationID)
	}
	return ToDomainBooking(&model)
}

func (r *GormBookingRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list bookings of user %s", userID)
	}

	out := make([]*domain.Booking, 0, len(models))
	for i := range models {
		b, err := ToDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count bookings by status")
	}
	out := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		out[domain.Status(row.Status)] = row.Count
	}
	return out, nil
}

func (r *GormBookingRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("created_at >= ?", since.UTC()).
		Count(&n).Error
	return n, errors.Wrap(err, "count bookings")
}

func (r *GormBookingRepository) CountDiscountedConfirmedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("created_at >= ? AND discount_applied = ? AND status = ?", since.UTC(), true, string(domain.StatusConfirmed)).
		Count(&n).Error
	return n, errors.Wrap(err, "count discounted bookings")
}
