package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConfigRepository 系统配置键值表
type GormConfigRepository struct {
	db *gorm.DB
}

func NewGormConfigRepository(db *gorm.DB) *GormConfigRepository {
	return &GormConfigRepository{db: db}
}

func (r *GormConfigRepository) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	var model SystemConfigModel
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(err, "get config %s", key)
	}
	v, err := strconv.ParseFloat(model.Value, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "config %s is not a number", key)
	}
	return v, true, nil
}

func (r *GormConfigRepository) SetFloat(ctx context.Context, key string, value float64) error {
	model := SystemConfigModel{
		Key:       key,
		Value:     strconv.FormatFloat(value, 'f', -1, 64),
		UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"config_value", "updated_at"}),
	}).Create(&model).Error
	return errors.Wrapf(err, "set config %s", key)
}
