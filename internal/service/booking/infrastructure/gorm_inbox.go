package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInbox 记录 (事件, 处理器) 是否已经处理过
type GormInbox struct {
	db *gorm.DB
}

func NewGormInbox(db *gorm.DB) *GormInbox {
	return &GormInbox{db: db}
}

func (i *GormInbox) IsProcessed(ctx context.Context, eventID, handler string) (bool, error) {
	var n int64
	err := i.db.WithContext(ctx).Model(&ProcessedEventModel{}).
		Where("event_id = ? AND handler = ?", eventID, handler).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check processed event")
	}
	return n > 0, nil
}

func (i *GormInbox) MarkProcessed(ctx context.Context, eventID, handler string) error {
	err := i.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedEventModel{EventID: eventID, Handler: handler, ProcessedAt: time.Now().UTC()}).Error
	return errors.Wrap(err, "mark processed event")
}
