package database

import (
	"fmt"
	"time"

	zlog "github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"
)

// zerologWriter 把 GORM 的日志输出转到 zerolog
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	zlog.Debug().Str("component", "gorm").Msg(fmt.Sprintf(format, args...))
}

// NewGormLogger 慢查询阈值 200ms，忽略 record not found
func NewGormLogger(level gormlogger.LogLevel) gormlogger.Interface {
	return gormlogger.New(zerologWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
