package port

import "time"

// DayKeyProvider 以固定时区计算日期键（YYYY-MM-DD），名额按它分桶
type DayKeyProvider interface {
	Now() time.Time
	Today() string
	// LastDays 返回包含今天在内的最近 n 天，今天在前
	LastDays(n int) []string
	// StartOfToday 今天零点（固定时区）
	StartOfToday() time.Time
}

// ReferenceGenerator 生成面向客户的预约编号
type ReferenceGenerator interface {
	NewReference() string
}
