package adapter

import (
	"time"
)

// DefaultQuotaOffsetMinutes Asia/Kolkata 的固定偏移，UTC+05:30
const DefaultQuotaOffsetMinutes = 330

// FixedZoneDayKeyProvider 以固定 UTC 偏移计算日期键，不依赖系统时区数据库
type FixedZoneDayKeyProvider struct {
	loc *time.Location
	now func() time.Time
}

// NewFixedZoneDayKeyProvider now 为 nil 时使用 time.Now
func NewFixedZoneDayKeyProvider(offsetMinutes int, now func() time.Time) *FixedZoneDayKeyProvider {
	if now == nil {
		now = time.Now
	}
	name := "UTC"
	if offsetMinutes != 0 {
		sign := "+"
		m := offsetMinutes
		if m < 0 {
			sign = "-"
			m = -m
		}
		name = "UTC" + sign + time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
	}
	return &FixedZoneDayKeyProvider{
		loc: time.FixedZone(name, offsetMinutes*60),
		now: now,
	}
}

func (p *FixedZoneDayKeyProvider) Location() *time.Location { return p.loc }

func (p *FixedZoneDayKeyProvider) Now() time.Time {
	return p.now().In(p.loc)
}

func (p *FixedZoneDayKeyProvider) Today() string {
	return p.Now().Format(time.DateOnly)
}

func (p *FixedZoneDayKeyProvider) LastDays(n int) []string {
	if n <= 0 {
		return nil
	}
	today := p.StartOfToday()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, today.AddDate(0, 0, -i).Format(time.DateOnly))
	}
	return out
}

func (p *FixedZoneDayKeyProvider) StartOfToday() time.Time {
	n := p.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, p.loc)
}
