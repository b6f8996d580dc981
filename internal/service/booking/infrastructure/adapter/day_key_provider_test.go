package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medisaga/internal/testfixtures"
)

func TestFixedZoneDayKeyProvider(t *testing.T) {
	// 18:40 UTC 已经是 IST 的第二天
	now := time.Date(2025, 3, 9, 18, 40, 0, 0, time.UTC)
	p := NewFixedZoneDayKeyProvider(DefaultQuotaOffsetMinutes, func() time.Time { return now })

	assert.Equal(t, "2025-03-10", p.Today())
	assert.Equal(t, "UTC+05:30", p.Location().String())
	assert.Equal(t, []string{"2025-03-10", "2025-03-09", "2025-03-08"}, p.LastDays(3))
	assert.Nil(t, p.LastDays(0))

	start := p.StartOfToday()
	assert.Equal(t, time.Date(2025, 3, 9, 18, 30, 0, 0, time.UTC), start.UTC())
}

func TestFixedZoneDayKeyProviderUTCAndNegativeOffsets(t *testing.T) {
	now := time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)

	utc := NewFixedZoneDayKeyProvider(0, func() time.Time { return now })
	assert.Equal(t, "2025-01-01", utc.Today())
	assert.Equal(t, "UTC", utc.Location().String())

	ny := NewFixedZoneDayKeyProvider(-300, func() time.Time { return now })
	assert.Equal(t, "2024-12-31", ny.Today())
	assert.Equal(t, "UTC-05:00", ny.Location().String())
}

func TestLastDaysCrossesMonthBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewFixedZoneDayKeyProvider(0, func() time.Time { return now })
	assert.Equal(t, []string{"2025-03-01", "2025-02-28"}, p.LastDays(2))
}

func TestDayKeyRollsOverAtLocalMidnight(t *testing.T) {
	clock := &testfixtures.FixedClock{T: time.Date(2025, 6, 30, 18, 29, 0, 0, time.UTC)}
	p := NewFixedZoneDayKeyProvider(DefaultQuotaOffsetMinutes, clock.Now)
	assert.Equal(t, "2025-06-30", p.Today())

	clock.Advance(time.Minute)
	assert.Equal(t, "2025-07-01", p.Today())
	assert.Equal(t, []string{"2025-07-01", "2025-06-30"}, p.LastDays(2))
}
