//go:build property
// +build property

package adapter

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"medisaga/internal/service/booking/infrastructure"
	"medisaga/internal/testfixtures"
)

// 任意 reserve/release 序列之后：used == |reservations| <= limit
func TestQuotaConservation(t *testing.T) {
	db := testfixtures.NewSQLiteDB(t)
	require.NoError(t, infrastructure.AutoMigrate(db))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	run := 0
	properties.Property("used equals reservation count and never exceeds limit", prop.ForAll(
		func(limit int64, ops []int) bool {
			run++
			ctx := context.Background()
			day := fmt.Sprintf("d%09d", run)
			store := NewQuotaGormAdapter(db, limit)

			for _, op := range ops {
				cid := fmt.Sprintf("c%d", op%10)
				var err error
				if op%3 == 0 {
					_, err = store.Release(ctx, day, cid)
				} else {
					_, err = store.Reserve(ctx, day, cid)
				}
				if err != nil {
					return false
				}
			}

			snap, err := store.Status(ctx, day)
			if err != nil {
				return false
			}
			var rows int64
			if err := db.Model(&infrastructure.DiscountQuotaReservationModel{}).Where("date_key = ?", day).Count(&rows).Error; err != nil {
				return false
			}
			return snap.Used == rows && snap.Used <= snap.Limit
		},
		gen.Int64Range(1, 6),
		gen.SliceOf(gen.IntRange(0, 60)),
	))

	properties.TestingRun(t)
}
