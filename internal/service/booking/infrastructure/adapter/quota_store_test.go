package adapter

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisaga/internal/pkg/redis"
	"medisaga/internal/service/booking/domain/port"
	"medisaga/internal/service/booking/infrastructure"
	"medisaga/internal/testfixtures"
)

const testDay = "2025-03-10"

func newGormStore(t *testing.T, limit int64) *QuotaGormAdapter {
	t.Helper()
	db := testfixtures.NewSQLiteDB(t)
	require.NoError(t, infrastructure.AutoMigrate(db))
	return NewQuotaGormAdapter(db, limit)
}

func newRedisStore(t *testing.T, limit int64) (*QuotaRedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewQuotaRedisAdapter(client, limit)
	require.NoError(t, err)
	return store, mr
}

// 两种实现必须表现一致
func quotaStores(t *testing.T, limit int64) map[string]port.DiscountQuotaStore {
	redisStore, _ := newRedisStore(t, limit)
	return map[string]port.DiscountQuotaStore{
		"gorm":  newGormStore(t, limit),
		"redis": redisStore,
	}
}

func TestQuotaStoreReserveUntilExhausted(t *testing.T) {
	for name, store := range quotaStores(t, 2) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			r, err := store.Reserve(ctx, testDay, "c1")
			require.NoError(t, err)
			assert.Equal(t, port.ReserveResultReserved, r.Result)
			assert.Equal(t, int64(1), r.Used)
			assert.Equal(t, int64(2), r.Limit)

			r, err = store.Reserve(ctx, testDay, "c2")
			require.NoError(t, err)
			assert.Equal(t, port.ReserveResultReserved, r.Result)
			assert.Equal(t, int64(2), r.Used)

			r, err = store.Reserve(ctx, testDay, "c3")
			require.NoError(t, err)
			assert.Equal(t, port.ReserveResultExhausted, r.Result)
			assert.False(t, r.Result.Succeeded())
			assert.Equal(t, int64(2), r.Used)

			status, err := store.Status(ctx, testDay)
			require.NoError(t, err)
			assert.True(t, status.Exhausted())
			assert.Zero(t, status.Available())
		})
	}
}

func TestQuotaStoreReserveIsIdempotentPerBooking(t *testing.T) {
	for name, store := range quotaStores(t, 5) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Reserve(ctx, testDay, "c1")
			require.NoError(t, err)

			r, err := store.Reserve(ctx, testDay, "c1")
			require.NoError(t, err)
			assert.Equal(t, port.ReserveResultAlreadyHeld, r.Result)
			assert.True(t, r.Result.Succeeded())
			assert.Equal(t, int64(1), r.Used, "redelivery must not consume a second slot")
		})
	}
}

func TestQuotaStoreDoubleReleaseDecrementsOnce(t *testing.T) {
	for name, store := range quotaStores(t, 5) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Reserve(ctx, testDay, "c1")
			require.NoError(t, err)
			_, err = store.Reserve(ctx, testDay, "c2")
			require.NoError(t, err)

			released, err := store.Release(ctx, testDay, "c1")
			require.NoError(t, err)
			assert.True(t, released)

			released, err = store.Release(ctx, testDay, "c1")
			require.NoError(t, err)
			assert.False(t, released)

			released, err = store.Release(ctx, testDay, "never-reserved")
			require.NoError(t, err)
			assert.False(t, released)

			status, err := store.Status(ctx, testDay)
			require.NoError(t, err)
			assert.Equal(t, int64(1), status.Used)
		})
	}
}

func TestQuotaStoreCheck(t *testing.T) {
	for name, store := range quotaStores(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Reserve(ctx, testDay, "c1")
			require.NoError(t, err)

			held, snap, err := store.Check(ctx, testDay, "c1")
			require.NoError(t, err)
			assert.True(t, held)
			assert.Equal(t, int64(1), snap.Used)
			assert.Equal(t, int64(3), snap.Limit)

			held, _, err = store.Check(ctx, testDay, "c2")
			require.NoError(t, err)
			assert.False(t, held)
		})
	}
}

func TestQuotaStoreStatusOfUnknownDay(t *testing.T) {
	for name, store := range quotaStores(t, 7) {
		t.Run(name, func(t *testing.T) {
			snap, err := store.Status(context.Background(), "2030-01-01")
			require.NoError(t, err)
			assert.Equal(t, port.QuotaSnapshot{DateKey: "2030-01-01", Used: 0, Limit: 7}, snap)
		})
	}
}

func TestQuotaStoreSetLimit(t *testing.T) {
	for name, store := range quotaStores(t, 1) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Reserve(ctx, testDay, "c1")
			require.NoError(t, err)

			r, err := store.Reserve(ctx, testDay, "c2")
			require.NoError(t, err)
			assert.Equal(t, port.ReserveResultExhausted, r.Result)

			require.NoError(t, store.SetLimit(ctx, testDay, 2))
			r, err = store.Reserve(ctx, testDay, "c2")
			require.NoError(t, err)
			assert.Equal(t, port.ReserveResultReserved, r.Result)

			// 上限不能低于已发出的名额，失败时保持原值
			err = store.SetLimit(ctx, testDay, 1)
			require.ErrorIs(t, err, port.ErrLimitBelowUsage)
			snap, err := store.Status(ctx, testDay)
			require.NoError(t, err)
			assert.Equal(t, int64(2), snap.Used)
			assert.Equal(t, int64(2), snap.Limit)

			require.NoError(t, store.SetLimit(ctx, testDay, 2), "equal to usage is allowed")
			require.NoError(t, store.SetLimit(ctx, "2025-03-12", 0), "an untouched day can be closed")

			assert.Error(t, store.SetLimit(ctx, testDay, -1))

			require.NoError(t, store.SetLimit(ctx, "2025-03-11", 50))
			snap, err = store.Status(ctx, "2025-03-11")
			require.NoError(t, err)
			assert.Equal(t, int64(50), snap.Limit)
		})
	}
}

func TestQuotaStoreHistory(t *testing.T) {
	for name, store := range quotaStores(t, 10) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Reserve(ctx, "2025-03-08", "a")
			require.NoError(t, err)
			_, err = store.Reserve(ctx, "2025-03-10", "b")
			require.NoError(t, err)
			_, err = store.Reserve(ctx, "2025-03-10", "c")
			require.NoError(t, err)

			hist, err := store.History(ctx, []string{"2025-03-10", "2025-03-09", "2025-03-08"})
			require.NoError(t, err)
			require.Len(t, hist, 2, "days without a quota row are skipped")
			assert.Equal(t, "2025-03-10", hist[0].DateKey)
			assert.Equal(t, int64(2), hist[0].Used)
			assert.Equal(t, "2025-03-08", hist[1].DateKey)

			empty, err := store.History(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestQuotaStoreNoOvershootUnderContention(t *testing.T) {
	const (
		limit    = 5
		attempts = 25
	)
	for name, store := range quotaStores(t, limit) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			results := make(chan port.ReserveResult, attempts)

			var wg sync.WaitGroup
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					r, err := store.Reserve(ctx, testDay, fmt.Sprintf("c-%d", i))
					if err != nil {
						t.Errorf("reserve: %v", err)
						return
					}
					results <- r.Result
				}(i)
			}
			wg.Wait()
			close(results)

			counts := map[port.ReserveResult]int{}
			for r := range results {
				counts[r]++
			}
			assert.Equal(t, limit, counts[port.ReserveResultReserved])
			assert.Equal(t, attempts-limit, counts[port.ReserveResultExhausted])

			snap, err := store.Status(ctx, testDay)
			require.NoError(t, err)
			assert.Equal(t, int64(limit), snap.Used)
		})
	}
}

func TestQuotaGormUsedMatchesReservationRows(t *testing.T) {
	ctx := context.Background()
	db := testfixtures.NewSQLiteDB(t)
	require.NoError(t, infrastructure.AutoMigrate(db))
	store := NewQuotaGormAdapter(db, 3)

	for _, cid := range []string{"a", "b", "c", "d"} {
		_, err := store.Reserve(ctx, testDay, cid)
		require.NoError(t, err)
	}
	_, err := store.Release(ctx, testDay, "b")
	require.NoError(t, err)

	var rows int64
	require.NoError(t, db.Model(&infrastructure.DiscountQuotaReservationModel{}).Where("date_key = ?", testDay).Count(&rows).Error)
	snap, err := store.Status(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, rows, snap.Used)
	assert.Equal(t, int64(2), snap.Used)
}

func TestQuotaRedisKeysExpire(t *testing.T) {
	store, mr := newRedisStore(t, 3)
	_, err := store.Reserve(context.Background(), testDay, "c1")
	require.NoError(t, err)

	assert.True(t, mr.Exists(limitKey(testDay)))
	assert.Equal(t, quotaKeyTTL, mr.TTL(limitKey(testDay)))
	assert.Equal(t, quotaKeyTTL, mr.TTL(reservationsKey(testDay)))

	mr.FastForward(quotaKeyTTL + 1)
	assert.False(t, mr.Exists(reservationsKey(testDay)))
}

// 固定种子的 reserve/release 混合序列，每一步之后 used == |持有者| <= limit。
// 随机生成序列的版本在 property 标签下运行。
func TestQuotaConservationUnderMixedOperations(t *testing.T) {
	for name, store := range quotaStores(t, 4) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(7, 11))
			held := map[string]bool{}

			for i := 0; i < 200; i++ {
				cid := fmt.Sprintf("c%d", rng.IntN(8))
				if rng.IntN(3) == 0 {
					released, err := store.Release(ctx, testDay, cid)
					require.NoError(t, err)
					assert.Equal(t, held[cid], released, "step %d release %s", i, cid)
					delete(held, cid)
				} else {
					r, err := store.Reserve(ctx, testDay, cid)
					require.NoError(t, err)
					if r.Result.Succeeded() {
						held[cid] = true
					}
				}

				snap, err := store.Status(ctx, testDay)
				require.NoError(t, err)
				require.Equal(t, int64(len(held)), snap.Used, "step %d", i)
				require.LessOrEqual(t, snap.Used, snap.Limit, "step %d", i)
			}
		})
	}
}
