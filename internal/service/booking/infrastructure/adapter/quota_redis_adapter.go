package adapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"medisaga/internal/pkg/redis"
	"medisaga/internal/service/booking/domain/port"
)

const (
	reserveQuotaScriptName  = "reserve_discount_quota"
	setQuotaLimitScriptName = "set_discount_quota_limit"

	// 当天的 key 保留一周多，供管理端查询历史
	quotaKeyTTL = 8 * 24 * time.Hour
)

// QuotaRedisAdapter 是 port.DiscountQuotaStore 的 Redis 实现。
// 已用数量就是预留集合的基数，两者不可能不一致。
type QuotaRedisAdapter struct {
	redisClient  *redis.Client
	defaultLimit int64
}

// NewQuotaRedisAdapter 创建时加载预留脚本
func NewQuotaRedisAdapter(redisClient *redis.Client, defaultLimit int64) (*QuotaRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(reserveQuotaScriptName, reserveQuotaScript); err != nil {
		return nil, fmt.Errorf("failed to load critical quota script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(setQuotaLimitScriptName, setQuotaLimitScript); err != nil {
		return nil, fmt.Errorf("failed to load quota limit script: %w", err)
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultDailyQuota
	}
	return &QuotaRedisAdapter{redisClient: redisClient, defaultLimit: defaultLimit}, nil
}

func limitKey(dateKey string) string {
	return fmt.Sprintf("discount:quota:{%s}:limit", dateKey)
}

func reservationsKey(dateKey string) string {
	return fmt.Sprintf("discount:quota:{%s}:reservations", dateKey)
}

func (a *QuotaRedisAdapter) Reserve(ctx context.Context, dateKey, correlationID string) (port.Reservation, error) {
	keys := []string{limitKey(dateKey), reservationsKey(dateKey)}
	args := []interface{}{correlationID, a.defaultLimit, int64(quotaKeyTTL.Seconds())}

	result, err := a.redisClient.RunScript(ctx, reserveQuotaScriptName, keys, args...)
	if err != nil {
		return port.Reservation{}, fmt.Errorf("quota adapter failed to run script: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return port.Reservation{}, fmt.Errorf("unexpected result from quota script: %v", result)
	}
	nums := make([]int64, 3)
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return port.Reservation{}, fmt.Errorf("unexpected result type from Lua script: %T", v)
		}
		nums[i] = n
	}

	snap := port.QuotaSnapshot{DateKey: dateKey, Used: nums[1], Limit: nums[2]}
	switch nums[0] {
	case 1:
		return port.Reservation{Result: port.ReserveResultReserved, QuotaSnapshot: snap}, nil
	case 2:
		return port.Reservation{Result: port.ReserveResultAlreadyHeld, QuotaSnapshot: snap}, nil
	case 0:
		return port.Reservation{Result: port.ReserveResultExhausted, QuotaSnapshot: snap}, nil
	default:
		return port.Reservation{}, fmt.Errorf("unknown result code from quota script: %d", nums[0])
	}
}

// Release SREM 本身就是“在集合中才移除”的原子操作
func (a *QuotaRedisAdapter) Release(ctx context.Context, dateKey, correlationID string) (bool, error) {
	n, err := a.redisClient.GetClient().SRem(ctx, reservationsKey(dateKey), correlationID).Result()
	if err != nil {
		return false, fmt.Errorf("release discount quota %s for %s: %w", dateKey, correlationID, err)
	}
	return n == 1, nil
}

func (a *QuotaRedisAdapter) Check(ctx context.Context, dateKey, correlationID string) (bool, port.QuotaSnapshot, error) {
	var member *goredis.BoolCmd
	var used *goredis.IntCmd
	var limit *goredis.StringCmd
	_, err := a.redisClient.GetClient().TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		member = pipe.SIsMember(ctx, reservationsKey(dateKey), correlationID)
		used = pipe.SCard(ctx, reservationsKey(dateKey))
		limit = pipe.Get(ctx, limitKey(dateKey))
		return nil
	})
	if err != nil && err != goredis.Nil {
		return false, port.QuotaSnapshot{}, fmt.Errorf("check discount quota %s: %w", dateKey, err)
	}
	snap, err := a.snapshot(dateKey, used, limit)
	if err != nil {
		return false, port.QuotaSnapshot{}, err
	}
	return member.Val(), snap, nil
}

func (a *QuotaRedisAdapter) Status(ctx context.Context, dateKey string) (port.QuotaSnapshot, error) {
	var used *goredis.IntCmd
	var limit *goredis.StringCmd
	_, err := a.redisClient.GetClient().TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		used = pipe.SCard(ctx, reservationsKey(dateKey))
		limit = pipe.Get(ctx, limitKey(dateKey))
		return nil
	})
	if err != nil && err != goredis.Nil {
		return port.QuotaSnapshot{}, fmt.Errorf("load discount quota %s: %w", dateKey, err)
	}
	return a.snapshot(dateKey, used, limit)
}

func (a *QuotaRedisAdapter) SetLimit(ctx context.Context, dateKey string, limit int64) error {
	if limit < 0 {
		return fmt.Errorf("quota limit must not be negative: %d", limit)
	}
	keys := []string{limitKey(dateKey), reservationsKey(dateKey)}
	result, err := a.redisClient.RunScript(ctx, setQuotaLimitScriptName, keys, limit, int64(quotaKeyTTL.Seconds()))
	if err != nil {
		return fmt.Errorf("set discount quota limit %s: %w", dateKey, err)
	}
	if ok, _ := result.(int64); ok != 1 {
		return fmt.Errorf("set discount quota limit %s: %w", dateKey, port.ErrLimitBelowUsage)
	}
	return nil
}

// History 只返回 Redis 中仍存在的日期
func (a *QuotaRedisAdapter) History(ctx context.Context, dateKeys []string) ([]port.QuotaSnapshot, error) {
	if len(dateKeys) == 0 {
		return nil, nil
	}
	type cmds struct {
		used  *goredis.IntCmd
		limit *goredis.StringCmd
	}
	byDay := make(map[string]cmds, len(dateKeys))
	_, err := a.redisClient.GetClient().Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, d := range dateKeys {
			byDay[d] = cmds{
				used:  pipe.SCard(ctx, reservationsKey(d)),
				limit: pipe.Get(ctx, limitKey(d)),
			}
		}
		return nil
	})
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("load discount quota history: %w", err)
	}

	out := make([]port.QuotaSnapshot, 0, len(dateKeys))
	for d, c := range byDay {
		if c.limit.Err() == goredis.Nil && c.used.Val() == 0 {
			continue
		}
		snap, err := a.snapshot(d, c.used, c.limit)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey > out[j].DateKey })
	return out, nil
}

func (a *QuotaRedisAdapter) snapshot(dateKey string, used *goredis.IntCmd, limit *goredis.StringCmd) (port.QuotaSnapshot, error) {
	snap := port.QuotaSnapshot{DateKey: dateKey, Used: used.Val(), Limit: a.defaultLimit}
	if limit.Err() == goredis.Nil {
		return snap, nil
	}
	n, err := limit.Int64()
	if err != nil {
		return port.QuotaSnapshot{}, fmt.Errorf("parse discount quota limit %s: %w", dateKey, err)
	}
	snap.Limit = n
	return snap, nil
}

var reserveQuotaScript = `
-- KEYS[1]: 当天上限, 例如: discount:quota:{2024-01-01}:limit
-- KEYS[2]: 当天预留集合, 例如: discount:quota:{2024-01-01}:reservations
-- ARGV[1]: correlation id
-- ARGV[2]: 默认上限
-- ARGV[3]: key 过期秒数

local limit = tonumber(redis.call('get', KEYS[1]))
if not limit then
    limit = tonumber(ARGV[2])
    redis.call('set', KEYS[1], limit, 'EX', ARGV[3])
end

-- 1. 已经预留过, 重复投递
if redis.call('sismember', KEYS[2], ARGV[1]) == 1 then
    return {2, redis.call('scard', KEYS[2]), limit}
end

-- 2. 名额用完
local used = redis.call('scard', KEYS[2])
if used >= limit then
    return {0, used, limit}
end

-- 3. 占用名额
redis.call('sadd', KEYS[2], ARGV[1])
redis.call('expire', KEYS[2], ARGV[3])
return {1, used + 1, limit}
`

var setQuotaLimitScript = `
-- KEYS[1]: 当天上限
-- KEYS[2]: 当天预留集合
-- ARGV[1]: 新上限
-- ARGV[2]: key 过期秒数

if redis.call('scard', KEYS[2]) > tonumber(ARGV[1]) then
    return 0
end
redis.call('set', KEYS[1], ARGV[1], 'EX', ARGV[2])
return 1
`
