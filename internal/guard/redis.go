package guard

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaSlidingWindow menjalankan prune + hitung + catat dalam satu langkah
// atomik di Redis.
// KEYS[1]=window key, ARGV[1]=now unix, ARGV[2]=window start, ARGV[3]=window
// seconds, ARGV[4]=member, ARGV[5]=limit. Returns -1 when over the limit.
const luaSlidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// Redis is the shared guard: one window per source key across instances.
type Redis struct {
	rdb    *rd.Client
	window time.Duration
	limit  int
}

func NewRedis(rdb *rd.Client, limit int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, window: window, limit: limit}
}

func (g *Redis) Allow(ctx context.Context, sourceKey string) (bool, error) {
	now := time.Now().Unix()
	windowSec := int64(g.window.Seconds())
	member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

	res, err := g.rdb.Eval(ctx, luaSlidingWindow, []string{key(sourceKey)},
		now, now-windowSec, windowSec, member, g.limit).Int()
	if err != nil {
		return false, err
	}
	return res >= 0, nil
}

func key(sourceKey string) string {
	return fmt.Sprintf("voucher_shop:checkout_window:%s", sourceKey)
}
