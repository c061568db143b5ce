package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// The value written by SETNX is the owner token. Both scripts act only
// while the key still holds it, so a worker whose lock already expired
// cannot release or extend the next holder's lock.
var (
	compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	compareAndExpireScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// CompareAndDelete deletes key only while it still holds value.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return c.runOwnerScript(ctx, compareAndDeleteScript, key, value)
}

// CompareAndExpire resets the TTL of key only while it still holds value.
func (c *Client) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.runOwnerScript(ctx, compareAndExpireScript, key, value, ttl.Milliseconds())
}

func (c *Client) runOwnerScript(ctx context.Context, script *redis.Script, key string, args ...any) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	n, err := script.Run(ctx, store, []string{key}, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
