package redis

import (
	"context"
	"errors"
	"time"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

var errLockTTL = errors.New("redis: lock ttl must be positive")

// AcquireLock takes key for ttl if it is free. token identifies the holder
// and must be passed back to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errLockTTL
	}
	return c.SetNX(ctx, key, token, ttl)
}

// ReleaseLock reports whether token still held key. A lock that expired and
// was taken over by another holder is left in place.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	n, err := c.cmd.Eval(ctx, compareAndDelete, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
