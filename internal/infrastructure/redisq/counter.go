package redisq

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// decrementScript floors the counter at zero — duplicate completion signals
// must not drive it negative.
var decrementScript = redis.NewScript(`
local v = redis.call("DECR", KEYS[1])
if v < 0 then
	redis.call("SET", KEYS[1], 0)
	return 0
end
return v
`)

// Counter tracks per-account concurrent executions. It is advisory: the
// authoritative admission check is re-derived from processing/running records,
// so a missed decrement degrades scheduling fairness, not correctness.
type Counter struct {
	client *redis.Client
	prefix string
}

func NewCounter(client *redis.Client) *Counter {
	return &Counter{client: client, prefix: "concurrency:"}
}

func (c *Counter) Increment(ctx context.Context, uid string) (int, error) {
	v, err := c.client.Incr(ctx, c.prefix+uid).Result()
	if err != nil {
		return 0, fmt.Errorf("increment concurrency for %s: %w", uid, err)
	}
	return int(v), nil
}

func (c *Counter) Decrement(ctx context.Context, uid string) error {
	if err := decrementScript.Run(ctx, c.client, []string{c.prefix + uid}).Err(); err != nil {
		return fmt.Errorf("decrement concurrency for %s: %w", uid, err)
	}
	return nil
}

func (c *Counter) Current(ctx context.Context, uid string) (int, error) {
	v, err := c.client.Get(ctx, c.prefix+uid).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read concurrency for %s: %w", uid, err)
	}
	return v, nil
}
