package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	// loadTimeout bounds a shared load; it no longer follows any one caller.
	loadTimeout = 5 * time.Second
	// genTTL only has to outlive a load. An expired generation reads as "0",
	// which makes an in-flight write skip, never land.
	genTTL = 24 * time.Hour
)

// setIfGen writes KEYS[1] only while the generation in KEYS[2] still equals
// the one observed before the load started.
var setIfGen = redis.NewScript(`
local g = redis.call('GET', KEYS[2]) or '0'
if g ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

func genKey(key string) string { return key + ":gen" }

func (c *Cache) generation(ctx context.Context, key string) (string, error) {
	g, err := c.RDB.Get(ctx, genKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return g, err
}

// GetOrLoad returns the cached bytes for key or runs load once per key across
// concurrent callers. A Delete that lands while load runs wins: the loaded
// value is returned but not stored.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	// 先读缓存
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源；回源不随首个调用方取消
	ch := c.sf.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		gen, err := c.generation(lctx, key)
		if err != nil {
			gen = "" // 读不到代次：本次只回源，不写缓存
		}
		b, e := load(lctx)
		if e != nil {
			return nil, e
		}
		if gen != "" {
			_ = setIfGen.Run(lctx, c.RDB, []string{key, genKey(key)}, gen, b, ttl.Milliseconds()).Err()
		}
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

// Delete drops keys and bumps their generation so a load already in flight
// cannot write its value back. A key that was never cached is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		c.sf.Forget(k)
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, genKey(k))
			p.Expire(ctx, genKey(k), genTTL)
		}
		p.Del(ctx, keys...)
		return nil
	})
	return err
}
