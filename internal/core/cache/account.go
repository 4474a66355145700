package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"go-gin-gorm-accounts/internal/domain"
)

const accountKeyPrefix = "accounts:v1:id:"

func AccountKey(id string) string { return accountKeyPrefix + id }

// AccountCache holds public projections keyed by id. It never sees a
// credential hash because domain.Account has no field for one.
type AccountCache struct {
	c   *Cache
	ttl time.Duration
	l   *zap.Logger
}

func NewAccountCache(c *Cache, ttl time.Duration, l *zap.Logger) *AccountCache {
	if l == nil {
		l = zap.NewNop()
	}
	return &AccountCache{c: c, ttl: ttl, l: l}
}

func (a *AccountCache) Get(ctx context.Context, id string, load func(context.Context) (*domain.Account, error)) (*domain.Account, error) {
	return GetOrLoadJSON(a.c, ctx, AccountKey(id), a.ttl, load)
}

// Invalidate is best effort; a failure leaves the entry to expire by TTL.
func (a *AccountCache) Invalidate(ctx context.Context, id string) {
	if err := a.c.Delete(ctx, AccountKey(id)); err != nil {
		a.l.Warn("cache invalidate failed", zap.String("id", id), zap.Error(err))
	}
}
