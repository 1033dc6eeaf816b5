// Package telegramwebhook guards webhook delivery of chat updates.
package telegramwebhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/chatshop/pkg/redis"
)

// Scope namespaces update ids in the idempotency keyspace.
const Scope = "telegram_update"

// IdempotencyGuard remembers update ids so redelivered updates are dropped.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: Scope,
	}, nil
}

// CheckAndMark marks updateID as seen and reports whether it already was.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, updateID int64) (bool, error) {
	if updateID <= 0 {
		return false, errors.New("update id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(updateID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete forgets updateID so a redelivery is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, updateID int64) error {
	if updateID <= 0 {
		return errors.New("update id is required")
	}
	return g.store.Del(ctx, g.key(updateID))
}

func (g *IdempotencyGuard) key(updateID int64) string {
	return g.store.IdempotencyKey(g.scope, strconv.FormatInt(updateID, 10))
}
