// Package redisx holds the storefront's Redis keys and helpers.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idem:checkout:{uid}:{client key} -> "pending" or order id
	KeyIdemCheckout = "idem:checkout:%s"

	// inventory:summary -> text block fed to the shopping assistant
	KeyInventorySummary = "inventory:summary"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLInventory   = 5 * time.Minute
)

const pendingMarker = "pending"

func New(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Idempotency reserves client supplied checkout keys.
type Idempotency struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewIdempotency(rdb redis.UniversalClient) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: TTLIdempotency}
}

// Reserve claims key. When the key already finished it returns the order id
// stored by Complete; while another attempt holds it, reserved is false and
// orderID is empty.
func (i *Idempotency) Reserve(ctx context.Context, key string) (string, bool, error) {
	k := fmt.Sprintf(KeyIdemCheckout, key)
	ok, err := i.rdb.SetNX(ctx, k, pendingMarker, i.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	val, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if val == pendingMarker {
		return "", false, nil
	}
	return val, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, key), orderID, i.ttl).Err()
}

func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Err()
}

// TextCache stores short lived text blobs such as the inventory summary.
type TextCache struct {
	rdb redis.UniversalClient
}

func NewTextCache(rdb redis.UniversalClient) *TextCache {
	return &TextCache{rdb: rdb}
}

// Get returns ok=false on a miss.
func (c *TextCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *TextCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *TextCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
