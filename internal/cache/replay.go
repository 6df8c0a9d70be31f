// Package cache holds the Redis-backed replay cache for payment retries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "payment:idem:"

// PaymentReplay remembers recorded payments by order and idempotency key.
type PaymentReplay struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewPaymentReplay(client *redis.Client, ttl time.Duration) *PaymentReplay {
	return &PaymentReplay{Client: client, TTL: ttl}
}

func (c *PaymentReplay) Key(orderID uuid.UUID, idempotencyKey string) string {
	return keyPrefix + orderID.String() + ":" + idempotencyKey
}

// Lookup returns the payment stored under the key, if any.
func (c *PaymentReplay) Lookup(ctx context.Context, orderID uuid.UUID, idempotencyKey string) (database.Payment, bool, error) {
	raw, err := c.Client.Get(ctx, c.Key(orderID, idempotencyKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return database.Payment{}, false, nil
		}
		return database.Payment{}, false, fmt.Errorf("redis get: %w", err)
	}
	var p database.Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return database.Payment{}, false, fmt.Errorf("decode cached payment: %w", err)
	}
	return p, true, nil
}

// Remember stores p under its key. The first writer wins.
func (c *PaymentReplay) Remember(ctx context.Context, p database.Payment) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payment: %w", err)
	}
	if err := c.Client.SetNX(ctx, c.Key(p.OrderID, p.IdempotencyKey), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}
