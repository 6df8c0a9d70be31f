package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReplay(t *testing.T) (*PaymentReplay, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPaymentReplay(client, time.Hour), mr
}

func testPayment(orderID uuid.UUID, key, amount string) database.Payment {
	var n pgtype.Numeric
	_ = n.Scan(amount)
	return database.Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		Amount:         n,
		PaymentMethod:  database.PaymentMethodCASH,
		IdempotencyKey: key,
		ProcessedBy:    uuid.New(),
		ProcessedAt:    time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
	}
}

func TestPaymentReplay_Miss(t *testing.T) {
	c, _ := setupReplay(t)

	_, ok, err := c.Lookup(context.Background(), uuid.New(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentReplay_RememberAndLookup(t *testing.T) {
	c, mr := setupReplay(t)
	ctx := context.Background()
	p := testPayment(uuid.New(), "k-1", "85.00")

	require.NoError(t, c.Remember(ctx, p))

	got, ok, err := c.Lookup(ctx, p.OrderID, "k-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.IdempotencyKey, got.IdempotencyKey)
	assert.True(t, p.ProcessedAt.Equal(got.ProcessedAt))
	assert.Equal(t, time.Hour, mr.TTL(c.Key(p.OrderID, "k-1")))

	// Keys are scoped per order.
	_, ok, err = c.Lookup(ctx, uuid.New(), "k-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentReplay_FirstWriterWins(t *testing.T) {
	c, _ := setupReplay(t)
	ctx := context.Background()
	orderID := uuid.New()
	first := testPayment(orderID, "k", "10.00")
	second := testPayment(orderID, "k", "99.00")

	require.NoError(t, c.Remember(ctx, first))
	require.NoError(t, c.Remember(ctx, second))

	got, ok, err := c.Lookup(ctx, orderID, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
}

func TestPaymentReplay_Expires(t *testing.T) {
	c, mr := setupReplay(t)
	ctx := context.Background()
	p := testPayment(uuid.New(), "k", "10.00")
	require.NoError(t, c.Remember(ctx, p))

	mr.FastForward(2 * time.Hour)

	_, ok, err := c.Lookup(ctx, p.OrderID, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentReplay_CorruptEntry(t *testing.T) {
	c, mr := setupReplay(t)
	orderID := uuid.New()
	require.NoError(t, mr.Set(c.Key(orderID, "k"), "{not json"))

	_, _, err := c.Lookup(context.Background(), orderID, "k")
	assert.Error(t, err)
}

func TestPaymentReplay_RedisDown(t *testing.T) {
	c, mr := setupReplay(t)
	mr.Close()

	_, _, err := c.Lookup(context.Background(), uuid.New(), "k")
	assert.Error(t, err)
}
