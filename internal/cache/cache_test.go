package cache

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxoffice/checkout/internal/domain"
)

func sampleInput() FingerprintInput {
	fee := decimal.NewFromInt(2)
	return FingerprintInput{
		Items: domain.LineItems{
			domain.TicketLineItem{LineItemBase: domain.LineItemBase{ID: "t1", Quantity: 1, TotalPrice: decimal.NewFromInt(50), VATRate: decimal.NewFromInt(19)}},
		},
		Policy:   domain.FeePolicy{SystemFeeAmount: &fee},
		Currency: "EUR",
	}
}

func TestFingerprintIsStableAndSensitive(t *testing.T) {
	a, err := Fingerprint(sampleInput())
	require.NoError(t, err)
	b, err := Fingerprint(sampleInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, keyPrefix))

	refund := sampleInput()
	refund.RefundSystemFees = true
	c, err := Fingerprint(refund)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	other := sampleInput()
	other.Currency = "CHF"
	d, err := Fingerprint(other)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestNoopBreakdownCacheAlwaysMisses(t *testing.T) {
	var c NoopBreakdownCache
	require.NoError(t, c.Set(context.Background(), "k", domain.FinancialBreakdown{Currency: "EUR"}, time.Minute))

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBreakdownCacheExpiry(t *testing.T) {
	now := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryBreakdownCache(WithMemoryClock(func() time.Time { return now }))
	value := domain.FinancialBreakdown{Currency: "EUR", TotalAmount: decimal.RequireFromString("42.50")}

	require.NoError(t, c.Set(context.Background(), "k", value, time.Minute))

	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.TotalAmount.Equal(value.TotalAmount))

	now = now.Add(time.Minute)
	_, ok, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryBreakdownCacheZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewMemoryBreakdownCache(WithMemoryClock(func() time.Time { return now }))
	require.NoError(t, c.Set(context.Background(), "k", domain.FinancialBreakdown{Currency: "EUR"}, 0))

	now = now.Add(24 * time.Hour)
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryBreakdownCacheHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewMemoryBreakdownCache()
	assert.ErrorIs(t, c.Set(ctx, "k", domain.FinancialBreakdown{}, time.Minute), context.Canceled)
	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBreakdownCacheSweepsExpiredEntriesOnWrite(t *testing.T) {
	now := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryBreakdownCache(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("basket-%d", i), domain.FinancialBreakdown{Currency: "EUR"}, time.Minute))
		now = now.Add(time.Minute)
	}
	if got := c.Len(); got != 1 {
		t.Fatalf("expected only the latest entry to survive, got %d", got)
	}

	require.NoError(t, c.Set(ctx, "pinned", domain.FinancialBreakdown{Currency: "EUR"}, 0))
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("late-%d", i), domain.FinancialBreakdown{Currency: "EUR"}, 30*time.Second))
	}
	assert.Equal(t, 11, c.Len(), "pinned and the late entries")

	now = now.Add(time.Hour)
	require.NoError(t, c.Set(ctx, "fresh", domain.FinancialBreakdown{Currency: "EUR"}, time.Minute))
	assert.Equal(t, 2, c.Len(), "pinned and fresh remain")

	_, ok, err := c.Get(ctx, "pinned")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryBreakdownCacheIsolatesVATBreakdown(t *testing.T) {
	c := NewMemoryBreakdownCache()
	ctx := context.Background()
	value := domain.FinancialBreakdown{
		Currency: "EUR",
		VATBreakdown: []domain.VATBucket{
			{Rate: decimal.RequireFromString("7"), Amount: decimal.RequireFromString("1.31")},
			{Rate: decimal.RequireFromString("19"), Amount: decimal.RequireFromString("3.19")},
		},
	}
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value.VATBreakdown[0].Amount = decimal.RequireFromString("99")

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.31", got.VATBreakdown[0].Amount.StringFixed(2))

	got.VATBreakdown[1].Amount = decimal.Zero
	again, _, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "3.19", again.VATBreakdown[1].Amount.StringFixed(2))
}
