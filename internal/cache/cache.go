// Package cache stores computed financial breakdowns keyed by a fingerprint of
// their inputs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boxoffice/checkout/internal/domain"
)

const keyPrefix = "breakdown:"

// BreakdownCache is implemented by every cache backend. Get reports a miss
// with ok=false and a nil error.
type BreakdownCache interface {
	Get(ctx context.Context, key string) (domain.FinancialBreakdown, bool, error)
	Set(ctx context.Context, key string, value domain.FinancialBreakdown, ttl time.Duration) error
}

// NoopBreakdownCache never stores anything.
type NoopBreakdownCache struct{}

func (NoopBreakdownCache) Get(context.Context, string) (domain.FinancialBreakdown, bool, error) {
	return domain.FinancialBreakdown{}, false, nil
}

func (NoopBreakdownCache) Set(context.Context, string, domain.FinancialBreakdown, time.Duration) error {
	return nil
}

// FingerprintInput lists everything that influences a breakdown.
type FingerprintInput struct {
	Items            domain.LineItems       `json:"items"`
	Policy           domain.FeePolicy       `json:"policy"`
	Delivery         *domain.DeliveryOption `json:"delivery,omitempty"`
	Currency         string                 `json:"currency"`
	IncludeDelivery  *bool                  `json:"includeDelivery,omitempty"`
	RefundSystemFees bool                   `json:"refundSystemFees"`
}

// Fingerprint derives a stable cache key from the breakdown inputs. Line item
// order is significant.
func Fingerprint(in FingerprintInput) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("cache: fingerprint: %w", err)
	}
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}
