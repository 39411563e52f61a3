package services

import (
	"context"
	"time"

	"github.com/boxoffice/checkout/internal/domain"
)

// BreakdownService resolves organizer settings and produces financial breakdowns.
type BreakdownService interface {
	Calculate(ctx context.Context, cmd CalculateBreakdownCommand) (BreakdownResult, error)
}

// CalculateBreakdownCommand describes one breakdown request. An inline FeePolicy takes
// precedence over the organizer's; RefundSystemFees falls back to the basket's order status.
type CalculateBreakdownCommand struct {
	OrganizerID        string
	Basket             domain.BasketSnapshot
	FeePolicy          *domain.FeePolicy
	Delivery           *domain.DeliveryOption
	DeliveryOptionID   string
	IncludeDeliveryFee *bool
	RefundSystemFees   *bool
	BypassCache        bool
}

// BreakdownResult carries the breakdown and the basket version it was computed for.
type BreakdownResult struct {
	Breakdown     domain.FinancialBreakdown
	BasketID      string
	BasketVersion int64
	CalculationID string
	Cached        bool
	CalculatedAt  time.Time
}

// HealthService reports the state of downstream dependencies.
type HealthService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SystemHealthReport is returned by HealthService.
type SystemHealthReport = domain.SystemHealthReport
