package domain

import "time"

// OrderStatus enumerates the payment lifecycle states of the order a basket belongs to.
type OrderStatus string

const (
	// OrderStatusPending indicates payment has not completed yet.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates payment succeeded.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusRefunded indicates the order has been (partially) refunded.
	OrderStatusRefunded OrderStatus = "refunded"
	// OrderStatusCanceled indicates the order has been canceled.
	OrderStatusCanceled OrderStatus = "canceled"
)

// RefundsSystemFees reports whether refunds in this state also return system fees.
// While payment is still pending a full monetary refund is simpler than keeping fees.
func (s OrderStatus) RefundsSystemFees() bool {
	return s == OrderStatusPending
}

// BasketSnapshot is an immutable, versioned copy of the cart state handed to the
// breakdown engine. Version increases with every mutation of the cart.
type BasketSnapshot struct {
	ID          string      `json:"id"`
	Version     int64       `json:"version"`
	Currency    string      `json:"currency"`
	OrderStatus OrderStatus `json:"orderStatus,omitempty"`
	Items       LineItems   `json:"items"`
}

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
