package repositories

import (
	"context"

	"github.com/boxoffice/checkout/internal/domain"
)

// RepositoryError wraps backend failures with the categorisation the breakdown
// service maps to client errors (not found) or retryable outages (unavailable).
type RepositoryError interface {
	error
	IsNotFound() bool
	IsUnavailable() bool
}

// OrganizerSettingsRepository reads the organizer record that supplies the
// system fee policy and the delivery option catalog. Implementations are read-only.
type OrganizerSettingsRepository interface {
	FindByID(ctx context.Context, organizerID string) (domain.OrganizerSettings, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
