// Package memory provides in-process repository implementations for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/boxoffice/checkout/internal/domain"
	"github.com/boxoffice/checkout/internal/repositories"
)

// OrganizerSettingsRepository serves organizer settings from memory.
type OrganizerSettingsRepository struct {
	mu        sync.RWMutex
	organizer map[string]domain.OrganizerSettings
}

var _ repositories.OrganizerSettingsRepository = (*OrganizerSettingsRepository)(nil)

// NewOrganizerSettingsRepository seeds the repository with settings keyed by OrganizerID.
func NewOrganizerSettingsRepository(settings ...domain.OrganizerSettings) *OrganizerSettingsRepository {
	repo := &OrganizerSettingsRepository{organizer: make(map[string]domain.OrganizerSettings, len(settings))}
	for _, s := range settings {
		repo.Put(s)
	}
	return repo
}

// organizerFile is the JSON layout accepted by LoadOrganizerSettingsFile.
type organizerFile struct {
	Organizers []struct {
		ID              string                  `json:"id"`
		Currency        string                  `json:"currency"`
		FeePolicy       domain.FeePolicy        `json:"feePolicy"`
		DeliveryOptions []domain.DeliveryOption `json:"deliveryOptions"`
	} `json:"organizers"`
}

// LoadOrganizerSettingsFile builds a repository from a JSON seed file.
func LoadOrganizerSettingsFile(path string) (*OrganizerSettingsRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory: read organizers file: %w", err)
	}
	var file organizerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("memory: decode organizers file %s: %w", path, err)
	}
	repo := NewOrganizerSettingsRepository()
	for _, o := range file.Organizers {
		if strings.TrimSpace(o.ID) == "" {
			return nil, errors.New("memory: organizer without id in seed file")
		}
		repo.Put(domain.OrganizerSettings{
			OrganizerID:     o.ID,
			Currency:        strings.ToUpper(o.Currency),
			FeePolicy:       o.FeePolicy,
			DeliveryOptions: o.DeliveryOptions,
		})
	}
	return repo, nil
}

// Put inserts or replaces the settings of one organizer.
func (r *OrganizerSettingsRepository) Put(settings domain.OrganizerSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings.DeliveryOptions = append([]domain.DeliveryOption(nil), settings.DeliveryOptions...)
	r.organizer[settings.OrganizerID] = settings
}

// FindByID returns a repositories.NotFoundError for unknown organizers.
func (r *OrganizerSettingsRepository) FindByID(ctx context.Context, organizerID string) (domain.OrganizerSettings, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrganizerSettings{}, err
	}
	r.mu.RLock()
	settings, ok := r.organizer[organizerID]
	r.mu.RUnlock()
	if !ok {
		return domain.OrganizerSettings{}, &repositories.NotFoundError{Entity: "organizer", ID: organizerID}
	}
	settings.DeliveryOptions = append([]domain.DeliveryOption(nil), settings.DeliveryOptions...)
	return settings, nil
}
