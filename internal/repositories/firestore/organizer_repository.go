package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boxoffice/checkout/internal/domain"
	pfirestore "github.com/boxoffice/checkout/internal/platform/firestore"
	"github.com/boxoffice/checkout/internal/repositories"
)

const organizerCollection = "organizers"

// OrganizerSettingsRepository reads organizer fee policies and delivery catalogs from Firestore.
type OrganizerSettingsRepository struct {
	docs *pfirestore.ReadRepository[organizerDocument]
}

var _ repositories.OrganizerSettingsRepository = (*OrganizerSettingsRepository)(nil)

// NewOrganizerSettingsRepository constructs a Firestore-backed organizer settings repository.
func NewOrganizerSettingsRepository(provider *pfirestore.Provider) (*OrganizerSettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("organizer settings repository requires firestore provider")
	}
	return &OrganizerSettingsRepository{
		docs: pfirestore.NewReadRepository[organizerDocument](provider, organizerCollection, nil),
	}, nil
}

// FindByID loads the organizer document. Missing documents surface as a
// pfirestore.Error with IsNotFound set.
func (r *OrganizerSettingsRepository) FindByID(ctx context.Context, organizerID string) (domain.OrganizerSettings, error) {
	organizerID = strings.TrimSpace(organizerID)
	doc, err := r.docs.Get(ctx, organizerID)
	if err != nil {
		return domain.OrganizerSettings{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// Money values are stored as strings so Firestore never sees a float.
type organizerDocument struct {
	Currency            string             `firestore:"currency"`
	SystemFeeAmount     string             `firestore:"systemFeeAmount,omitempty"`
	SystemFeePercentage string             `firestore:"systemFeePercentage,omitempty"`
	SystemFeeVATRate    string             `firestore:"systemFeeVatRate,omitempty"`
	DeliveryOptions     []deliveryDocument `firestore:"deliveryOptions,omitempty"`
}

type deliveryDocument struct {
	ID        string `firestore:"id"`
	Type      string `firestore:"type"`
	FeeAmount string `firestore:"feeAmount"`
	VATRate   string `firestore:"vatRate"`
}

func (d organizerDocument) toDomain(id string) (domain.OrganizerSettings, error) {
	amount, err := optionalDecimal("systemFeeAmount", d.SystemFeeAmount)
	if err != nil {
		return domain.OrganizerSettings{}, fmt.Errorf("organizer %s: %w", id, err)
	}
	percentage, err := optionalDecimal("systemFeePercentage", d.SystemFeePercentage)
	if err != nil {
		return domain.OrganizerSettings{}, fmt.Errorf("organizer %s: %w", id, err)
	}
	vatRate, err := optionalDecimal("systemFeeVatRate", d.SystemFeeVATRate)
	if err != nil {
		return domain.OrganizerSettings{}, fmt.Errorf("organizer %s: %w", id, err)
	}

	options := make([]domain.DeliveryOption, 0, len(d.DeliveryOptions))
	for i, opt := range d.DeliveryOptions {
		fee, err := requiredDecimal("feeAmount", opt.FeeAmount)
		if err != nil {
			return domain.OrganizerSettings{}, fmt.Errorf("organizer %s delivery option %d: %w", id, i, err)
		}
		rate, err := requiredDecimal("vatRate", opt.VATRate)
		if err != nil {
			return domain.OrganizerSettings{}, fmt.Errorf("organizer %s delivery option %d: %w", id, i, err)
		}
		options = append(options, domain.DeliveryOption{
			ID:        strings.TrimSpace(opt.ID),
			Type:      domain.DeliveryType(strings.ToLower(strings.TrimSpace(opt.Type))),
			FeeAmount: fee,
			VATRate:   rate,
		})
	}

	return domain.OrganizerSettings{
		OrganizerID: id,
		Currency:    strings.ToUpper(strings.TrimSpace(d.Currency)),
		FeePolicy: domain.FeePolicy{
			SystemFeeAmount:     amount,
			SystemFeePercentage: percentage,
			SystemFeeVATRate:    vatRate,
		},
		DeliveryOptions: options,
	}, nil
}

func optionalDecimal(field, raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	value, err := requiredDecimal(field, raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func requiredDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return value, nil
}
