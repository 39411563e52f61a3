package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boxoffice/checkout/internal/breakdown"
	"github.com/boxoffice/checkout/internal/cache"
	"github.com/boxoffice/checkout/internal/domain"
	"github.com/boxoffice/checkout/internal/platform/observability"
	"github.com/boxoffice/checkout/internal/platform/requestctx"
	"github.com/boxoffice/checkout/internal/repositories"
)

var (
	// ErrBreakdownInvalidInput indicates the command cannot be evaluated as given.
	ErrBreakdownInvalidInput = errors.New("breakdown: invalid input")
	// ErrBreakdownCurrencyMismatch indicates items or organizer disagree on the basket currency.
	ErrBreakdownCurrencyMismatch = errors.New("breakdown: currency mismatch")
)

// BreakdownServiceDeps bundles collaborators required to construct a breakdown service.
type BreakdownServiceDeps struct {
	Organizers repositories.OrganizerSettingsRepository
	Cache      cache.BreakdownCache
	CacheTTL   time.Duration
	Metrics    *observability.BreakdownMetrics
	Clock      func() time.Time
	IDGen      func() string
}

type breakdownService struct {
	organizers repositories.OrganizerSettingsRepository
	cache      cache.BreakdownCache
	cacheTTL   time.Duration
	metrics    *observability.BreakdownMetrics
	clock      func() time.Time
	newID      func() string
}

var _ BreakdownService = (*breakdownService)(nil)

// NewBreakdownService wires the engine to organizer settings and the memoisation cache.
// A nil repository restricts callers to inline fee policies; a nil cache disables memoisation.
func NewBreakdownService(deps BreakdownServiceDeps) (BreakdownService, error) {
	if deps.CacheTTL < 0 {
		return nil, errors.New("breakdown service: cache ttl must not be negative")
	}
	store := deps.Cache
	if store == nil {
		store = cache.NoopBreakdownCache{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &breakdownService{
		organizers: deps.Organizers,
		cache:      store,
		cacheTTL:   deps.CacheTTL,
		metrics:    deps.Metrics,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *breakdownService) Calculate(ctx context.Context, cmd CalculateBreakdownCommand) (result BreakdownResult, err error) {
	if ctx == nil {
		return BreakdownResult{}, errors.New("breakdown service: context is required")
	}
	started := s.clock()
	ctx, span := observability.StartSpan(ctx, "breakdown.calculate",
		attribute.String("breakdown.basket_id", observability.SanitizeIdentifier(cmd.Basket.ID)),
		attribute.Int64("breakdown.basket_version", cmd.Basket.Version),
		attribute.Int("breakdown.items", len(cmd.Basket.Items)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if _, ok := requestctx.BreakdownScopeFrom(ctx); !ok {
		ctx = requestctx.WithBreakdownScope(ctx, BreakdownScopeFor(cmd))
	}
	logger := observability.FromContext(ctx)

	if err := validateItems(cmd.Basket.Items); err != nil {
		return BreakdownResult{}, err
	}

	var settings *domain.OrganizerSettings
	if needsOrganizer(cmd) {
		loaded, err := s.loadOrganizer(ctx, cmd.OrganizerID)
		if err != nil {
			return BreakdownResult{}, err
		}
		settings = &loaded
	}

	policy, err := resolvePolicy(cmd, settings)
	if err != nil {
		return BreakdownResult{}, err
	}
	delivery, err := resolveDelivery(cmd, settings)
	if err != nil {
		return BreakdownResult{}, err
	}
	currency, err := resolveCurrency(cmd.Basket, settings)
	if err != nil {
		return BreakdownResult{}, err
	}

	opts := breakdown.OptionsForStatus(cmd.Basket.OrderStatus)
	if cmd.RefundSystemFees != nil {
		opts.RefundSystemFees = *cmd.RefundSystemFees
	}
	opts.IncludeDeliveryFee = cmd.IncludeDeliveryFee

	key, err := cache.Fingerprint(cache.FingerprintInput{
		Items:            cmd.Basket.Items,
		Policy:           policy,
		Delivery:         delivery,
		Currency:         currency,
		IncludeDelivery:  opts.IncludeDeliveryFee,
		RefundSystemFees: opts.RefundSystemFees,
	})
	if err != nil {
		return BreakdownResult{}, err
	}

	var (
		value  domain.FinancialBreakdown
		cached bool
	)
	if !cmd.BypassCache {
		value, cached, err = s.cache.Get(ctx, key)
		if err != nil {
			// A failing cache degrades to recomputation.
			logger.Warn("breakdown cache read failed", zap.Error(err))
			cached = false
		}
	}
	if !cached {
		value = breakdown.Compute(cmd.Basket.Items, policy, delivery, currency, opts)
		if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
			logger.Warn("breakdown cache write failed", zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Bool("breakdown.cache_hit", cached),
		attribute.String("breakdown.currency", value.Currency),
	)
	now := s.clock()
	s.metrics.RecordCalculation(ctx, cached, now.Sub(started))

	result = BreakdownResult{
		Breakdown:     value,
		BasketID:      cmd.Basket.ID,
		BasketVersion: cmd.Basket.Version,
		CalculationID: s.newID(),
		Cached:        cached,
		CalculatedAt:  now,
	}
	logger.Debug("breakdown calculated",
		zap.String("calculationId", result.CalculationID),
		zap.Bool("cached", cached),
		zap.String("totalAmount", value.TotalAmount.StringFixed(2)),
	)
	return result, nil
}

// BreakdownScopeFor names the basket cmd calculates, with identifiers made safe for logs.
func BreakdownScopeFor(cmd CalculateBreakdownCommand) requestctx.BreakdownScope {
	return requestctx.BreakdownScope{
		OrganizerID:   observability.SanitizeIdentifier(cmd.OrganizerID),
		BasketID:      observability.SanitizeIdentifier(cmd.Basket.ID),
		BasketVersion: cmd.Basket.Version,
	}
}

func (s *breakdownService) loadOrganizer(ctx context.Context, organizerID string) (domain.OrganizerSettings, error) {
	if s.organizers == nil {
		return domain.OrganizerSettings{}, fmt.Errorf("%w: organizer settings are not available, supply a fee policy", ErrBreakdownInvalidInput)
	}
	settings, err := s.organizers.FindByID(ctx, organizerID)
	if err != nil {
		return domain.OrganizerSettings{}, fmt.Errorf("breakdown: load organizer %s: %w", organizerID, err)
	}
	return settings, nil
}

// needsOrganizer reports whether the command leaves something for the organizer record to supply.
func needsOrganizer(cmd CalculateBreakdownCommand) bool {
	if strings.TrimSpace(cmd.OrganizerID) == "" {
		return false
	}
	if cmd.FeePolicy == nil {
		return true
	}
	return cmd.Delivery == nil && strings.TrimSpace(cmd.DeliveryOptionID) != ""
}

func resolvePolicy(cmd CalculateBreakdownCommand, settings *domain.OrganizerSettings) (domain.FeePolicy, error) {
	if cmd.FeePolicy != nil {
		return *cmd.FeePolicy, nil
	}
	if settings == nil {
		return domain.FeePolicy{}, fmt.Errorf("%w: either organizerId or feePolicy is required", ErrBreakdownInvalidInput)
	}
	return settings.FeePolicy, nil
}

func resolveDelivery(cmd CalculateBreakdownCommand, settings *domain.OrganizerSettings) (*domain.DeliveryOption, error) {
	optionID := strings.TrimSpace(cmd.DeliveryOptionID)
	if cmd.Delivery != nil {
		if optionID != "" {
			return nil, fmt.Errorf("%w: delivery and deliveryOptionId are mutually exclusive", ErrBreakdownInvalidInput)
		}
		option := *cmd.Delivery
		if option.FeeAmount.IsNegative() || option.VATRate.IsNegative() {
			return nil, fmt.Errorf("%w: delivery fee and vat rate must not be negative", ErrBreakdownInvalidInput)
		}
		return &option, nil
	}
	if optionID == "" {
		return nil, nil
	}
	if settings == nil {
		return nil, fmt.Errorf("%w: deliveryOptionId requires organizerId", ErrBreakdownInvalidInput)
	}
	option, ok := settings.DeliveryOption(optionID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown delivery option %q", ErrBreakdownInvalidInput, optionID)
	}
	return &option, nil
}

// resolveCurrency picks the basket currency, falling back to the currency shared by
// the items and then to the organizer's. Disagreement with the basket is a mismatch.
func resolveCurrency(basket domain.BasketSnapshot, settings *domain.OrganizerSettings) (string, error) {
	basketCurrency := normalizeCurrency(basket.Currency)

	itemCurrency := ""
	for _, item := range basket.Items {
		c := normalizeCurrency(item.Base().Currency)
		if c == "" {
			continue
		}
		if itemCurrency != "" && c != itemCurrency {
			return "", fmt.Errorf("%w: items mix %s and %s", ErrBreakdownInvalidInput, itemCurrency, c)
		}
		itemCurrency = c
	}

	resolved := basketCurrency
	if resolved == "" {
		resolved = itemCurrency
	} else if itemCurrency != "" && itemCurrency != resolved {
		return "", fmt.Errorf("%w: basket is %s but items are %s", ErrBreakdownCurrencyMismatch, resolved, itemCurrency)
	}

	if settings != nil {
		organizerCurrency := normalizeCurrency(settings.Currency)
		switch {
		case resolved == "":
			resolved = organizerCurrency
		case organizerCurrency != "" && organizerCurrency != resolved:
			return "", fmt.Errorf("%w: basket is %s but organizer bills in %s", ErrBreakdownCurrencyMismatch, resolved, organizerCurrency)
		}
	}

	if resolved == "" {
		return "", fmt.Errorf("%w: basket currency is required", ErrBreakdownInvalidInput)
	}
	return resolved, nil
}

func validateItems(items domain.LineItems) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item == nil {
			return fmt.Errorf("%w: line item %d is empty", ErrBreakdownInvalidInput, i)
		}
		base := item.Base()
		id := strings.TrimSpace(base.ID)
		if id == "" {
			return fmt.Errorf("%w: line item %d has no id", ErrBreakdownInvalidInput, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate line item id %q", ErrBreakdownInvalidInput, id)
		}
		seen[id] = struct{}{}
		if base.Quantity < 0 {
			return fmt.Errorf("%w: line item %q has negative quantity", ErrBreakdownInvalidInput, id)
		}
		if base.VATRate.IsNegative() {
			return fmt.Errorf("%w: line item %q has negative vat rate", ErrBreakdownInvalidInput, id)
		}
	}
	return nil
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
