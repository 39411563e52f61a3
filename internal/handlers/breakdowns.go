package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/boxoffice/checkout/internal/domain"
	"github.com/boxoffice/checkout/internal/platform/httpx"
	"github.com/boxoffice/checkout/internal/platform/money"
	"github.com/boxoffice/checkout/internal/platform/observability"
	"github.com/boxoffice/checkout/internal/platform/requestctx"
	"github.com/boxoffice/checkout/internal/repositories"
	"github.com/boxoffice/checkout/internal/services"
)

const (
	defaultBreakdownBodySize = 256 * 1024
	defaultBreakdownLocale   = "de-DE"
	rateLimitWindow          = time.Minute
)

// BreakdownHandlers exposes the financial breakdown endpoint.
type BreakdownHandlers struct {
	breakdowns    services.BreakdownService
	maxBodyBytes  int64
	defaultLocale string
	limiter       rateLimiter
}

// BreakdownOption customises BreakdownHandlers.
type BreakdownOption func(*BreakdownHandlers)

// WithBreakdownMaxBodyBytes caps the request body size.
func WithBreakdownMaxBodyBytes(limit int64) BreakdownOption {
	return func(h *BreakdownHandlers) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// WithBreakdownDefaultLocale sets the locale used when the request names none.
func WithBreakdownDefaultLocale(locale string) BreakdownOption {
	return func(h *BreakdownHandlers) {
		if strings.TrimSpace(locale) != "" {
			h.defaultLocale = locale
		}
	}
}

// WithBreakdownRateLimit allows perMinute requests per client; zero disables limiting.
func WithBreakdownRateLimit(perMinute int, clock func() time.Time) BreakdownOption {
	return func(h *BreakdownHandlers) {
		h.limiter = newSimpleRateLimiter(perMinute, rateLimitWindow, clock)
	}
}

// NewBreakdownHandlers constructs the breakdown handlers.
func NewBreakdownHandlers(breakdowns services.BreakdownService, opts ...BreakdownOption) *BreakdownHandlers {
	h := &BreakdownHandlers{
		breakdowns:    breakdowns,
		maxBodyBytes:  defaultBreakdownBodySize,
		defaultLocale: defaultBreakdownLocale,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the /breakdowns endpoints onto the provided router.
func (h *BreakdownHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(rateLimitMiddleware(h.limiter, rateLimitWindow)).Post("/", h.calculate)
}

type breakdownRequest struct {
	OrganizerID        string                 `json:"organizerId"`
	Basket             *domain.BasketSnapshot `json:"basket"`
	FeePolicy          *domain.FeePolicy      `json:"feePolicy,omitempty"`
	Delivery           *domain.DeliveryOption `json:"delivery,omitempty"`
	DeliveryOptionID   string                 `json:"deliveryOptionId,omitempty"`
	IncludeDeliveryFee *bool                  `json:"includeDeliveryFee,omitempty"`
	RefundSystemFees   *bool                  `json:"refundSystemFees,omitempty"`
	Locale             string                 `json:"locale,omitempty"`
	BypassCache        bool                   `json:"bypassCache,omitempty"`
}

type vatBucketPayload struct {
	Rate   json.Number `json:"rate"`
	Amount json.Number `json:"amount"`
}

type formattedVATPayload struct {
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

type formattedBreakdownPayload struct {
	Locale          string                `json:"locale"`
	Subtotal        string                `json:"subtotal"`
	TotalDiscount   string                `json:"totalDiscount"`
	VoucherPayments string                `json:"voucherPayments"`
	TotalVAT        string                `json:"totalVat"`
	VATBreakdown    []formattedVATPayload `json:"vatBreakdown"`
	TotalSystemFee  string                `json:"totalSystemFee"`
	DeliveryFee     string                `json:"deliveryFee"`
	InvoiceTotal    string                `json:"invoiceTotal"`
	TotalAmount     string                `json:"totalAmount"`
}

type breakdownResponse struct {
	CalculationID   string                     `json:"calculationId"`
	BasketID        string                     `json:"basketId,omitempty"`
	BasketVersion   int64                      `json:"basketVersion"`
	Cached          bool                       `json:"cached"`
	CalculatedAt    string                     `json:"calculatedAt"`
	Currency        string                     `json:"currency"`
	Subtotal        json.Number                `json:"subtotal"`
	TotalDiscount   json.Number                `json:"totalDiscount"`
	VoucherPayments json.Number                `json:"voucherPayments"`
	TotalVAT        json.Number                `json:"totalVat"`
	VATBreakdown    []vatBucketPayload         `json:"vatBreakdown"`
	TotalSystemFee  json.Number                `json:"totalSystemFee"`
	DeliveryFee     json.Number                `json:"deliveryFee"`
	InvoiceTotal    json.Number                `json:"invoiceTotal"`
	TotalAmount     json.Number                `json:"totalAmount"`
	RefundDue       bool                       `json:"refundDue"`
	Formatted       *formattedBreakdownPayload `json:"formatted,omitempty"`
}

func (h *BreakdownHandlers) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.breakdowns == nil {
		httpx.WriteError(ctx, w, httpx.NewError("breakdown_service_unavailable", "breakdown service is unavailable", http.StatusServiceUnavailable))
		return
	}

	reader := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()

	var payload breakdownRequest
	if err := decoder.Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("request_too_large", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest))
		return
	}
	if decoder.More() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid request body: extraneous data", http.StatusBadRequest))
		return
	}
	if payload.Basket == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_breakdown_request", "basket is required", http.StatusBadRequest))
		return
	}

	locale, err := h.resolveLocale(payload.Locale, r.Header.Get("Accept-Language"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_breakdown_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.CalculateBreakdownCommand{
		OrganizerID:        strings.TrimSpace(payload.OrganizerID),
		Basket:             *payload.Basket,
		FeePolicy:          payload.FeePolicy,
		Delivery:           payload.Delivery,
		DeliveryOptionID:   payload.DeliveryOptionID,
		IncludeDeliveryFee: payload.IncludeDeliveryFee,
		RefundSystemFees:   payload.RefundSystemFees,
		BypassCache:        payload.BypassCache,
	}
	ctx = requestctx.WithBreakdownScope(ctx, services.BreakdownScopeFor(cmd))
	result, err := h.breakdowns.Calculate(ctx, cmd)
	if err != nil {
		writeBreakdownError(ctx, w, err)
		return
	}

	resp := buildBreakdownResponse(result)
	formatter, err := money.NewFormatter(locale, result.Breakdown.Currency)
	if err != nil {
		observability.FromContext(ctx).Warn("breakdown formatting skipped",
			zap.String("currency", result.Breakdown.Currency),
			zap.String("locale", locale),
			zap.Error(err),
		)
	} else {
		resp.Formatted = buildFormattedBreakdown(formatter, result.Breakdown)
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Basket-Version", strconv.FormatInt(result.BasketVersion, 10))
	writeJSONResponse(w, http.StatusOK, resp)
}

// resolveLocale prefers the explicit locale, then the first Accept-Language tag,
// then the configured default. Only an explicit locale can fail.
func (h *BreakdownHandlers) resolveLocale(explicit, acceptLanguage string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		tag, err := language.Parse(explicit)
		if err != nil {
			return "", fmt.Errorf("invalid locale %q", explicit)
		}
		return tag.String(), nil
	}
	if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
		return tags[0].String(), nil
	}
	return h.defaultLocale, nil
}

func buildBreakdownResponse(result services.BreakdownResult) breakdownResponse {
	b := result.Breakdown
	buckets := make([]vatBucketPayload, 0, len(b.VATBreakdown))
	for _, bucket := range b.VATBreakdown {
		buckets = append(buckets, vatBucketPayload{
			Rate:   json.Number(bucket.Rate.String()),
			Amount: moneyNumber(bucket.Amount),
		})
	}
	return breakdownResponse{
		CalculationID:   result.CalculationID,
		BasketID:        result.BasketID,
		BasketVersion:   result.BasketVersion,
		Cached:          result.Cached,
		CalculatedAt:    formatTime(result.CalculatedAt),
		Currency:        b.Currency,
		Subtotal:        moneyNumber(b.Subtotal),
		TotalDiscount:   moneyNumber(b.TotalDiscount),
		VoucherPayments: moneyNumber(b.VoucherPayments),
		TotalVAT:        moneyNumber(b.TotalVAT),
		VATBreakdown:    buckets,
		TotalSystemFee:  moneyNumber(b.TotalSystemFee),
		DeliveryFee:     moneyNumber(b.DeliveryFee),
		InvoiceTotal:    moneyNumber(b.InvoiceTotal),
		TotalAmount:     moneyNumber(b.TotalAmount),
		RefundDue:       b.RefundDue(),
	}
}

func buildFormattedBreakdown(f money.Formatter, b domain.FinancialBreakdown) *formattedBreakdownPayload {
	vat := make([]formattedVATPayload, 0, len(b.VATBreakdown))
	for _, bucket := range b.VATBreakdown {
		vat = append(vat, formattedVATPayload{Rate: f.Percent(bucket.Rate), Amount: f.Format(bucket.Amount)})
	}
	return &formattedBreakdownPayload{
		Locale:          f.Locale(),
		Subtotal:        f.Format(b.Subtotal),
		TotalDiscount:   f.Format(b.TotalDiscount),
		VoucherPayments: f.Format(b.VoucherPayments),
		TotalVAT:        f.Format(b.TotalVAT),
		VATBreakdown:    vat,
		TotalSystemFee:  f.Format(b.TotalSystemFee),
		DeliveryFee:     f.Format(b.DeliveryFee),
		InvoiceTotal:    f.Format(b.InvoiceTotal),
		TotalAmount:     f.Format(b.TotalAmount),
	}
}

func moneyNumber(amount decimal.Decimal) json.Number {
	return json.Number(amount.StringFixed(2))
}

func writeBreakdownError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var repoErr repositories.RepositoryError
	switch {
	case errors.Is(err, services.ErrBreakdownInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_breakdown_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBreakdownCurrencyMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("currency_mismatch", err.Error(), http.StatusBadRequest))
	case errors.As(err, &repoErr) && repoErr.IsNotFound():
		httpx.WriteError(ctx, w, httpx.NewError("organizer_not_found", "organizer not found", http.StatusNotFound))
	case errors.As(err, &repoErr) && repoErr.IsUnavailable(),
		errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("organizer_settings_unavailable", "organizer settings are unavailable", http.StatusServiceUnavailable))
	default:
		observability.FromContext(ctx).Error("breakdown calculation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("breakdown_error", "failed to calculate breakdown", http.StatusInternalServerError))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func chooseNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
