package domain

import "github.com/shopspring/decimal"

// DefaultCurrency is used when neither the basket nor its items name a currency.
const DefaultCurrency = "EUR"

// FeePolicy is the organizer's system fee configuration for tickets. A flat
// SystemFeeAmount takes precedence over SystemFeePercentage when both are set.
type FeePolicy struct {
	SystemFeeAmount     *decimal.Decimal `json:"systemFeeAmount,omitempty"`
	SystemFeePercentage *decimal.Decimal `json:"systemFeePercentage,omitempty"`
	SystemFeeVATRate    *decimal.Decimal `json:"systemFeeVatRate,omitempty"`
}

// DeliveryType names the fulfilment channel of a delivery option.
type DeliveryType string

const (
	DeliveryTypeDigital  DeliveryType = "digital"
	DeliveryTypePhysical DeliveryType = "physical"
)

// DeliveryOption is an entry of the organizer's delivery catalog. FeeAmount is VAT-inclusive.
type DeliveryOption struct {
	ID        string          `json:"id,omitempty"`
	Type      DeliveryType    `json:"type"`
	FeeAmount decimal.Decimal `json:"feeAmount"`
	VATRate   decimal.Decimal `json:"vatRate"`
}

// OrganizerSettings is the read-only organizer record supplying fee policy and delivery catalog.
type OrganizerSettings struct {
	OrganizerID     string
	Currency        string
	FeePolicy       FeePolicy
	DeliveryOptions []DeliveryOption
}

// DeliveryOption looks up a catalog entry by id.
func (s OrganizerSettings) DeliveryOption(id string) (DeliveryOption, bool) {
	for _, option := range s.DeliveryOptions {
		if option.ID == id {
			return option, true
		}
	}
	return DeliveryOption{}, false
}

// VATBucket is the VAT accumulated for one rate.
type VATBucket struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// FinancialBreakdown is the authoritative financial summary of a basket.
// TotalAmount is the payable amount after voucher payments and may be negative
// when vouchers overpay a partially refunded order.
type FinancialBreakdown struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	TotalDiscount   decimal.Decimal `json:"totalDiscount"`
	VoucherPayments decimal.Decimal `json:"voucherPayments"`
	TotalVAT        decimal.Decimal `json:"totalVat"`
	VATBreakdown    []VATBucket     `json:"vatBreakdown"`
	TotalSystemFee  decimal.Decimal `json:"totalSystemFee"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	InvoiceTotal    decimal.Decimal `json:"invoiceTotal"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        string          `json:"currency"`
}

// RefundDue reports whether the business owes the customer money.
func (b FinancialBreakdown) RefundDue() bool {
	return b.TotalAmount.IsNegative()
}
