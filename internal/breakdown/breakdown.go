// Package breakdown turns a basket of line items into a VAT-correct, rounded
// financial summary. Compute is a pure function: it never mutates its input,
// holds no state and is safe to call concurrently or memoise on its inputs.
package breakdown

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boxoffice/checkout/internal/domain"
)

// Options tunes how refunds and delivery are folded into the breakdown.
type Options struct {
	// IncludeDeliveryFee defaults to true when nil.
	IncludeDeliveryFee *bool
	// RefundSystemFees returns system fees together with refunded items
	// instead of keeping them as revenue.
	RefundSystemFees bool
}

// OptionsForStatus derives the refund mode from the payment state of the order.
func OptionsForStatus(status domain.OrderStatus) Options {
	return Options{RefundSystemFees: status.RefundsSystemFees()}
}

func (o Options) includeDelivery() bool {
	return o.IncludeDeliveryFee == nil || *o.IncludeDeliveryFee
}

// Compute builds the financial breakdown of items. An empty currency defaults
// to EUR; a nil delivery option contributes nothing.
func Compute(items []domain.LineItem, policy domain.FeePolicy, delivery *domain.DeliveryOption, currency string, opts Options) domain.FinancialBreakdown {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if len(items) == 0 {
		return emptyBreakdown(currency)
	}

	classes := classify(items)
	kept := classes.kept()

	subtotal := decimal.Zero
	weights := make([]discountedItem, 0, len(kept))
	for _, ci := range kept {
		price := ci.item.Base().TotalPrice
		subtotal = subtotal.Add(price)
		// A purchased voucher is sold at face value and never absorbs discount.
		if _, ok := ci.item.(domain.VoucherLineItem); ok {
			continue
		}
		weights = append(weights, discountedItem{ID: ci.item.Base().ID, Price: price})
	}
	subtotal = subtotal.Add(retainedSystemFees(classes, policy, opts))

	alloc := allocateDiscount(weights, classes.totalDiscount)

	buckets := newVATBuckets()
	for _, ci := range kept {
		id := ci.item.Base().ID
		discounted, ok := alloc.discounted(id)
		if !ok {
			continue
		}
		contribution := extractVAT(ci, discounted, alloc.ratio(id), policy)
		buckets.add(contribution.Rate, contribution.Amount)
	}

	systemFee := decimal.Zero
	for _, ci := range classes.items {
		switch v := ci.item.(type) {
		case domain.TicketLineItem:
			gross, ok := ticketFeeGross(ci, v, policy, alloc, opts)
			if !ok {
				continue
			}
			systemFee = systemFee.Add(gross)
			buckets.add(ticketSystemFeeVATRate(v, policy), vatFromGross(gross, ticketSystemFeeVATRate(v, policy)))
		case domain.CrossSellingLineItem:
			gross := crossSellingFeeGross(ci, v, alloc, opts)
			systemFee = systemFee.Add(gross)
			buckets.add(crossSellingSystemFeeVATRate(v), vatFromGross(gross, crossSellingSystemFeeVATRate(v)))
		}
	}

	deliveryFee := decimal.Zero
	if delivery != nil && opts.includeDelivery() {
		deliveryFee = maxZero(delivery.FeeAmount)
		buckets.add(delivery.VATRate, vatFromGross(deliveryFee, delivery.VATRate))
	}

	vatBreakdown, totalVAT := buckets.rounded()

	roundedSubtotal := roundMoney(maxZero(subtotal))
	totalDiscount := roundMoney(classes.totalDiscount)
	voucherPayments := roundMoney(classes.voucherPayments)
	deliveryFee = roundMoney(deliveryFee)
	invoiceTotal := roundMoney(roundedSubtotal.Sub(totalDiscount).Add(deliveryFee))

	return domain.FinancialBreakdown{
		Subtotal:        roundedSubtotal,
		TotalDiscount:   totalDiscount,
		VoucherPayments: voucherPayments,
		TotalVAT:        totalVAT,
		VATBreakdown:    vatBreakdown,
		TotalSystemFee:  roundMoney(systemFee),
		DeliveryFee:     deliveryFee,
		InvoiceTotal:    invoiceTotal,
		TotalAmount:     roundMoney(invoiceTotal.Sub(voucherPayments)),
		Currency:        currency,
	}
}

func emptyBreakdown(currency string) domain.FinancialBreakdown {
	return domain.FinancialBreakdown{
		Subtotal:        decimal.Zero,
		TotalDiscount:   decimal.Zero,
		VoucherPayments: decimal.Zero,
		TotalVAT:        decimal.Zero,
		VATBreakdown:    []domain.VATBucket{},
		TotalSystemFee:  decimal.Zero,
		DeliveryFee:     decimal.Zero,
		InvoiceTotal:    decimal.Zero,
		TotalAmount:     decimal.Zero,
		Currency:        currency,
	}
}

// retainedSystemFees is the fee revenue kept on refunded and exchanged items.
// When a customer gives back a ticket only the product value is returned.
func retainedSystemFees(classes classification, policy domain.FeePolicy, opts Options) decimal.Decimal {
	if opts.RefundSystemFees {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, ci := range classes.items {
		if ci.class != classRefunded && ci.class != classExchanged {
			continue
		}
		switch v := ci.item.(type) {
		case domain.TicketLineItem:
			if v.SystemFeeRefunded {
				continue
			}
			total = total.Add(ticketSystemFee(v, policy))
		case domain.CrossSellingLineItem:
			if v.SystemFeeRefunded {
				continue
			}
			total = total.Add(crossSellingSystemFee(v, ci.refundedQuantity))
		}
	}
	return total
}

// ticketFeeGross is the part of a ticket's system fee still charged. Kept
// tickets discount their fee like their product portion; a retained fee on a
// returned ticket is never discounted.
func ticketFeeGross(ci classifiedItem, t domain.TicketLineItem, policy domain.FeePolicy, alloc discountAllocation, opts Options) (decimal.Decimal, bool) {
	if t.PriceCategory.ExcludeSystemFee {
		return decimal.Zero, false
	}
	if ci.class == classExchanged && opts.RefundSystemFees {
		return decimal.Zero, false
	}
	fee := ticketSystemFee(t, policy)
	if ci.class == classKept {
		return fee.Mul(alloc.ratio(t.ID)), true
	}
	if opts.RefundSystemFees || t.SystemFeeRefunded {
		return decimal.Zero, true
	}
	return fee, true
}

func crossSellingFeeGross(ci classifiedItem, c domain.CrossSellingLineItem, alloc discountAllocation, opts Options) decimal.Decimal {
	kept := decimal.Zero
	if ci.keptQuantity > 0 {
		kept = crossSellingSystemFee(c, ci.keptQuantity).Mul(alloc.ratio(c.ID))
	}
	refunded := decimal.Zero
	if ci.refundedQuantity > 0 && !opts.RefundSystemFees && !c.SystemFeeRefunded {
		refunded = crossSellingSystemFee(c, ci.refundedQuantity)
	}
	return kept.Add(refunded)
}

type vatBuckets struct {
	rates   map[string]decimal.Decimal
	amounts map[string]decimal.Decimal
}

func newVATBuckets() *vatBuckets {
	return &vatBuckets{
		rates:   make(map[string]decimal.Decimal),
		amounts: make(map[string]decimal.Decimal),
	}
}

func (b *vatBuckets) add(rate, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	key := rate.String()
	if _, ok := b.rates[key]; !ok {
		b.rates[key] = rate
		b.amounts[key] = decimal.Zero
	}
	b.amounts[key] = b.amounts[key].Add(amount)
}

// rounded returns the non-zero buckets ascending by rate, each rounded before
// summation so the listed amounts add up to the total exactly.
func (b *vatBuckets) rounded() ([]domain.VATBucket, decimal.Decimal) {
	out := make([]domain.VATBucket, 0, len(b.rates))
	total := decimal.Zero
	for key, rate := range b.rates {
		if rate.Sign() <= 0 {
			continue
		}
		amount := roundMoney(b.amounts[key])
		if amount.IsZero() {
			continue
		}
		out = append(out, domain.VATBucket{Rate: rate, Amount: amount})
		total = total.Add(amount)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Rate.LessThan(out[j].Rate)
	})
	return out, total
}
