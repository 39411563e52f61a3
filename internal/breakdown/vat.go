package breakdown

import (
	"github.com/shopspring/decimal"

	"github.com/boxoffice/checkout/internal/domain"
)

type vatContribution struct {
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

// ticketSystemFee is the VAT-inclusive system fee embedded in a ticket's total price.
func ticketSystemFee(t domain.TicketLineItem, policy domain.FeePolicy) decimal.Decimal {
	if t.PriceCategory.ExcludeSystemFee {
		return decimal.Zero
	}
	if policy.SystemFeeAmount != nil && !policy.SystemFeeAmount.IsZero() {
		return policy.SystemFeeAmount.Mul(decimal.NewFromInt(int64(t.Quantity)))
	}
	if policy.SystemFeePercentage != nil && !policy.SystemFeePercentage.IsZero() {
		return t.TotalPrice.Mul(*policy.SystemFeePercentage).Div(hundred)
	}
	return decimal.Zero
}

// ticketSystemFeeVATRate falls back to the ticket's own rate when the organizer
// leaves the fee rate unset, matching cross-selling behaviour.
func ticketSystemFeeVATRate(t domain.TicketLineItem, policy domain.FeePolicy) decimal.Decimal {
	if policy.SystemFeeVATRate != nil {
		return *policy.SystemFeeVATRate
	}
	return t.VATRate
}

func crossSellingSystemFee(c domain.CrossSellingLineItem, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return c.SystemFee.Mul(decimal.NewFromInt(int64(quantity)))
}

func crossSellingSystemFeeVATRate(c domain.CrossSellingLineItem) decimal.Decimal {
	if c.SystemFeeVATRate != nil {
		return *c.SystemFeeVATRate
	}
	return c.VATRate
}

// extractVAT computes the VAT of the product portion of a kept item. Embedded
// system fees are removed first, scaled by the item's discount ratio, since
// they are taxed into their own bucket.
func extractVAT(ci classifiedItem, discounted, ratio decimal.Decimal, policy domain.FeePolicy) vatContribution {
	switch v := ci.item.(type) {
	case domain.VoucherLineItem:
		return vatContribution{Rate: decimal.Zero, Amount: decimal.Zero}
	case domain.TicketLineItem:
		fee := ticketSystemFee(v, policy).Mul(ratio)
		product := maxZero(discounted.Sub(fee))
		return vatContribution{Rate: v.VATRate, Amount: vatFromGross(product, v.VATRate)}
	case domain.CrossSellingLineItem:
		fee := crossSellingSystemFee(v, ci.keptQuantity).Mul(ratio)
		product := maxZero(discounted.Sub(fee))
		return vatContribution{Rate: v.VATRate, Amount: vatFromGross(product, v.VATRate)}
	default:
		rate := ci.item.Base().VATRate
		return vatContribution{Rate: rate, Amount: vatFromGross(discounted, rate)}
	}
}
