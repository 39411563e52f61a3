package breakdown

import (
	"github.com/shopspring/decimal"

	"github.com/boxoffice/checkout/internal/domain"
)

type itemClass int

const (
	// classKept items contribute their full value to the subtotal.
	classKept itemClass = iota
	// classExchanged tickets contribute no product value, at most a fee remainder.
	classExchanged
	// classRefunded items contribute at most a fee remainder.
	classRefunded
	// classCoupon items are folded in as discounts or voucher payments.
	classCoupon
)

type classifiedItem struct {
	item             domain.LineItem
	class            itemClass
	keptQuantity     int
	refundedQuantity int
}

type classification struct {
	items           []classifiedItem
	totalDiscount   decimal.Decimal
	voucherPayments decimal.Decimal
}

// kept returns the items contributing full value, in basket order.
func (c classification) kept() []classifiedItem {
	out := make([]classifiedItem, 0, len(c.items))
	for _, ci := range c.items {
		if ci.class == classKept {
			out = append(out, ci)
		}
	}
	return out
}

// classify partitions the basket once. Exchanged wins over refunded for
// tickets carrying both flags.
func classify(items []domain.LineItem) classification {
	result := classification{
		items:           make([]classifiedItem, 0, len(items)),
		totalDiscount:   decimal.Zero,
		voucherPayments: decimal.Zero,
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		ci := classifiedItem{item: item, class: classKept}
		switch v := item.(type) {
		case domain.TicketLineItem:
			switch {
			case v.Exchanged:
				ci.class = classExchanged
			case v.Refunded:
				ci.class = classRefunded
			}
		case domain.CrossSellingLineItem:
			if v.Refunded {
				ci.class = classRefunded
				ci.refundedQuantity = v.Quantity
			} else {
				ci.keptQuantity = v.Quantity
			}
		case domain.VoucherLineItem:
			if v.Refunded {
				ci.class = classRefunded
			}
		case domain.CouponLineItem:
			ci.class = classCoupon
			if !v.Refunded {
				amount := v.TotalPrice.Abs()
				if v.IsVoucher {
					result.voucherPayments = result.voucherPayments.Add(amount)
				} else {
					result.totalDiscount = result.totalDiscount.Add(amount)
				}
			}
		}
		result.items = append(result.items, ci)
	}
	return result
}
