package breakdown

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxoffice/checkout/internal/domain"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func boolPtr(v bool) *bool {
	return &v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

func assertBuckets(t *testing.T, got []domain.VATBucket, want ...[2]string) {
	t.Helper()
	require.Len(t, got, len(want), "vat buckets: %+v", got)
	for i, w := range want {
		assertMoney(t, w[0], got[i].Rate, "bucket rate")
		assertMoney(t, w[1], got[i].Amount, "bucket amount")
	}
}

func ticket(id, total, vat string) domain.TicketLineItem {
	return domain.TicketLineItem{
		LineItemBase: domain.LineItemBase{
			ID:         id,
			Type:       domain.LineItemTypeTicket,
			Quantity:   1,
			UnitPrice:  dec(total),
			TotalPrice: dec(total),
			VATRate:    dec(vat),
		},
		Seat: domain.SeatRef{ID: "seat-" + id},
	}
}

func crossSelling(id, total, vat, fee string) domain.CrossSellingLineItem {
	return domain.CrossSellingLineItem{
		LineItemBase: domain.LineItemBase{
			ID:         id,
			Type:       domain.LineItemTypeCrossSelling,
			Quantity:   1,
			UnitPrice:  dec(total),
			TotalPrice: dec(total),
			VATRate:    dec(vat),
		},
		ProductID: "prod-" + id,
		SystemFee: dec(fee),
	}
}

func coupon(id, amount string, voucher bool) domain.CouponLineItem {
	return domain.CouponLineItem{
		LineItemBase: domain.LineItemBase{
			ID:         id,
			Type:       domain.LineItemTypeCoupon,
			Quantity:   1,
			UnitPrice:  dec(amount).Neg(),
			TotalPrice: dec(amount).Neg(),
		},
		DiscountType: domain.DiscountTypeFixedAmount,
		IsVoucher:    voucher,
	}
}

func purchasedVoucher(id, total string) domain.VoucherLineItem {
	return domain.VoucherLineItem{
		LineItemBase: domain.LineItemBase{
			ID:         id,
			Type:       domain.LineItemTypeVoucher,
			Quantity:   1,
			UnitPrice:  dec(total),
			TotalPrice: dec(total),
		},
	}
}

func flatFee(amount, vat string) domain.FeePolicy {
	return domain.FeePolicy{SystemFeeAmount: decPtr(amount), SystemFeeVATRate: decPtr(vat)}
}

func TestCompute_SingleTicketWithoutFees(t *testing.T) {
	got := Compute([]domain.LineItem{ticket("t1", "50", "19")}, domain.FeePolicy{}, nil, "", Options{})

	assertMoney(t, "50", got.Subtotal, "subtotal")
	assertMoney(t, "7.98", got.TotalVAT, "total vat")
	assertBuckets(t, got.VATBreakdown, [2]string{"19", "7.98"})
	assertMoney(t, "50", got.InvoiceTotal, "invoice total")
	assertMoney(t, "50", got.TotalAmount, "total amount")
	assertMoney(t, "0", got.TotalSystemFee, "system fee")
	assert.Equal(t, "EUR", got.Currency)
}

func TestCompute_FlatSystemFeeTaxedSeparately(t *testing.T) {
	got := Compute([]domain.LineItem{ticket("t1", "100", "7")}, flatFee("2", "19"), nil, "EUR", Options{})

	assertMoney(t, "100", got.Subtotal, "subtotal")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "6.41"}, [2]string{"19", "0.32"})
	assertMoney(t, "6.73", got.TotalVAT, "total vat")
	assertMoney(t, "2", got.TotalSystemFee, "system fee")
}

func TestCompute_CouponAndVoucherPayment(t *testing.T) {
	items := []domain.LineItem{
		ticket("t1", "100", "19"),
		coupon("c1", "10", false),
		coupon("v1", "20", true),
	}
	got := Compute(items, domain.FeePolicy{}, nil, "EUR", Options{})

	assertMoney(t, "100", got.Subtotal, "subtotal")
	assertMoney(t, "10", got.TotalDiscount, "total discount")
	assertMoney(t, "20", got.VoucherPayments, "voucher payments")
	assertMoney(t, "90", got.InvoiceTotal, "invoice total")
	assertMoney(t, "70", got.TotalAmount, "total amount")
	// VAT follows the discounted value, not the voucher-settled amount.
	assertBuckets(t, got.VATBreakdown, [2]string{"19", "14.37"})
}

func TestCompute_RefundedTicketKeepsSystemFee(t *testing.T) {
	refunded := ticket("t1", "50", "19")
	refunded.Refunded = true

	got := Compute([]domain.LineItem{refunded}, flatFee("2", "19"), nil, "EUR", Options{})

	assertMoney(t, "2", got.Subtotal, "subtotal")
	assertMoney(t, "2", got.TotalSystemFee, "system fee")
	assertBuckets(t, got.VATBreakdown, [2]string{"19", "0.32"})
	assertMoney(t, "2", got.InvoiceTotal, "invoice total")
}

func TestCompute_RefundedTicketWithSystemFeeRefund(t *testing.T) {
	refunded := ticket("t1", "50", "19")
	refunded.Refunded = true

	got := Compute([]domain.LineItem{refunded}, flatFee("2", "19"), nil, "EUR", Options{RefundSystemFees: true})

	assertMoney(t, "0", got.Subtotal, "subtotal")
	assertMoney(t, "0", got.TotalSystemFee, "system fee")
	assert.Empty(t, got.VATBreakdown)
	assertMoney(t, "0", got.TotalAmount, "total amount")
}

func TestCompute_AlreadyRefundedFeeIsNotCreditedTwice(t *testing.T) {
	refunded := ticket("t1", "50", "19")
	refunded.Refunded = true
	refunded.SystemFeeRefunded = true

	got := Compute([]domain.LineItem{refunded, ticket("t2", "50", "19")}, flatFee("2", "19"), nil, "EUR", Options{})

	assertMoney(t, "50", got.Subtotal, "subtotal")
	assertMoney(t, "2", got.TotalSystemFee, "system fee")
}

func TestCompute_FeeExemptPriceCategory(t *testing.T) {
	exempt := ticket("t1", "50", "7")
	exempt.PriceCategory.ExcludeSystemFee = true

	got := Compute([]domain.LineItem{exempt}, flatFee("2", "19"), nil, "EUR", Options{})

	assertMoney(t, "0", got.TotalSystemFee, "system fee")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "3.27"})

	exempt.Refunded = true
	got = Compute([]domain.LineItem{exempt}, flatFee("2", "19"), nil, "EUR", Options{})
	assertMoney(t, "0", got.Subtotal, "subtotal of refunded exempt ticket")
}

func TestCompute_ExchangedTicket(t *testing.T) {
	old := ticket("t-old", "40", "7")
	old.Exchanged = true
	old.ExchangeID = "x1"
	replacement := ticket("t-new", "60", "7")
	replacement.ExchangeID = "x1"
	items := []domain.LineItem{old, replacement}

	got := Compute(items, flatFee("2", "19"), nil, "EUR", Options{})
	assertMoney(t, "62", got.Subtotal, "subtotal")
	assertMoney(t, "4", got.TotalSystemFee, "system fee")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "3.79"}, [2]string{"19", "0.64"})
	assertMoney(t, "4.43", got.TotalVAT, "total vat")

	got = Compute(items, flatFee("2", "19"), nil, "EUR", Options{RefundSystemFees: true})
	assertMoney(t, "60", got.Subtotal, "subtotal in refund mode")
	assertMoney(t, "2", got.TotalSystemFee, "system fee in refund mode")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "3.79"}, [2]string{"19", "0.32"})
}

func TestCompute_CrossSellingPartialRefundAsSiblings(t *testing.T) {
	kept := crossSelling("cs1", "10", "19", "1")
	kept.SystemFeeVATRate = decPtr("7")
	refunded := crossSelling("cs2", "10", "19", "1")
	refunded.SystemFeeVATRate = decPtr("7")
	refunded.Refunded = true

	got := Compute([]domain.LineItem{kept, refunded}, domain.FeePolicy{}, nil, "EUR", Options{})

	assertMoney(t, "11", got.Subtotal, "subtotal")
	assertMoney(t, "2", got.TotalSystemFee, "system fee")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "0.13"}, [2]string{"19", "1.44"})
	assertMoney(t, "1.57", got.TotalVAT, "total vat")
}

func TestCompute_CrossSellingFeeRateFallsBackToProductRate(t *testing.T) {
	kept := crossSelling("cs1", "10", "19", "1")
	refunded := crossSelling("cs2", "10", "19", "1")
	refunded.Refunded = true

	got := Compute([]domain.LineItem{kept, refunded}, domain.FeePolicy{}, nil, "EUR", Options{})

	assertBuckets(t, got.VATBreakdown, [2]string{"19", "1.76"})
}

func TestCompute_TicketFeeRateFallsBackToTicketRate(t *testing.T) {
	policy := domain.FeePolicy{SystemFeeAmount: decPtr("2")}

	got := Compute([]domain.LineItem{ticket("t1", "100", "7")}, policy, nil, "EUR", Options{})

	// 100 × 7 / 107 in one bucket.
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "6.54"})
}

func TestCompute_DiscountSpreadAcrossVATRates(t *testing.T) {
	items := []domain.LineItem{
		ticket("t1", "30", "7"),
		ticket("t2", "70", "19"),
		coupon("c1", "10", false),
	}
	got := Compute(items, domain.FeePolicy{}, nil, "EUR", Options{})

	assertMoney(t, "100", got.Subtotal, "subtotal")
	assertMoney(t, "10", got.TotalDiscount, "discount")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "1.77"}, [2]string{"19", "10.06"})
	assertMoney(t, "11.83", got.TotalVAT, "total vat")
	assertMoney(t, "90", got.InvoiceTotal, "invoice total")
}

func TestCompute_DiscountScalesPercentageFee(t *testing.T) {
	policy := domain.FeePolicy{SystemFeePercentage: decPtr("10"), SystemFeeVATRate: decPtr("19")}
	items := []domain.LineItem{ticket("t1", "100", "7"), coupon("c1", "20", false)}

	got := Compute(items, policy, nil, "EUR", Options{})

	assertMoney(t, "8", got.TotalSystemFee, "system fee")
	assertBuckets(t, got.VATBreakdown, [2]string{"7", "4.71"}, [2]string{"19", "1.28"})
	assertMoney(t, "80", got.InvoiceTotal, "invoice total")
}

func TestCompute_RefundedCouponsAreIgnored(t *testing.T) {
	c := coupon("c1", "10", false)
	c.Refunded = true
	v := coupon("v1", "5", true)
	v.Refunded = true

	got := Compute([]domain.LineItem{ticket("t1", "50", "19"), c, v}, domain.FeePolicy{}, nil, "EUR", Options{})

	assertMoney(t, "0", got.TotalDiscount, "discount")
	assertMoney(t, "0", got.VoucherPayments, "voucher payments")
	assertMoney(t, "50", got.TotalAmount, "total amount")
}

func TestCompute_PurchasedVoucherCarriesNoVAT(t *testing.T) {
	items := []domain.LineItem{ticket("t1", "50", "19"), purchasedVoucher("pv1", "25"), coupon("c1", "10", false)}

	got := Compute(items, domain.FeePolicy{}, nil, "EUR", Options{})

	assertMoney(t, "75", got.Subtotal, "subtotal")
	assertBuckets(t, got.VATBreakdown, [2]string{"19", "6.39"})
	assertMoney(t, "65", got.InvoiceTotal, "invoice total")

	refunded := purchasedVoucher("pv1", "25")
	refunded.Refunded = true
	got = Compute([]domain.LineItem{ticket("t1", "50", "19"), refunded}, domain.FeePolicy{}, nil, "EUR", Options{})
	assertMoney(t, "50", got.Subtotal, "subtotal with refunded voucher")
}

func TestCompute_VoucherOverpaymentGoesNegative(t *testing.T) {
	refunded := ticket("t1", "50", "19")
	refunded.Refunded = true
	items := []domain.LineItem{refunded, coupon("v1", "50", true)}

	got := Compute(items, flatFee("2", "19"), nil, "EUR", Options{})

	assertMoney(t, "2", got.InvoiceTotal, "invoice total")
	assertMoney(t, "-48", got.TotalAmount, "total amount")
	assert.True(t, got.RefundDue())
}

func TestCompute_DeliveryFee(t *testing.T) {
	delivery := &domain.DeliveryOption{ID: "post", Type: domain.DeliveryTypePhysical, FeeAmount: dec("5"), VATRate: dec("19")}
	items := []domain.LineItem{ticket("t1", "50", "19"), coupon("c1", "10", false)}

	got := Compute(items, domain.FeePolicy{}, delivery, "EUR", Options{})
	assertMoney(t, "5", got.DeliveryFee, "delivery fee")
	assertMoney(t, "45", got.InvoiceTotal, "invoice total")
	// 40 × 19/119 + 5 × 19/119, delivery is never discounted.
	assertBuckets(t, got.VATBreakdown, [2]string{"19", "7.18"})

	got = Compute(items, domain.FeePolicy{}, delivery, "EUR", Options{IncludeDeliveryFee: boolPtr(false)})
	assertMoney(t, "0", got.DeliveryFee, "excluded delivery fee")
	assertMoney(t, "40", got.InvoiceTotal, "invoice total without delivery")
	assertBuckets(t, got.VATBreakdown, [2]string{"19", "6.39"})
}

func TestCompute_EmptyBasket(t *testing.T) {
	got := Compute(nil, flatFee("2", "19"), &domain.DeliveryOption{FeeAmount: dec("5"), VATRate: dec("19")}, "usd", Options{})

	assert.Equal(t, "USD", got.Currency)
	assert.NotNil(t, got.VATBreakdown)
	assert.Empty(t, got.VATBreakdown)
	for name, v := range map[string]decimal.Decimal{
		"subtotal": got.Subtotal, "vat": got.TotalVAT, "invoice": got.InvoiceTotal,
		"total": got.TotalAmount, "delivery": got.DeliveryFee, "fee": got.TotalSystemFee,
	} {
		assertMoney(t, "0", v, name)
	}
}

func TestCompute_FreeBasketWithDiscountDoesNotDivideByZero(t *testing.T) {
	items := []domain.LineItem{ticket("t1", "0", "19"), coupon("c1", "5", false)}

	require.NotPanics(t, func() {
		got := Compute(items, domain.FeePolicy{}, nil, "EUR", Options{})
		assertMoney(t, "0", got.Subtotal, "subtotal")
		assertMoney(t, "0", got.TotalVAT, "total vat")
		assertMoney(t, "5", got.TotalDiscount, "discount")
	})
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	items := []domain.LineItem{ticket("t1", "50", "19"), coupon("c1", "10", false)}
	before := items[0].(domain.TicketLineItem)

	_ = Compute(items, flatFee("2", "19"), nil, "EUR", Options{})

	after := items[0].(domain.TicketLineItem)
	assert.True(t, before.TotalPrice.Equal(after.TotalPrice))
	assert.Equal(t, before.Refunded, after.Refunded)
}

func TestOptionsForStatus(t *testing.T) {
	assert.True(t, OptionsForStatus(domain.OrderStatusPending).RefundSystemFees)
	assert.False(t, OptionsForStatus(domain.OrderStatusPaid).RefundSystemFees)
	assert.True(t, OptionsForStatus(domain.OrderStatusPaid).includeDelivery())
}
