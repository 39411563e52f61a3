package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItemType discriminates the line item variants carried by a basket.
type LineItemType string

const (
	// LineItemTypeTicket is a seated ticket.
	LineItemTypeTicket LineItemType = "ticket"
	// LineItemTypeCrossSelling is an add-on product sold alongside tickets.
	LineItemTypeCrossSelling LineItemType = "cross_selling"
	// LineItemTypeCoupon is a discount coupon or a multi-purpose voucher redeemed as payment.
	LineItemTypeCoupon LineItemType = "coupon"
	// LineItemTypeVoucher is a gift voucher purchased in the order.
	LineItemTypeVoucher LineItemType = "voucher"
)

// DiscountType enumerates how a coupon discount was derived.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// ErrUnknownLineItemType is returned when decoding a line item with an unsupported discriminator.
var ErrUnknownLineItemType = errors.New("domain: unknown line item type")

// LineItem is implemented by every basket line item variant.
type LineItem interface {
	Base() LineItemBase
	isLineItem()
}

// LineItemBase holds the fields shared by all line item variants. UnitPrice and
// TotalPrice are VAT-inclusive; TotalPrice is trusted to equal UnitPrice × Quantity.
type LineItemBase struct {
	ID         string          `json:"id"`
	Type       LineItemType    `json:"type"`
	Name       string          `json:"name,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Currency   string          `json:"currency,omitempty"`
	VATRate    decimal.Decimal `json:"vatRate"`
}

// Base returns the shared fields.
func (b LineItemBase) Base() LineItemBase { return b }

// SeatRef identifies the seat a ticket was issued for.
type SeatRef struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// PriceCategory is the snapshot of the price category a ticket was sold in.
type PriceCategory struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	ExcludeSystemFee bool   `json:"excludeSystemFee"`
	LinkKey          string `json:"linkKey,omitempty"`
}

// TicketLineItem is a seated ticket. Exchanged tickets are correlated to their
// replacement through ExchangeID.
type TicketLineItem struct {
	LineItemBase
	Seat              SeatRef       `json:"seat"`
	PriceCategory     PriceCategory `json:"priceCategory"`
	Refunded          bool          `json:"refunded"`
	Exchanged         bool          `json:"exchanged"`
	ExchangeID        string        `json:"exchangeId,omitempty"`
	SystemFeeRefunded bool          `json:"systemFeeRefunded"`
}

// CrossSellingLineItem is an add-on product. A partially refunded group is
// represented as sibling items, some refunded and some not; Quantity is always
// the number of units the item stands for. SystemFee is the VAT-inclusive fee
// embedded in each unit.
type CrossSellingLineItem struct {
	LineItemBase
	ProductID         string           `json:"productId"`
	SystemFee         decimal.Decimal  `json:"systemFee"`
	SystemFeeVATRate  *decimal.Decimal `json:"systemFeeVatRate,omitempty"`
	Refunded          bool             `json:"refunded"`
	SystemFeeRefunded bool             `json:"systemFeeRefunded"`
}

// CouponLineItem is either a discount coupon or, when IsVoucher is set, a
// multi-purpose voucher used to settle the invoice. TotalPrice is never positive.
type CouponLineItem struct {
	LineItemBase
	Code         string       `json:"code,omitempty"`
	DiscountType DiscountType `json:"discountType"`
	IsVoucher    bool         `json:"isVoucher"`
	Refunded     bool         `json:"refunded"`
}

// VoucherLineItem is a gift voucher bought in this order. Multi-purpose
// vouchers carry no VAT at sale.
type VoucherLineItem struct {
	LineItemBase
	Refunded bool `json:"refunded"`
}

func (TicketLineItem) isLineItem()       {}
func (CrossSellingLineItem) isLineItem() {}
func (CouponLineItem) isLineItem()       {}
func (VoucherLineItem) isLineItem()      {}

// LineItems is a basket's item list with a type-discriminated JSON encoding.
type LineItems []LineItem

// UnmarshalJSON decodes each element according to its "type" field.
func (l *LineItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	items := make(LineItems, 0, len(raw))
	for idx, msg := range raw {
		item, err := DecodeLineItem(msg)
		if err != nil {
			return fmt.Errorf("line item %d: %w", idx, err)
		}
		items = append(items, item)
	}
	*l = items
	return nil
}

// MarshalJSON encodes the items with their discriminator populated.
func (l LineItems) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(l))
	for _, item := range l {
		switch v := item.(type) {
		case TicketLineItem:
			v.Type = LineItemTypeTicket
			out = append(out, v)
		case CrossSellingLineItem:
			v.Type = LineItemTypeCrossSelling
			out = append(out, v)
		case CouponLineItem:
			v.Type = LineItemTypeCoupon
			out = append(out, v)
		case VoucherLineItem:
			v.Type = LineItemTypeVoucher
			out = append(out, v)
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownLineItemType, item)
		}
	}
	return json.Marshal(out)
}

// DecodeLineItem decodes a single JSON line item using its "type" discriminator.
func DecodeLineItem(data []byte) (LineItem, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch LineItemType(strings.ToLower(strings.TrimSpace(head.Type))) {
	case LineItemTypeTicket:
		var item TicketLineItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		item.Type = LineItemTypeTicket
		return item, nil
	case LineItemTypeCrossSelling:
		var item CrossSellingLineItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		item.Type = LineItemTypeCrossSelling
		return item, nil
	case LineItemTypeCoupon:
		var item CouponLineItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		item.Type = LineItemTypeCoupon
		return item, nil
	case LineItemTypeVoucher:
		var item VoucherLineItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		item.Type = LineItemTypeVoucher
		item.VATRate = decimal.Zero
		return item, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLineItemType, head.Type)
	}
}
