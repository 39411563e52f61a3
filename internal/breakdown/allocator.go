package breakdown

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

type discountedItem struct {
	ID         string
	Price      decimal.Decimal
	Discounted decimal.Decimal
	Ratio      decimal.Decimal
}

type discountAllocation struct {
	items  []discountedItem
	ratios map[string]decimal.Decimal
	gross  map[string]decimal.Decimal
}

// ratio returns the share of its price an item keeps after discount. Items the
// allocation does not know about keep their full price.
func (a discountAllocation) ratio(id string) decimal.Decimal {
	if r, ok := a.ratios[id]; ok {
		return r
	}
	return one
}

// discounted returns the discounted gross of an item, or false when the
// allocation dropped it.
func (a discountAllocation) discounted(id string) (decimal.Decimal, bool) {
	d, ok := a.gross[id]
	return d, ok
}

// allocateDiscount spreads the discount over the items weighted by price, so
// expensive items absorb proportionally more. A free basket yields an empty
// allocation.
func allocateDiscount(items []discountedItem, totalDiscount decimal.Decimal) discountAllocation {
	alloc := discountAllocation{
		ratios: make(map[string]decimal.Decimal, len(items)),
		gross:  make(map[string]decimal.Decimal, len(items)),
	}

	if totalDiscount.Sign() <= 0 {
		alloc.items = make([]discountedItem, 0, len(items))
		for _, item := range items {
			item.Discounted = item.Price
			item.Ratio = one
			alloc.items = append(alloc.items, item)
			alloc.ratios[item.ID] = one
			alloc.gross[item.ID] = item.Price
		}
		return alloc
	}

	totalPrice := decimal.Zero
	for _, item := range items {
		totalPrice = totalPrice.Add(item.Price)
	}
	if totalPrice.Sign() <= 0 {
		return alloc
	}

	alloc.items = make([]discountedItem, 0, len(items))
	for _, item := range items {
		share := item.Price.Div(totalPrice).Mul(totalDiscount)
		item.Discounted = maxZero(item.Price.Sub(share))
		if item.Price.IsZero() {
			item.Ratio = one
		} else {
			item.Ratio = item.Discounted.Div(item.Price)
		}
		alloc.items = append(alloc.items, item)
		alloc.ratios[item.ID] = item.Ratio
		alloc.gross[item.ID] = item.Discounted
	}
	return alloc
}
