package breakdown

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// roundMoney rounds half away from zero to the currency's minor unit.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// vatFromGross back-calculates the VAT contained in a VAT-inclusive amount.
func vatFromGross(gross, rate decimal.Decimal) decimal.Decimal {
	if gross.IsZero() || rate.Sign() <= 0 {
		return decimal.Zero
	}
	return gross.Mul(rate).Div(hundred.Add(rate))
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
