package models

import "github.com/shopspring/decimal"

// InterestKind discriminates the two ways interest can be specified on a
// Finance. Exactly one applies at a time.
type InterestKind int

const (
	// KindRate means interest is an annual percentage applied to remaining
	// principal.
	KindRate InterestKind = iota
	// KindFlatMonthly means interest is a fixed total currency amount per
	// month, distributed across dues.
	KindFlatMonthly
)

// InterestMode is a tagged union of Rate(annual percent) and
// FlatMonthly(total amount per month). The zero value is FlatMonthly(0),
// which is also what a cleared interest assignment collapses to.
type InterestMode struct {
	kind  InterestKind
	value decimal.Decimal
}

// RateMode returns an InterestMode carrying an annual percentage rate.
func RateMode(annualPercent decimal.Decimal) InterestMode {
	return InterestMode{kind: KindRate, value: annualPercent}
}

// FlatMode returns an InterestMode carrying a flat total monthly amount.
func FlatMode(totalPerMonth decimal.Decimal) InterestMode {
	return InterestMode{kind: KindFlatMonthly, value: totalPerMonth}
}

func (m InterestMode) Kind() InterestKind { return m.kind }

// Rate returns the annual percentage and true if the mode is KindRate.
func (m InterestMode) Rate() (decimal.Decimal, bool) {
	if m.kind != KindRate {
		return decimal.Zero, false
	}
	return m.value, true
}

// FlatMonthly returns the total monthly amount and true if the mode is
// KindFlatMonthly.
func (m InterestMode) FlatMonthly() (decimal.Decimal, bool) {
	if m.kind != KindFlatMonthly {
		return decimal.Zero, false
	}
	return m.value, true
}
