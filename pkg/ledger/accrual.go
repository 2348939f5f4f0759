package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/models"
)

var (
	monthsInYear = decimal.NewFromInt(12)
	percentBase  = decimal.NewFromInt(100)
	minInterest  = decimal.NewFromInt(1)
)

// DueState pairs a due with how much of its principal remains after applying
// all principal payments received so far.
type DueState struct {
	Due       models.Due
	Original  decimal.Decimal
	Remaining decimal.Decimal
}

// ResolveDueStates allocates totalPrincipalPaid across dues as a strict FIFO
// waterfall: dues sorted ascending by start date (stable for ties), oldest
// capital retired first. The returned slice is in sorted order, one entry per
// due. sum(Remaining) == sum(Original) - totalPrincipalPaid as long as the
// paid total does not exceed the due total.
func ResolveDueStates(dues []models.Due, totalPrincipalPaid decimal.Decimal) []DueState {
	sorted := make([]models.Due, len(dues))
	copy(sorted, dues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	remainingPaid := totalPrincipalPaid
	states := make([]DueState, 0, len(sorted))
	for _, d := range sorted {
		original := d.Amount
		reduce := remainingPaid
		if reduce.IsNegative() {
			reduce = decimal.Zero
		}
		if reduce.GreaterThan(original) {
			reduce = original
		}
		remainingPaid = remainingPaid.Sub(reduce)
		states = append(states, DueState{
			Due:       d,
			Original:  original,
			Remaining: original.Sub(reduce),
		})
	}
	return states
}

// SumRemaining is the account-level outstanding principal for a resolved set
// of due states.
func SumRemaining(states []DueState) decimal.Decimal {
	total := decimal.Zero
	for _, st := range states {
		total = total.Add(st.Remaining)
	}
	return total
}

// CurrentIPM computes the account's current interest-per-month from resolved
// due states.
//
// Rate mode ignores the dues' stored IPM baselines entirely and re-derives
// interest from remaining principal: remaining * rate / 100 / 12 per due.
// Flat mode scales each due's stored baseline by its remaining fraction, so
// a due's contribution shrinks linearly as it is paid down.
func CurrentIPM(mode models.InterestMode, states []DueState) decimal.Decimal {
	total := decimal.Zero
	if rate, ok := mode.Rate(); ok {
		for _, st := range states {
			total = total.Add(monthlyFromRate(st.Remaining, rate))
		}
		return total
	}
	for _, st := range states {
		total = total.Add(DueCurrentIPM(mode, st))
	}
	return total
}

// DueCurrentIPM is a single due's contribution to the current IPM.
func DueCurrentIPM(mode models.InterestMode, st DueState) decimal.Decimal {
	if rate, ok := mode.Rate(); ok {
		return monthlyFromRate(st.Remaining, rate)
	}
	if st.Original.IsZero() {
		return decimal.Zero
	}
	return st.Due.InterestPerMonth.Mul(st.Remaining).Div(st.Original)
}

// monthlyFromRate is amount * annualPercent / 100 / 12.
func monthlyFromRate(amount, annualPercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(annualPercent).Div(percentBase).Div(monthsInYear)
}

// MonthsBetween counts whole calendar month boundaries crossed between from
// and to, using the first day of each month. A due started and evaluated in
// the same calendar month yields 0. Never negative.
func MonthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months < 0 {
		return 0
	}
	return months
}

// AccruedInterest totals interest accrued across dues as of the given date:
// whole months elapsed since each due's start times its baseline IPM.
// Accrual is independent of payments received.
func AccruedInterest(dues []models.Due, asOf time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, d := range dues {
		months := decimal.NewFromInt(int64(MonthsBetween(d.StartDate, asOf)))
		total = total.Add(months.Mul(d.InterestPerMonth))
	}
	return total
}

// OutstandingInterest is accrued interest minus interest paid to date,
// floored at zero. Payments can fully satisfy accrual but never make the
// account refundable.
func OutstandingInterest(dues []models.Due, asOf time.Time, paidInterest decimal.Decimal) decimal.Decimal {
	outstanding := AccruedInterest(dues, asOf).Sub(paidInterest)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// DistributeFlat reassigns every due's baseline IPM so the given monthly
// total is split proportionally to each due's original amount share of total
// principal. Returns the (unchanged) total for the finance-level baseline.
func DistributeFlat(dues []models.Due, total decimal.Decimal) decimal.Decimal {
	principalTotal := decimal.Zero
	for _, d := range dues {
		principalTotal = principalTotal.Add(d.Amount)
	}
	for i := range dues {
		if principalTotal.IsPositive() {
			dues[i].InterestPerMonth = total.Mul(dues[i].Amount).Div(principalTotal)
		} else {
			dues[i].InterestPerMonth = decimal.Zero
		}
	}
	return total
}

// ApplyRate reassigns every due's baseline IPM from its original amount at
// the given annual rate (full-principal nominal, not remaining — read-time
// scaling is CurrentIPM's job). Returns the new finance-level baseline sum.
func ApplyRate(dues []models.Due, annualPercent decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i := range dues {
		dues[i].InterestPerMonth = monthlyFromRate(dues[i].Amount, annualPercent)
		total = total.Add(dues[i].InterestPerMonth)
	}
	return total
}

// ClearInterest zeroes every due's baseline IPM. Used when an edit explicitly
// clears the interest assignment.
func ClearInterest(dues []models.Due) {
	for i := range dues {
		dues[i].InterestPerMonth = decimal.Zero
	}
}

// BlendedAnnualRate derives the effective annual percentage implied by the
// dues' current baselines: (sum(IPM) * 12 * 100) / sum(amount). Zero when no
// principal exists.
func BlendedAnnualRate(dues []models.Due) decimal.Decimal {
	totalPrincipal := decimal.Zero
	totalIPM := decimal.Zero
	for _, d := range dues {
		totalPrincipal = totalPrincipal.Add(d.Amount)
		totalIPM = totalIPM.Add(d.InterestPerMonth)
	}
	if !totalPrincipal.IsPositive() {
		return decimal.Zero
	}
	return totalIPM.Mul(monthsInYear).Mul(percentBase).Div(totalPrincipal)
}

// TopUpIPM computes the baseline IPM for a new due of the given amount. In
// rate mode the account's rate applies directly; in flat mode the blended
// effective rate of the existing dues is preserved, so extending capital does
// not change the loan's interest intensity.
func TopUpIPM(mode models.InterestMode, existing []models.Due, addAmount decimal.Decimal) decimal.Decimal {
	if rate, ok := mode.Rate(); ok {
		return monthlyFromRate(addAmount, rate)
	}
	effRate := BlendedAnnualRate(existing)
	return effRate.Div(percentBase).Mul(addAmount).Div(monthsInYear)
}

// SumDueIPM totals the dues' stored baselines, the finance-level
// InterestPerMonth invariant.
func SumDueIPM(dues []models.Due) decimal.Decimal {
	total := decimal.Zero
	for _, d := range dues {
		total = total.Add(d.InterestPerMonth)
	}
	return total
}

// ValidatePrincipalPayment checks a principal payment request against the
// outstanding principal. The amount must be positive and must not exceed
// what is owed.
func ValidatePrincipalPayment(amount, currentPrincipal decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(currentPrincipal) {
		return ErrExceedsOutstanding
	}
	return nil
}

// ResolveInterestPayment resolves an interest payment request against the
// outstanding interest. An omitted (nil) amount defaults to paying the full
// outstanding; an explicit amount must be at least 1 and at most the
// outstanding.
func ResolveInterestPayment(amount *decimal.Decimal, maxOutstanding decimal.Decimal) (decimal.Decimal, error) {
	resolved := maxOutstanding
	if amount != nil {
		resolved = *amount
	}
	if resolved.LessThan(minInterest) {
		return decimal.Zero, ErrBelowMinimum
	}
	if resolved.GreaterThan(maxOutstanding) {
		return decimal.Zero, ErrExceedsOutstanding
	}
	return resolved, nil
}
