package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/models"
	"github.com/mkrish/justfinance/pkg/store"
)

// DueView is the derived per-due state for one read. Nothing here is
// persisted.
type DueView struct {
	Amount           decimal.Decimal
	StartDate        time.Time
	InterestPerMonth decimal.Decimal
	Remaining        decimal.Decimal
	CurrentIPM       decimal.Decimal
	Note             string
}

// FinanceView is a finance with all derived fields, recomputed from the
// payment ledger on every read so stored state can never drift from it.
type FinanceView struct {
	Finance             *models.Finance
	PaidPrincipal       decimal.Decimal
	PaidInterest        decimal.Decimal
	CurrentPrincipal    decimal.Decimal
	CurrentIPM          decimal.Decimal
	MonthsElapsed       int
	AccruedInterest     decimal.Decimal
	OutstandingInterest decimal.Decimal
	Dues                []DueView
}

func buildView(fin *models.Finance, sums store.PaymentSums, asOf time.Time) FinanceView {
	states := ResolveDueStates(fin.Dues, sums.Principal)

	dues := make([]DueView, 0, len(states))
	for _, st := range states {
		dues = append(dues, DueView{
			Amount:           st.Due.Amount,
			StartDate:        st.Due.StartDate,
			InterestPerMonth: st.Due.InterestPerMonth,
			Remaining:        st.Remaining,
			CurrentIPM:       DueCurrentIPM(fin.Mode, st),
			Note:             st.Due.Note,
		})
	}

	return FinanceView{
		Finance:             fin,
		PaidPrincipal:       sums.Principal,
		PaidInterest:        sums.Interest,
		CurrentPrincipal:    SumRemaining(states),
		CurrentIPM:          CurrentIPM(fin.Mode, states),
		MonthsElapsed:       MonthsBetween(fin.StartDate, asOf),
		AccruedInterest:     AccruedInterest(fin.Dues, asOf),
		OutstandingInterest: OutstandingInterest(fin.Dues, asOf, sums.Interest),
		Dues:                dues,
	}
}
