package main

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/ledger"
	"github.com/mkrish/justfinance/pkg/models"
)

const dateLayout = "2006-01-02"

// optDecimal distinguishes an omitted JSON field from an explicit null from
// a value. PATCH edits need all three: null clears an interest assignment,
// absence leaves it alone.
type optDecimal struct {
	set   bool
	value *decimal.Decimal
}

func (o *optDecimal) UnmarshalJSON(b []byte) error {
	o.set = true
	if string(b) == "null" {
		o.value = nil
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	o.value = &d
	return nil
}

// dueDTO is the per-due breakdown in list responses. Display amounts are
// rounded to whole currency units here, at the API boundary only.
type dueDTO struct {
	Amount           decimal.Decimal `json:"amount"`
	StartDate        string          `json:"start_date"`
	InterestPerMonth decimal.Decimal `json:"interest_per_month"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	CurrentIPM       decimal.Decimal `json:"current_ipm"`
	Note             string          `json:"note"`
}

type financeDTO struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Contact             string           `json:"contact"`
	Amount              decimal.Decimal  `json:"amount"`
	InterestRate        *decimal.Decimal `json:"interest_rate"`
	InterestPerMonth    decimal.Decimal  `json:"interest_per_month"`
	StartDate           string           `json:"start_date"`
	PaidPrincipal       decimal.Decimal  `json:"paid_principal"`
	PaidInterest        decimal.Decimal  `json:"paid_interest"`
	CurrentPrincipal    decimal.Decimal  `json:"current_principal"`
	CurrentIPM          decimal.Decimal  `json:"current_ipm"`
	MonthsElapsed       int              `json:"months_elapsed"`
	OutstandingInterest decimal.Decimal  `json:"outstanding_interest"`
	Dues                []dueDTO         `json:"dues"`
	Outstanding         decimal.Decimal  `json:"outstanding"`
}

type paymentDTO struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
	Date   string          `json:"date"`
}

func toFinanceDTO(v ledger.FinanceView) financeDTO {
	fin := v.Finance

	var ratePtr *decimal.Decimal
	if rate, ok := fin.Mode.Rate(); ok {
		r := rate
		ratePtr = &r
	}

	dues := make([]dueDTO, 0, len(v.Dues))
	for _, d := range v.Dues {
		dues = append(dues, dueDTO{
			Amount:           d.Amount,
			StartDate:        d.StartDate.Format(dateLayout),
			InterestPerMonth: d.InterestPerMonth.Round(0),
			Outstanding:      d.Remaining.Round(0),
			CurrentIPM:       d.CurrentIPM.Round(0),
			Note:             d.Note,
		})
	}

	return financeDTO{
		ID:                  fin.ID.String(),
		Name:                fin.Name,
		Contact:             fin.Contact,
		Amount:              fin.Principal,
		InterestRate:        ratePtr,
		InterestPerMonth:    fin.InterestPerMonth,
		StartDate:           fin.StartDate.Format(dateLayout),
		PaidPrincipal:       v.PaidPrincipal,
		PaidInterest:        v.PaidInterest,
		CurrentPrincipal:    v.CurrentPrincipal,
		CurrentIPM:          v.CurrentIPM.Round(0),
		MonthsElapsed:       v.MonthsElapsed,
		OutstandingInterest: v.OutstandingInterest.Round(0),
		Dues:                dues,
		Outstanding:         v.CurrentPrincipal,
	}
}

func toPaymentDTO(p *models.Payment) paymentDTO {
	return paymentDTO{
		ID:     p.ID.String(),
		Type:   string(p.Type),
		Amount: p.Amount,
		Note:   p.Note,
		Date:   p.PaidAt.Format(dateLayout),
	}
}

// parseDate parses an optional YYYY-MM-DD request field.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
