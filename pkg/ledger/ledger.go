package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/models"
	"github.com/mkrish/justfinance/pkg/store"
)

const (
	minNameLen    = 2
	maxNameLen    = 120
	maxContactLen = 120
	maxNoteLen    = 200
)

// Ledger handles the business logic for finances and their payment ledgers.
type Ledger struct {
	storage store.Storage
	now     func() time.Time
}

// NewLedger creates a Ledger backed by the given storage.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{storage: s, now: time.Now}
}

// SetClock overrides the time source. Used by tests to pin accrual math to a
// fixed date.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// CreateFinanceInput carries a create request. Exactly one of InterestRate
// and InterestPerMonth should be set; when both are, the flat amount wins.
type CreateFinanceInput struct {
	Name             string
	Contact          string
	Amount           decimal.Decimal
	StartDate        *time.Time
	InterestRate     *decimal.Decimal
	InterestPerMonth *decimal.Decimal
}

// CreateFinance creates a loan account seeded with its initial due.
func (l *Ledger) CreateFinance(in CreateFinanceInput) (*models.Finance, error) {
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateContact(in.Contact); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.InterestRate == nil && in.InterestPerMonth == nil {
		return nil, ErrMissingInterest
	}

	now := l.now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}

	var mode models.InterestMode
	var ipm decimal.Decimal
	switch {
	case in.InterestPerMonth != nil:
		if in.InterestPerMonth.IsNegative() {
			return nil, fmt.Errorf("%w: interest per month must not be negative", ErrValidation)
		}
		ipm = *in.InterestPerMonth
		mode = models.FlatMode(ipm)
	default:
		if err := validateRate(*in.InterestRate); err != nil {
			return nil, err
		}
		ipm = monthlyFromRate(in.Amount, *in.InterestRate)
		mode = models.RateMode(*in.InterestRate)
	}

	fin := &models.Finance{
		ID:               uuid.New(),
		Name:             in.Name,
		Contact:          in.Contact,
		Principal:        in.Amount,
		Mode:             mode,
		InterestPerMonth: ipm,
		StartDate:        start,
		Dues: []models.Due{{
			ID:               uuid.New(),
			Amount:           in.Amount,
			StartDate:        start,
			InterestPerMonth: ipm,
			Note:             "Initial",
			AddedAt:          start,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.storage.CreateFinance(fin); err != nil {
		return nil, fmt.Errorf("failed to store finance: %w", err)
	}
	return fin, nil
}

// EditFinanceInput carries a partial edit. Set* flags distinguish a field
// that was provided (possibly as an explicit clear, pointer nil) from one
// that was omitted entirely.
type EditFinanceInput struct {
	Name      *string
	Contact   *string
	StartDate *time.Time
	SetRate   bool
	Rate      *decimal.Decimal
	SetFlat   bool
	Flat      *decimal.Decimal
}

// EditFinance applies a partial edit. A start-date change also shifts the
// earliest due's start date. Interest edits switch the mode: providing a
// flat amount wins over a rate when both appear, and only the dues' IPM
// baselines are reassigned — never their amounts or start dates.
func (l *Ledger) EditFinance(id uuid.UUID, in EditFinanceInput) (*models.Finance, error) {
	if in.SetRate && in.SetFlat && in.Rate != nil && in.Flat != nil {
		return nil, ErrConflictingInterest
	}

	fin, err := l.loadFinance(id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return nil, err
		}
		fin.Name = *in.Name
	}
	if in.Contact != nil {
		if err := validateContact(*in.Contact); err != nil {
			return nil, err
		}
		fin.Contact = *in.Contact
	}

	if in.StartDate != nil {
		fin.StartDate = *in.StartDate
		shiftEarliestDue(fin.Dues, *in.StartDate)
	}

	switch {
	case in.SetFlat:
		if in.Flat != nil {
			if in.Flat.IsNegative() {
				return nil, fmt.Errorf("%w: interest per month must not be negative", ErrValidation)
			}
			fin.InterestPerMonth = DistributeFlat(fin.Dues, *in.Flat)
			fin.Mode = models.FlatMode(*in.Flat)
		} else {
			ClearInterest(fin.Dues)
			fin.InterestPerMonth = decimal.Zero
			fin.Mode = models.FlatMode(decimal.Zero)
		}
	case in.SetRate:
		if in.Rate != nil {
			if err := validateRate(*in.Rate); err != nil {
				return nil, err
			}
			fin.InterestPerMonth = ApplyRate(fin.Dues, *in.Rate)
			fin.Mode = models.RateMode(*in.Rate)
		} else {
			ClearInterest(fin.Dues)
			fin.InterestPerMonth = decimal.Zero
			fin.Mode = models.FlatMode(decimal.Zero)
		}
	}

	fin.UpdatedAt = l.now()
	if err := l.storage.SaveFinance(fin); err != nil {
		return nil, fmt.Errorf("failed to save finance: %w", err)
	}
	return fin, nil
}

// shiftEarliestDue moves the start date of the oldest due. Insertion order
// breaks ties, matching the FIFO waterfall's stable sort.
func shiftEarliestDue(dues []models.Due, to time.Time) {
	if len(dues) == 0 {
		return
	}
	idx := 0
	for i := 1; i < len(dues); i++ {
		if dues[i].StartDate.Before(dues[idx].StartDate) {
			idx = i
		}
	}
	dues[idx].StartDate = to
}

// TopUpInput carries a capital extension request.
type TopUpInput struct {
	Amount    decimal.Decimal
	StartDate *time.Time
	Note      string
}

// TopUp appends a new due. In rate mode the new due's baseline IPM comes
// from the account rate; in flat mode the existing dues' blended effective
// rate is preserved.
func (l *Ledger) TopUp(id uuid.UUID, in TopUpInput) (*models.Finance, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := validateNote(in.Note); err != nil {
		return nil, err
	}

	fin, err := l.loadFinance(id)
	if err != nil {
		return nil, err
	}

	now := l.now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}
	note := in.Note
	if note == "" {
		note = "Top-up"
	}

	fin.Dues = append(fin.Dues, models.Due{
		ID:               uuid.New(),
		FinanceID:        fin.ID,
		Amount:           in.Amount,
		StartDate:        start,
		InterestPerMonth: TopUpIPM(fin.Mode, fin.Dues, in.Amount),
		Note:             note,
		AddedAt:          now,
	})
	fin.Principal = fin.Principal.Add(in.Amount)
	fin.InterestPerMonth = SumDueIPM(fin.Dues)
	fin.UpdatedAt = now

	if err := l.storage.SaveFinance(fin); err != nil {
		return nil, fmt.Errorf("failed to save finance: %w", err)
	}
	return fin, nil
}

// PaymentInput carries a payment request. A nil Amount on an interest
// payment means pay the full outstanding interest.
type PaymentInput struct {
	Type   models.PaymentType
	Amount *decimal.Decimal
	Note   string
}

// RecordPayment validates a payment against the outstanding balances and
// appends it to the ledger. Validation and append run inside one storage
// transaction, so concurrent payments cannot both pass against the same
// balance. Nothing on the finance itself is mutated; outstanding state is
// derived on the next read.
func (l *Ledger) RecordPayment(id uuid.UUID, in PaymentInput) (*models.Payment, error) {
	if in.Type != models.PaymentTypePrincipal && in.Type != models.PaymentTypeInterest {
		return nil, fmt.Errorf("%w: unknown payment type %q", ErrValidation, in.Type)
	}
	if err := validateNote(in.Note); err != nil {
		return nil, err
	}

	fin, err := l.loadFinance(id)
	if err != nil {
		return nil, err
	}

	now := l.now()
	return l.storage.AppendPaymentChecked(fin.ID, func(sums store.PaymentSums) (*models.Payment, error) {
		var amount decimal.Decimal
		switch in.Type {
		case models.PaymentTypePrincipal:
			if in.Amount == nil {
				return nil, ErrInvalidAmount
			}
			states := ResolveDueStates(fin.Dues, sums.Principal)
			if err := ValidatePrincipalPayment(*in.Amount, SumRemaining(states)); err != nil {
				return nil, err
			}
			amount = *in.Amount
		case models.PaymentTypeInterest:
			outstanding := OutstandingInterest(fin.Dues, now, sums.Interest)
			resolved, err := ResolveInterestPayment(in.Amount, outstanding)
			if err != nil {
				return nil, err
			}
			amount = resolved
		}
		return &models.Payment{
			ID:        uuid.New(),
			FinanceID: fin.ID,
			Type:      in.Type,
			Amount:    amount,
			PaidAt:    now,
			Note:      in.Note,
		}, nil
	})
}

// DeleteFinance removes a finance, but only once its principal has been
// fully repaid.
func (l *Ledger) DeleteFinance(id uuid.UUID) error {
	fin, err := l.loadFinance(id)
	if err != nil {
		return err
	}

	sums, err := l.sumsFor(fin.ID)
	if err != nil {
		return err
	}
	states := ResolveDueStates(fin.Dues, sums.Principal)
	if SumRemaining(states).IsPositive() {
		return ErrNotCleared
	}

	if err := l.storage.DeleteFinance(id); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// PaymentHistory returns the finance's ledger entries, newest first.
func (l *Ledger) PaymentHistory(id uuid.UUID) ([]*models.Payment, error) {
	if _, err := l.loadFinance(id); err != nil {
		return nil, err
	}
	payments, err := l.storage.GetPaymentsForFinance(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return payments, nil
}

// GetFinanceView loads one finance with all derived fields.
func (l *Ledger) GetFinanceView(id uuid.UUID) (*FinanceView, error) {
	fin, err := l.loadFinance(id)
	if err != nil {
		return nil, err
	}
	sums, err := l.sumsFor(fin.ID)
	if err != nil {
		return nil, err
	}
	view := buildView(fin, sums, l.now())
	return &view, nil
}

// ListFinanceViews loads every finance with derived fields, newest first.
func (l *Ledger) ListFinanceViews() ([]FinanceView, error) {
	finances, err := l.storage.ListFinances()
	if err != nil {
		return nil, fmt.Errorf("failed to list finances: %w", err)
	}

	ids := make([]uuid.UUID, len(finances))
	for i, fin := range finances {
		ids[i] = fin.ID
	}
	sumsByID, err := l.storage.SumPaymentsByType(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}

	now := l.now()
	views := make([]FinanceView, 0, len(finances))
	for _, fin := range finances {
		l.ensureDues(fin)
		views = append(views, buildView(fin, sumsByID[fin.ID], now))
	}
	return views, nil
}

// Summary is the account-wide aggregate.
type Summary struct {
	TotalPrincipal   decimal.Decimal
	TotalOutstanding decimal.Decimal
}

// Summarize totals principal across all finances and subtracts principal
// payments, clamped at zero.
func (l *Ledger) Summarize() (Summary, error) {
	finances, err := l.storage.ListFinances()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list finances: %w", err)
	}
	ids := make([]uuid.UUID, len(finances))
	totalPrincipal := decimal.Zero
	for i, fin := range finances {
		ids[i] = fin.ID
		totalPrincipal = totalPrincipal.Add(fin.Principal)
	}

	sumsByID, err := l.storage.SumPaymentsByType(ids)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to sum payments: %w", err)
	}
	paidPrincipal := decimal.Zero
	for _, sums := range sumsByID {
		paidPrincipal = paidPrincipal.Add(sums.Principal)
	}

	outstanding := totalPrincipal.Sub(paidPrincipal)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	return Summary{TotalPrincipal: totalPrincipal, TotalOutstanding: outstanding}, nil
}

func (l *Ledger) loadFinance(id uuid.UUID) (*models.Finance, error) {
	fin, err := l.storage.GetFinance(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	l.ensureDues(fin)
	return fin, nil
}

// ensureDues seeds a single due from the finance's principal and interest
// assignment if the dues list is somehow empty. Every finance must carry at
// least one due after creation.
func (l *Ledger) ensureDues(fin *models.Finance) {
	if len(fin.Dues) > 0 {
		return
	}
	ipm := fin.InterestPerMonth
	if rate, ok := fin.Mode.Rate(); ok {
		ipm = monthlyFromRate(fin.Principal, rate)
	}
	fin.Dues = []models.Due{{
		ID:               uuid.New(),
		FinanceID:        fin.ID,
		Amount:           fin.Principal,
		StartDate:        fin.StartDate,
		InterestPerMonth: ipm,
		Note:             "Initial",
		AddedAt:          fin.StartDate,
	}}
}

func (l *Ledger) sumsFor(id uuid.UUID) (store.PaymentSums, error) {
	sumsByID, err := l.storage.SumPaymentsByType([]uuid.UUID{id})
	if err != nil {
		return store.PaymentSums{}, fmt.Errorf("failed to sum payments: %w", err)
	}
	return sumsByID[id], nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func validateName(name string) error {
	if len(name) < minNameLen || len(name) > maxNameLen {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrValidation, minNameLen, maxNameLen)
	}
	return nil
}

func validateContact(contact string) error {
	if len(contact) > maxContactLen {
		return fmt.Errorf("%w: contact too long", ErrValidation)
	}
	return nil
}

func validateNote(note string) error {
	if len(note) > maxNoteLen {
		return fmt.Errorf("%w: note too long", ErrValidation)
	}
	return nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(percentBase) {
		return fmt.Errorf("%w: interest rate must be between 0 and 100", ErrValidation)
	}
	return nil
}
