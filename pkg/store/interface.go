package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/models"
)

// ErrNotFound is returned when a requested finance or user does not exist.
var ErrNotFound = errors.New("not found")

// PaymentSums is the grouped payment aggregate for one finance.
type PaymentSums struct {
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

// Storage defines the persistence operations for finances, their payment
// ledgers and admin users.
type Storage interface {
	CreateFinance(fin *models.Finance) error
	GetFinance(id uuid.UUID) (*models.Finance, error)
	// SaveFinance is a whole-document upsert: the finance row and its full
	// dues list replace what is stored.
	SaveFinance(fin *models.Finance) error
	DeleteFinance(id uuid.UUID) error
	ListFinances() ([]*models.Finance, error)

	CreatePayment(p *models.Payment) error
	// AppendPaymentChecked re-reads the payment sums for the finance inside a
	// single database transaction and passes them to build; the payment it
	// returns is appended atomically. This closes the window between
	// validating against outstanding balances and committing the payment.
	AppendPaymentChecked(financeID uuid.UUID, build func(sums PaymentSums) (*models.Payment, error)) (*models.Payment, error)
	GetPaymentsForFinance(financeID uuid.UUID) ([]*models.Payment, error)
	SumPaymentsByType(financeIDs []uuid.UUID) (map[uuid.UUID]PaymentSums, error)

	GetUserByUsername(username string) (*models.User, error)
	UpsertUser(u *models.User) error
	CountUsers() (int, error)

	Close() error
}
