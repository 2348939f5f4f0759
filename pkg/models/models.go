package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Finance is a single loan account. Principal is the cumulative capital
// extended (sum of all due amounts); it grows only via creation and top-ups.
// Outstanding balances are never stored — they are derived from the payment
// ledger on every read.
type Finance struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Contact          string          `json:"contact"`
	Principal        decimal.Decimal `json:"principal"`
	Mode             InterestMode    `json:"-"`
	InterestPerMonth decimal.Decimal `json:"interest_per_month"` // sum of all dues' baseline IPM
	StartDate        time.Time       `json:"start_date"`
	Dues             []Due           `json:"dues"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Due is one capital injection within a Finance: the initial loan amount or a
// later top-up. Amount is immutable once created. InterestPerMonth is the
// due's baseline flat monthly interest, reassigned on mode switches.
type Due struct {
	ID               uuid.UUID       `json:"id"`
	FinanceID        uuid.UUID       `json:"finance_id"`
	Amount           decimal.Decimal `json:"amount"`
	StartDate        time.Time       `json:"start_date"`
	InterestPerMonth decimal.Decimal `json:"interest_per_month"`
	Note             string          `json:"note"`
	AddedAt          time.Time       `json:"added_at"`
}

type PaymentType string

const (
	PaymentTypePrincipal PaymentType = "principal"
	PaymentTypeInterest  PaymentType = "interest"
)

// Payment is an append-only ledger entry against a Finance. Payments are
// never edited or deleted; principal reduction is derived, not stored.
type Payment struct {
	ID        uuid.UUID       `json:"id"`
	FinanceID uuid.UUID       `json:"finance_id"`
	Type      PaymentType     `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Note      string          `json:"note"`
}

// User is an admin account for the API.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
