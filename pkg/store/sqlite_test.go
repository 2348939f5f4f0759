package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrish/justfinance/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleFinance() *models.Finance {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	topup := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fin := &models.Finance{
		ID:               uuid.New(),
		Name:             "Ravi Kumar",
		Contact:          "99999 11111",
		Principal:        dec("8000"),
		Mode:             models.RateMode(dec("12")),
		InterestPerMonth: dec("80"),
		StartDate:        start,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	fin.Dues = []models.Due{
		{Amount: dec("5000"), StartDate: start, InterestPerMonth: dec("50"), Note: "Initial", AddedAt: start},
		{Amount: dec("3000"), StartDate: topup, InterestPerMonth: dec("30"), Note: "Top-up", AddedAt: topup},
	}
	return fin
}

func TestSQLiteStore_CreateAndGetFinance(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	require.NoError(t, s.CreateFinance(fin))

	fetched, err := s.GetFinance(fin.ID)
	require.NoError(t, err)

	assert.Equal(t, fin.Name, fetched.Name)
	assert.Equal(t, fin.Contact, fetched.Contact)
	assert.True(t, fetched.Principal.Equal(dec("8000")))
	assert.True(t, fetched.InterestPerMonth.Equal(dec("80")))

	rate, isRate := fetched.Mode.Rate()
	require.True(t, isRate, "rate mode must survive a round trip")
	assert.True(t, rate.Equal(dec("12")))

	require.Len(t, fetched.Dues, 2)
	// Dues come back in start-date order.
	assert.True(t, fetched.Dues[0].Amount.Equal(dec("5000")))
	assert.Equal(t, "Initial", fetched.Dues[0].Note)
	assert.True(t, fetched.Dues[1].Amount.Equal(dec("3000")))
	assert.True(t, fetched.Dues[1].InterestPerMonth.Equal(dec("30")))
}

func TestSQLiteStore_FlatModeRoundTrip(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	fin.Mode = models.FlatMode(dec("80"))
	require.NoError(t, s.CreateFinance(fin))

	fetched, err := s.GetFinance(fin.ID)
	require.NoError(t, err)

	_, isRate := fetched.Mode.Rate()
	assert.False(t, isRate)
	flat, isFlat := fetched.Mode.FlatMonthly()
	require.True(t, isFlat)
	assert.True(t, flat.Equal(dec("80")))
}

func TestSQLiteStore_GetFinanceNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetFinance(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveFinanceReplacesDues(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	require.NoError(t, s.CreateFinance(fin))

	added := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fin.Dues = append(fin.Dues, models.Due{
		Amount: dec("2000"), StartDate: added, InterestPerMonth: dec("20"), Note: "Top-up", AddedAt: added,
	})
	fin.Principal = dec("10000")
	fin.InterestPerMonth = dec("100")
	require.NoError(t, s.SaveFinance(fin))

	fetched, err := s.GetFinance(fin.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Principal.Equal(dec("10000")))
	require.Len(t, fetched.Dues, 3)
	assert.True(t, fetched.Dues[2].Amount.Equal(dec("2000")))
}

func TestSQLiteStore_SaveFinanceNotFound(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	assert.ErrorIs(t, s.SaveFinance(fin), ErrNotFound)
}

func TestSQLiteStore_PaymentsAndSums(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	require.NoError(t, s.CreateFinance(fin))

	mk := func(typ models.PaymentType, amount string, at time.Time) *models.Payment {
		return &models.Payment{
			ID: uuid.New(), FinanceID: fin.ID, Type: typ, Amount: dec(amount), PaidAt: at,
		}
	}
	require.NoError(t, s.CreatePayment(mk(models.PaymentTypePrincipal, "1000", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.CreatePayment(mk(models.PaymentTypePrincipal, "500.50", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.CreatePayment(mk(models.PaymentTypeInterest, "80", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))))

	payments, err := s.GetPaymentsForFinance(fin.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	// Newest first.
	assert.True(t, payments[0].Amount.Equal(dec("500.50")))

	sums, err := s.SumPaymentsByType([]uuid.UUID{fin.ID})
	require.NoError(t, err)
	got := sums[fin.ID]
	assert.True(t, got.Principal.Equal(dec("1500.50")), "got %s", got.Principal)
	assert.True(t, got.Interest.Equal(dec("80")))
}

func TestSQLiteStore_SumPaymentsByTypeEmpty(t *testing.T) {
	s := newTestStore(t)

	sums, err := s.SumPaymentsByType(nil)
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestSQLiteStore_AppendPaymentChecked(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	require.NoError(t, s.CreateFinance(fin))

	// First append sees empty sums.
	p1, err := s.AppendPaymentChecked(fin.ID, func(sums PaymentSums) (*models.Payment, error) {
		assert.True(t, sums.Principal.IsZero())
		return &models.Payment{
			ID: uuid.New(), FinanceID: fin.ID, Type: models.PaymentTypePrincipal,
			Amount: dec("3000"), PaidAt: time.Now().UTC(),
		}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, p1)

	// Second append sees the first payment's sum.
	_, err = s.AppendPaymentChecked(fin.ID, func(sums PaymentSums) (*models.Payment, error) {
		assert.True(t, sums.Principal.Equal(dec("3000")))
		return &models.Payment{
			ID: uuid.New(), FinanceID: fin.ID, Type: models.PaymentTypeInterest,
			Amount: dec("80"), PaidAt: time.Now().UTC(),
		}, nil
	})
	require.NoError(t, err)

	// A rejected build leaves no row behind.
	wantErr := assert.AnError
	_, err = s.AppendPaymentChecked(fin.ID, func(sums PaymentSums) (*models.Payment, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	payments, err := s.GetPaymentsForFinance(fin.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestSQLiteStore_DeleteFinance(t *testing.T) {
	s := newTestStore(t)

	fin := sampleFinance()
	require.NoError(t, s.CreateFinance(fin))
	require.NoError(t, s.CreatePayment(&models.Payment{
		ID: uuid.New(), FinanceID: fin.ID, Type: models.PaymentTypePrincipal,
		Amount: dec("100"), PaidAt: time.Now().UTC(),
	}))

	require.NoError(t, s.DeleteFinance(fin.ID))

	_, err := s.GetFinance(fin.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	payments, err := s.GetPaymentsForFinance(fin.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	assert.ErrorIs(t, s.DeleteFinance(fin.ID), ErrNotFound)
}

func TestSQLiteStore_ListFinancesNewestFirst(t *testing.T) {
	s := newTestStore(t)

	older := sampleFinance()
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older.UpdatedAt = older.CreatedAt
	require.NoError(t, s.CreateFinance(older))

	newer := sampleFinance()
	newer.Name = "Newer"
	newer.CreatedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer.UpdatedAt = newer.CreatedAt
	require.NoError(t, s.CreateFinance(newer))

	finances, err := s.ListFinances()
	require.NoError(t, err)
	require.Len(t, finances, 2)
	assert.Equal(t, "Newer", finances[0].Name)
	assert.Len(t, finances[0].Dues, 2)
}

func TestSQLiteStore_Users(t *testing.T) {
	s := newTestStore(t)

	count, err := s.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	u := &models.User{ID: uuid.New(), Username: "admin", PasswordHash: "hash-1", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.UpsertUser(u))

	fetched, err := s.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", fetched.PasswordHash)

	// Upsert with the same username replaces the hash.
	u2 := &models.User{ID: uuid.New(), Username: "admin", PasswordHash: "hash-2", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.UpsertUser(u2))

	fetched, err = s.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", fetched.PasswordHash)

	count, err = s.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.GetUserByUsername("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
