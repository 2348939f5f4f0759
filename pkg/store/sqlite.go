package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
// Decimal columns are stored as TEXT so no precision is lost.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and initializes the schema.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS finances (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL,
		interest_rate TEXT,
		interest_per_month TEXT NOT NULL DEFAULT '0',
		start_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS dues (
		id TEXT PRIMARY KEY,
		finance_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		interest_per_month TEXT NOT NULL DEFAULT '0',
		note TEXT NOT NULL DEFAULT '',
		added_at DATETIME NOT NULL,
		FOREIGN KEY(finance_id) REFERENCES finances(id) ON DELETE CASCADE
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		finance_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at DATETIME NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(finance_id) REFERENCES finances(id)
	);
	CREATE INDEX IF NOT EXISTS idx_dues_finance_id ON dues(finance_id);
	CREATE INDEX IF NOT EXISTS idx_payments_finance_id ON payments(finance_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// modeColumns flattens the interest mode union into the two nullable columns.
func modeColumns(fin *models.Finance) (rate sql.NullString, ipm string) {
	if r, ok := fin.Mode.Rate(); ok {
		rate = sql.NullString{String: r.String(), Valid: true}
	}
	return rate, fin.InterestPerMonth.String()
}

// modeFromColumns rebuilds the union: a non-null rate wins, otherwise the
// stored monthly total is treated as flat mode.
func modeFromColumns(rate sql.NullString, ipm decimal.Decimal) (models.InterestMode, error) {
	if rate.Valid {
		r, err := decimal.NewFromString(rate.String)
		if err != nil {
			return models.InterestMode{}, fmt.Errorf("bad interest_rate value %q: %w", rate.String, err)
		}
		return models.RateMode(r), nil
	}
	return models.FlatMode(ipm), nil
}

// CreateFinance inserts a new finance and its dues.
func (s *SQLiteStore) CreateFinance(fin *models.Finance) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rate, ipm := modeColumns(fin)
	_, err = tx.Exec(
		`INSERT INTO finances (id, name, contact, principal, interest_rate, interest_per_month, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fin.ID.String(), fin.Name, fin.Contact, fin.Principal.String(), rate, ipm, fin.StartDate, fin.CreatedAt, fin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create finance: %w", err)
	}

	if err := insertDues(tx, fin); err != nil {
		return err
	}
	return tx.Commit()
}

func insertDues(tx *sql.Tx, fin *models.Finance) error {
	for i := range fin.Dues {
		d := &fin.Dues[i]
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.FinanceID = fin.ID
		_, err := tx.Exec(
			`INSERT INTO dues (id, finance_id, amount, start_date, interest_per_month, note, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID.String(), fin.ID.String(), d.Amount.String(), d.StartDate, d.InterestPerMonth.String(), d.Note, d.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert due: %w", err)
		}
	}
	return nil
}

// GetFinance retrieves a finance and its dues by ID.
func (s *SQLiteStore) GetFinance(id uuid.UUID) (*models.Finance, error) {
	row := s.db.QueryRow(
		`SELECT id, name, contact, principal, interest_rate, interest_per_month, start_date, created_at, updated_at
		FROM finances WHERE id = ?`, id.String())

	fin, err := scanFinance(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("finance: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get finance: %w", err)
	}

	dues, err := s.getDues(fin.ID)
	if err != nil {
		return nil, err
	}
	fin.Dues = dues
	return fin, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFinance(row rowScanner) (*models.Finance, error) {
	var fin models.Finance
	var idStr string
	var rate sql.NullString
	if err := row.Scan(&idStr, &fin.Name, &fin.Contact, &fin.Principal, &rate, &fin.InterestPerMonth,
		&fin.StartDate, &fin.CreatedAt, &fin.UpdatedAt); err != nil {
		return nil, err
	}
	fin.ID = uuid.MustParse(idStr)
	mode, err := modeFromColumns(rate, fin.InterestPerMonth)
	if err != nil {
		return nil, err
	}
	fin.Mode = mode
	return &fin, nil
}

func (s *SQLiteStore) getDues(financeID uuid.UUID) ([]models.Due, error) {
	rows, err := s.db.Query(
		`SELECT id, finance_id, amount, start_date, interest_per_month, note, added_at
		FROM dues WHERE finance_id = ? ORDER BY start_date ASC, added_at ASC`, financeID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get dues: %w", err)
	}
	defer rows.Close()

	var dues []models.Due
	for rows.Next() {
		var d models.Due
		var idStr, finStr string
		if err := rows.Scan(&idStr, &finStr, &d.Amount, &d.StartDate, &d.InterestPerMonth, &d.Note, &d.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan due row: %w", err)
		}
		d.ID = uuid.MustParse(idStr)
		d.FinanceID = uuid.MustParse(finStr)
		dues = append(dues, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during dues iteration: %w", err)
	}
	return dues, nil
}

// SaveFinance replaces the stored finance row and its entire dues list.
func (s *SQLiteStore) SaveFinance(fin *models.Finance) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rate, ipm := modeColumns(fin)
	result, err := tx.Exec(
		`UPDATE finances SET name = ?, contact = ?, principal = ?, interest_rate = ?, interest_per_month = ?, start_date = ?, updated_at = ?
		WHERE id = ?`,
		fin.Name, fin.Contact, fin.Principal.String(), rate, ipm, fin.StartDate, fin.UpdatedAt, fin.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update finance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("finance: %w", ErrNotFound)
	}

	if _, err := tx.Exec(`DELETE FROM dues WHERE finance_id = ?`, fin.ID.String()); err != nil {
		return fmt.Errorf("failed to clear dues: %w", err)
	}
	if err := insertDues(tx, fin); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFinance removes a finance, its dues and its payments.
func (s *SQLiteStore) DeleteFinance(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM payments WHERE finance_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM dues WHERE finance_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete dues: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM finances WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete finance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("finance: %w", ErrNotFound)
	}
	return tx.Commit()
}

// ListFinances retrieves all finances with their dues, newest first.
func (s *SQLiteStore) ListFinances() ([]*models.Finance, error) {
	rows, err := s.db.Query(
		`SELECT id, name, contact, principal, interest_rate, interest_per_month, start_date, created_at, updated_at
		FROM finances ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list finances: %w", err)
	}
	defer rows.Close()

	var finances []*models.Finance
	for rows.Next() {
		fin, err := scanFinance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finance row: %w", err)
		}
		finances = append(finances, fin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during finances iteration: %w", err)
	}

	for _, fin := range finances {
		dues, err := s.getDues(fin.ID)
		if err != nil {
			return nil, err
		}
		fin.Dues = dues
	}
	return finances, nil
}

// CreatePayment inserts a payment row without outstanding-balance checks.
// Handlers should prefer AppendPaymentChecked.
func (s *SQLiteStore) CreatePayment(p *models.Payment) error {
	_, err := s.db.Exec(
		`INSERT INTO payments (id, finance_id, type, amount, paid_at, note) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.FinanceID.String(), string(p.Type), p.Amount.String(), p.PaidAt, p.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// AppendPaymentChecked reads the finance's payment sums and appends the
// payment produced by build within one transaction, so two concurrent
// payments cannot both validate against the same outstanding balance.
func (s *SQLiteStore) AppendPaymentChecked(financeID uuid.UUID, build func(sums PaymentSums) (*models.Payment, error)) (*models.Payment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT type, COALESCE(GROUP_CONCAT(amount, '|'), '')
		FROM payments WHERE finance_id = ? GROUP BY type`, financeID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}

	sums, err := scanSums(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	payment, err := build(sums)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(
		`INSERT INTO payments (id, finance_id, type, amount, paid_at, note) VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.FinanceID.String(), string(payment.Type), payment.Amount.String(), payment.PaidAt, payment.Note,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return payment, nil
}

// scanSums totals TEXT decimal amounts exactly by re-parsing the concatenated
// values rather than trusting SQLite's float SUM.
func scanSums(rows *sql.Rows) (PaymentSums, error) {
	sums := PaymentSums{Principal: decimal.Zero, Interest: decimal.Zero}
	for rows.Next() {
		var typ, concat string
		if err := rows.Scan(&typ, &concat); err != nil {
			return sums, fmt.Errorf("failed to scan payment sum: %w", err)
		}
		total, err := sumConcat(concat)
		if err != nil {
			return sums, err
		}
		switch models.PaymentType(typ) {
		case models.PaymentTypePrincipal:
			sums.Principal = total
		case models.PaymentTypeInterest:
			sums.Interest = total
		}
	}
	if err := rows.Err(); err != nil {
		return sums, fmt.Errorf("error during payment sums iteration: %w", err)
	}
	return sums, nil
}

// sumConcat totals a GROUP_CONCAT of TEXT decimal amounts exactly, rather
// than trusting SQLite's float SUM over TEXT columns.
func sumConcat(concat string) (decimal.Decimal, error) {
	total := decimal.Zero
	if concat == "" {
		return total, nil
	}
	for _, part := range strings.Split(concat, "|") {
		d, err := decimal.NewFromString(part)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad payment amount %q: %w", part, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// GetPaymentsForFinance retrieves all payments for a finance, newest first.
func (s *SQLiteStore) GetPaymentsForFinance(financeID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.Query(
		`SELECT id, finance_id, type, amount, paid_at, note FROM payments WHERE finance_id = ? ORDER BY paid_at DESC`,
		financeID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for finance %s: %w", financeID, err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var p models.Payment
		var idStr, finStr, typ string
		if err := rows.Scan(&idStr, &finStr, &typ, &p.Amount, &p.PaidAt, &p.Note); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		p.ID = uuid.MustParse(idStr)
		p.FinanceID = uuid.MustParse(finStr)
		p.Type = models.PaymentType(typ)
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during payments iteration: %w", err)
	}
	return payments, nil
}

// SumPaymentsByType returns the grouped payment aggregate for each requested
// finance ID. Finances with no payments are absent from the map.
func (s *SQLiteStore) SumPaymentsByType(financeIDs []uuid.UUID) (map[uuid.UUID]PaymentSums, error) {
	result := make(map[uuid.UUID]PaymentSums)
	if len(financeIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(financeIDs))
	args := make([]any, len(financeIDs))
	for i, id := range financeIDs {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	query := fmt.Sprintf(
		`SELECT finance_id, type, COALESCE(GROUP_CONCAT(amount, '|'), '')
		FROM payments WHERE finance_id IN (%s) GROUP BY finance_id, type`,
		strings.Join(placeholders, ","))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var finStr, typ, concat string
		if err := rows.Scan(&finStr, &typ, &concat); err != nil {
			return nil, fmt.Errorf("failed to scan payment sum row: %w", err)
		}
		total, err := sumConcat(concat)
		if err != nil {
			return nil, err
		}
		finID := uuid.MustParse(finStr)
		sums := result[finID]
		switch models.PaymentType(typ) {
		case models.PaymentTypePrincipal:
			sums.Principal = total
		case models.PaymentTypeInterest:
			sums.Interest = total
		}
		result[finID] = sums
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during payment sums iteration: %w", err)
	}
	return result, nil
}

// GetUserByUsername retrieves an admin user by username.
func (s *SQLiteStore) GetUserByUsername(username string) (*models.User, error) {
	var u models.User
	var idStr string
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	if err := row.Scan(&idStr, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.ID = uuid.MustParse(idStr)
	return &u, nil
}

// UpsertUser inserts or replaces an admin user keyed by username.
func (s *SQLiteStore) UpsertUser(u *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
		u.ID.String(), u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// CountUsers returns the number of admin users.
func (s *SQLiteStore) CountUsers() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Storage = (*SQLiteStore)(nil)
