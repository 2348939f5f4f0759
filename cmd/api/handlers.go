package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/mkrish/justfinance/pkg/auth"
	"github.com/mkrish/justfinance/pkg/ledger"
	"github.com/mkrish/justfinance/pkg/models"
	"github.com/mkrish/justfinance/pkg/store"
)

// Server wires the ledger and auth collaborators into HTTP handlers.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage
	jwt      *auth.JWTManager
	passcode *auth.PasscodeGate
}

func NewServer(s store.Storage, jwt *auth.JWTManager, passcode *auth.PasscodeGate) *Server {
	return &Server{
		ledger:   ledger.NewLedger(s),
		storage:  s,
		jwt:      jwt,
		passcode: passcode,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps ledger sentinels to HTTP status codes.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "Finance not found")
	case errors.Is(err, ledger.ErrNotCleared):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrExceedsOutstanding),
		errors.Is(err, ledger.ErrBelowMinimum),
		errors.Is(err, ledger.ErrConflictingInterest),
		errors.Is(err, ledger.ErrMissingInterest),
		errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"service": "just-finance-api", "ok": true})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid")
		return
	}

	user, err := s.storage.GetUserByUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) createFinanceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string           `json:"name"`
		Contact          string           `json:"contact"`
		Amount           decimal.Decimal  `json:"amount"`
		StartDate        string           `json:"start_date"`
		InterestPerMonth *decimal.Decimal `json:"interest_per_month"`
		InterestRate     *decimal.Decimal `json:"interest_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date")
		return
	}

	fin, err := s.ledger.CreateFinance(ledger.CreateFinanceInput{
		Name:             req.Name,
		Contact:          req.Contact,
		Amount:           req.Amount,
		StartDate:        start,
		InterestRate:     req.InterestRate,
		InterestPerMonth: req.InterestPerMonth,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": fin.ID.String()})
}

func (s *Server) editFinanceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name             *string    `json:"name"`
		Contact          *string    `json:"contact"`
		StartDate        *string    `json:"start_date"`
		InterestRate     optDecimal `json:"interest_rate"`
		InterestPerMonth optDecimal `json:"interest_per_month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := ledger.EditFinanceInput{
		Name:    req.Name,
		Contact: req.Contact,
		SetRate: req.InterestRate.set,
		Rate:    req.InterestRate.value,
		SetFlat: req.InterestPerMonth.set,
		Flat:    req.InterestPerMonth.value,
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil || start == nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date")
			return
		}
		in.StartDate = start
	}

	if _, err := s.ledger.EditFinance(id, in); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) getFinanceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	view, err := s.ledger.GetFinanceView(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinanceDTO(*view))
}

func (s *Server) listFinanceHandler(w http.ResponseWriter, _ *http.Request) {
	views, err := s.ledger.ListFinanceViews()
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	items := make([]financeDTO, 0, len(views))
	for _, v := range views {
		items = append(items, toFinanceDTO(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) deleteFinanceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteFinance(id); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Type     string           `json:"type"`
		Amount   *decimal.Decimal `json:"amount"`
		Passcode string           `json:"passcode"`
		Note     string           `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.verifyPasscode(w, r, req.Passcode) {
		return
	}

	payment, err := s.ledger.RecordPayment(id, ledger.PaymentInput{
		Type:   models.PaymentType(req.Type),
		Amount: req.Amount,
		Note:   req.Note,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"payment_id": payment.ID.String(),
		"amount":     payment.Amount,
	})
}

func (s *Server) paymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	payments, err := s.ledger.PaymentHistory(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	items := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) topUpHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount    decimal.Decimal `json:"amount"`
		StartDate string          `json:"start_date"`
		Note      string          `json:"note"`
		Passcode  string          `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.verifyPasscode(w, r, req.Passcode) {
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date")
		return
	}

	fin, err := s.ledger.TopUp(id, ledger.TopUpInput{
		Amount:    req.Amount,
		StartDate: start,
		Note:      req.Note,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	resp := map[string]any{
		"ok":                 true,
		"id":                 fin.ID.String(),
		"principal":          fin.Principal,
		"interest_per_month": fin.InterestPerMonth,
	}
	if rate, isRate := fin.Mode.Rate(); isRate {
		resp["interest_rate"] = rate
	} else {
		resp["interest_rate"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) summaryHandler(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.ledger.Summarize()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_principal":   summary.TotalPrincipal,
		"total_outstanding": summary.TotalOutstanding,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid finance ID")
		return uuid.Nil, false
	}
	return id, true
}
