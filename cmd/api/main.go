package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mkrish/justfinance/pkg/auth"
	"github.com/mkrish/justfinance/pkg/logging"
	"github.com/mkrish/justfinance/pkg/models"
	"github.com/mkrish/justfinance/pkg/store"
)

const tokenDuration = 7 * 24 * time.Hour

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// seedAdmin bootstraps or upserts the admin account from env.
// AUTO_SEED_ADMIN=true creates the account only when no users exist;
// ADMIN_UPSERT_ON_BOOT=true overwrites the password hash on every boot.
func seedAdmin(s store.Storage) error {
	bootstrap := os.Getenv("AUTO_SEED_ADMIN") == "true"
	upsert := os.Getenv("ADMIN_UPSERT_ON_BOOT") == "true"
	if !bootstrap && !upsert {
		return nil
	}

	username := getEnv("ADMIN_USER", "admin")
	password := getEnv("ADMIN_PASS", "change-me-123")
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if bootstrap {
		count, err := s.CountUsers()
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}
	return s.UpsertUser(&models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
}

// newRouter mounts the API routes. All /api routes except login require a
// Bearer token; payments and top-ups also verify the transaction passcode
// inside their handlers.
func newRouter(server *Server) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.healthHandler).Methods("GET")
	router.HandleFunc("/api/auth/login", server.loginHandler).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(server.requireAuth)
	api.HandleFunc("/finance", server.createFinanceHandler).Methods("POST")
	api.HandleFunc("/finance", server.listFinanceHandler).Methods("GET")
	api.HandleFunc("/finance/{id}", server.getFinanceHandler).Methods("GET")
	api.HandleFunc("/finance/{id}", server.editFinanceHandler).Methods("PATCH")
	api.HandleFunc("/finance/{id}", server.deleteFinanceHandler).Methods("DELETE")
	api.HandleFunc("/finance/{id}/payments", server.recordPaymentHandler).Methods("POST")
	api.HandleFunc("/finance/{id}/payments", server.paymentHistoryHandler).Methods("GET")
	api.HandleFunc("/finance/{id}/topup", server.topUpHandler).Methods("PATCH")
	api.HandleFunc("/summary", server.summaryHandler).Methods("GET")
	return router
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "justfinance.db")
	sqliteStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()
	slog.Info("storage initialized", "database", dbPath)

	if err := seedAdmin(sqliteStore); err != nil {
		slog.Error("failed to seed admin", "error", err)
		os.Exit(1)
	}

	jwtManager := auth.NewJWTManager(getEnv("JWT_SECRET", "change-me"), tokenDuration)
	passcode := auth.NewPasscodeGate(os.Getenv("TX_PASSCODE"))
	server := NewServer(sqliteStore, jwtManager, passcode)

	var origins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	origins = append(origins, "http://localhost:5173")

	handler := loggingMiddleware(corsMiddleware(origins)(newRouter(server)))

	addr := fmt.Sprintf(":%s", getEnv("PORT", "4000"))
	slog.Info("just-finance API starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
