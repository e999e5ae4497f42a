// mock-provider is a development stand-in for the external payment and auth
// providers. It implements just enough of the Paymentus-style and
// Stripe-style surfaces for the api service to run end-to-end locally:
// payments accepted asynchronously, charges captured synchronously, checkout
// tokens minted on demand.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billhaven/billpay/internal/logging"
)

type record struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type store struct {
	mu      sync.Mutex
	records map[string]record
}

func (s *store) put(r record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.TransactionID] = r
}

func (s *store) get(id string) (record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	s := &store{records: make(map[string]record)}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Paymentus-style: accept and settle later.
	mux.HandleFunc("POST /payments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TransactionID string          `json:"transaction_id"`
			Amount        decimal.Decimal `json:"amount"`
			Currency      string          `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TransactionID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		s.put(record{
			TransactionID: body.TransactionID,
			Status:        "pending",
			Amount:        body.Amount,
			Currency:      body.Currency,
			UpdatedAt:     time.Now().UTC(),
		})
		slog.Info("payment accepted", "transaction_id", body.TransactionID)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	mux.HandleFunc("GET /payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown transaction"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	// Stripe-style: settle synchronously. Account ids prefixed BAD decline,
	// which gives local clients a deterministic failure path.
	mux.HandleFunc("POST /charges", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChargeID  string          `json:"charge_id"`
			Amount    decimal.Decimal `json:"amount"`
			Currency  string          `json:"currency"`
			AccountID string          `json:"account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChargeID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}

		status := "succeeded"
		if strings.HasPrefix(body.AccountID, "BAD") {
			status = "failed"
		}
		s.put(record{
			TransactionID: body.ChargeID,
			Status:        status,
			Amount:        body.Amount,
			Currency:      body.Currency,
			UpdatedAt:     time.Now().UTC(),
		})
		slog.Info("charge settled", "charge_id", body.ChargeID, "status", status)
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	})

	mux.HandleFunc("GET /charges/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown charge"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	// Checkout-token endpoint used by the api service's token handler.
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AuthRequest string `json:"authRequest"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AuthRequest == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing authRequest"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "pyt_" + uuid.NewString()})
	})

	addr := ":8081"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	slog.Info("mock provider started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
