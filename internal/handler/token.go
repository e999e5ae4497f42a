package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/billhaven/billpay/internal/directory"
	"github.com/billhaven/billpay/internal/domain"
	"github.com/billhaven/billpay/internal/logging"
)

type tokenIssuer interface {
	GenerateToken(ctx context.Context, userLogin, accountNumber string, biller domain.Biller) (*domain.AuthToken, error)
}

// TokenHandler issues checkout-widget tokens. Only the paymentus auth
// provider is wired today; the path parameter keeps the surface open for
// more.
type TokenHandler struct {
	dir    *directory.Directory
	tokens tokenIssuer
}

func NewTokenHandler(dir *directory.Directory, tokens tokenIssuer) *TokenHandler {
	return &TokenHandler{dir: dir, tokens: tokens}
}

type tokenRequest struct {
	UserLogin     string `json:"userLogin"`
	AccountNumber string `json:"accountNumber"`
	BillerID      string `json:"billerId"`
}

type tokenIssuedResponse struct {
	Success    bool      `json:"success"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	BillerName string    `json:"billerName"`
	BillerID   string    `json:"billerId"`
}

func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if provider := r.PathValue("authProvider"); provider != string(domain.ProviderPaymentus) {
		respondError(w, http.StatusBadRequest, "Provider not supported",
			"Checkout tokens are only issued for the paymentus provider")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	var missing []string
	if req.UserLogin == "" {
		missing = append(missing, "userLogin")
	}
	if req.AccountNumber == "" {
		missing = append(missing, "accountNumber")
	}
	if req.BillerID == "" {
		missing = append(missing, "billerId")
	}
	if len(missing) > 0 {
		respondMissingFields(w, missing...)
		return
	}

	biller, err := h.dir.Lookup(req.BillerID)
	if err != nil {
		respondBillerNotFound(w)
		return
	}

	if biller.Provider != domain.ProviderPaymentus {
		respondError(w, http.StatusBadRequest, "Provider not supported",
			"This biller does not use Paymentus for payments")
		return
	}

	token, err := h.tokens.GenerateToken(r.Context(), req.UserLogin, req.AccountNumber, biller)
	if err != nil {
		log.Error("token generation failed",
			"biller_id", biller.BillerID,
			"user_login", req.UserLogin,
			"error", err,
		)
		RespondInternal(w, "Failed to generate checkout token")
		return
	}

	RespondJSON(w, http.StatusOK, tokenIssuedResponse{
		Success:    true,
		Token:      token.Token,
		ExpiresAt:  token.ExpiresAt,
		BillerName: biller.Name,
		BillerID:   biller.BillerID,
	})
}
