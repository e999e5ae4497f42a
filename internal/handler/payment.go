package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billpay/internal/directory"
	"github.com/billhaven/billpay/internal/domain"
	"github.com/billhaven/billpay/internal/gateway"
	"github.com/billhaven/billpay/internal/logging"
	"github.com/billhaven/billpay/internal/track"
)

// gatewayResolver is the slice of the gateway factory the handler needs.
type gatewayResolver interface {
	Gateway(biller domain.Biller) (gateway.Gateway, error)
}

// PaymentHandler coordinates directory lookup, capability checks, gateway
// resolution and payment creation into the uniform HTTP surface.
type PaymentHandler struct {
	dir      *directory.Directory
	gateways gatewayResolver
	tracker  *track.Index
}

func NewPaymentHandler(dir *directory.Directory, gateways gatewayResolver, tracker *track.Index) *PaymentHandler {
	return &PaymentHandler{dir: dir, gateways: gateways, tracker: tracker}
}

type capabilitiesResponse struct {
	BillerID          string                 `json:"billerId"`
	BillerName        string                 `json:"billerName"`
	Provider          domain.Provider        `json:"provider"`
	SupportedMethods  []domain.PaymentMethod `json:"supportedMethods"`
	IsActive          bool                   `json:"isActive"`
	IsValidAccount    bool                   `json:"isValidAccount"`
	CanProcessPayment bool                   `json:"canProcessPayment"`
}

func (h *PaymentHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	biller, err := h.dir.Lookup(r.PathValue("billerId"))
	if err != nil {
		respondBillerNotFound(w)
		return
	}

	// With an accountId the caller wants live validation through the
	// resolved gateway; without one we only report static configuration.
	isValidAccount := true
	if accountID := r.URL.Query().Get("accountId"); accountID != "" && biller.Provider != domain.ProviderNone {
		isValidAccount = false
		gw, err := h.gateways.Gateway(biller)
		if err != nil {
			log.Error("gateway resolution failed",
				"biller_id", biller.BillerID,
				"provider", biller.Provider,
				"error", err,
			)
		} else if ok, err := gw.ValidateBiller(r.Context(), biller, accountID); err != nil {
			log.Error("account validation failed", "biller_id", biller.BillerID, "error", err)
		} else {
			isValidAccount = ok
		}
	}

	RespondJSON(w, http.StatusOK, capabilitiesResponse{
		BillerID:          biller.BillerID,
		BillerName:        biller.Name,
		Provider:          biller.Provider,
		SupportedMethods:  biller.SupportedMethods,
		IsActive:          biller.IsActive,
		IsValidAccount:    isValidAccount,
		CanProcessPayment: biller.Provider != domain.ProviderNone && isValidAccount,
	})
}

type processRequest struct {
	BillerID      string               `json:"billerId"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency"`
	AccountID     string               `json:"accountId"`
	PaymentMethod string               `json:"paymentMethod"`
	Customer      *domain.CustomerInfo `json:"customerInfo,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
}

func (r processRequest) missingFields() []string {
	var missing []string
	if r.BillerID == "" {
		missing = append(missing, "billerId")
	}
	if r.Amount.Sign() <= 0 {
		missing = append(missing, "amount")
	}
	if r.AccountID == "" {
		missing = append(missing, "accountId")
	}
	if r.PaymentMethod == "" {
		missing = append(missing, "paymentMethod")
	}
	return missing
}

type processResponse struct {
	Success       bool                `json:"success"`
	TransactionID string              `json:"transactionId"`
	PaymentURL    string              `json:"paymentUrl,omitempty"`
	Status        domain.PaymentState `json:"status"`
	Message       string              `json:"message"`
	Gateway       string              `json:"gateway"`
	BillerName    string              `json:"billerName"`
}

func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if missing := req.missingFields(); len(missing) > 0 {
		respondMissingFields(w, missing...)
		return
	}

	biller, err := h.dir.Lookup(req.BillerID)
	if err != nil {
		respondBillerNotFound(w)
		return
	}

	if biller.Provider == domain.ProviderNone {
		respondError(w, http.StatusBadRequest, "Payment not supported",
			"This biller does not support online payments. Please contact them directly.")
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if !method.IsValid() || !biller.Supports(method) {
		RespondJSON(w, http.StatusBadRequest, errorBody{
			Error:            "Payment method not supported",
			Message:          "This biller only supports: " + joinMethods(biller.SupportedMethods),
			SupportedMethods: biller.SupportedMethods,
		})
		return
	}

	gw, err := h.gateways.Gateway(biller)
	if err != nil {
		h.respondGatewayError(w, log, biller, "resolve gateway", err)
		return
	}

	if !methodOffered(gw, method) {
		RespondJSON(w, http.StatusBadRequest, errorBody{
			Error:            "Payment method not supported",
			Message:          "The payment provider does not accept this method",
			SupportedMethods: gw.SupportedMethods(),
		})
		return
	}

	valid, err := gw.ValidateBiller(r.Context(), biller, req.AccountID)
	if err != nil {
		h.respondGatewayError(w, log, biller, "validate account", err)
		return
	}
	if !valid {
		respondError(w, http.StatusBadRequest, "Invalid account",
			"The provided account ID is not valid for this biller")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	payment, err := gw.CreatePayment(r.Context(), domain.PaymentRequest{
		Amount:    req.Amount,
		Currency:  currency,
		AccountID: req.AccountID,
		BillerID:  biller.BillerID,
		Method:    method,
		Customer:  req.Customer,
		Metadata:  req.Metadata,
	})
	if err != nil {
		h.respondGatewayError(w, log, biller, "create payment", err)
		return
	}

	// A caller that disconnected mid-flight has abandoned this response;
	// do not register the transaction on their behalf. Its real state can
	// only be established by a fresh status query.
	if r.Context().Err() == nil {
		h.tracker.Record(track.Entry{
			TransactionID: payment.TransactionID,
			BillerID:      biller.BillerID,
			Gateway:       payment.Gateway,
			Amount:        req.Amount,
			Currency:      currency,
			Status:        payment.Status,
		})
	}

	RespondJSON(w, http.StatusOK, processResponse{
		Success:       true,
		TransactionID: payment.TransactionID,
		PaymentURL:    payment.PaymentURL,
		Status:        payment.Status,
		Message:       payment.Message,
		Gateway:       payment.Gateway,
		BillerName:    biller.Name,
	})
}

func (h *PaymentHandler) respondGatewayError(w http.ResponseWriter, log *slog.Logger, biller domain.Biller, op string, err error) {
	log.Error("payment operation failed",
		"operation", op,
		"biller_id", biller.BillerID,
		"provider", biller.Provider,
		"error", err,
	)

	switch {
	case errors.Is(err, domain.ErrUnsupportedProvider), errors.Is(err, domain.ErrNotSupported):
		respondError(w, http.StatusBadRequest, "Payment not supported",
			"This biller does not support online payments. Please contact them directly.")
	default:
		RespondInternal(w, "Payment processing failed")
	}
}

type billerDTO struct {
	BillerID         string                 `json:"billerId"`
	Name             string                 `json:"name"`
	Provider         domain.Provider        `json:"provider"`
	SupportedMethods []domain.PaymentMethod `json:"supportedMethods"`
	IsActive         bool                   `json:"isActive"`
}

func (h *PaymentHandler) Billers(w http.ResponseWriter, r *http.Request) {
	var billers []domain.Biller
	if q := r.URL.Query().Get("search"); q != "" {
		billers = h.dir.Search(q)
	} else {
		billers = h.dir.List()
	}

	dtos := make([]billerDTO, 0, len(billers))
	for _, b := range billers {
		dtos = append(dtos, billerDTO{
			BillerID:         b.BillerID,
			Name:             b.Name,
			Provider:         b.Provider,
			SupportedMethods: b.SupportedMethods,
			IsActive:         b.IsActive,
		})
	}

	RespondJSON(w, http.StatusOK, map[string][]billerDTO{"billers": dtos})
}

type statusResponse struct {
	TransactionID string              `json:"transactionId"`
	Status        domain.PaymentState `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Gateway       string              `json:"gateway"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	txID := r.PathValue("transactionId")

	entry, ok := h.tracker.Get(txID)
	if !ok {
		// Transactions from before this process started are not tracked;
		// answer with the neutral stub rather than a hard failure.
		RespondJSON(w, http.StatusOK, statusResponse{
			TransactionID: txID,
			Status:        domain.PaymentPending,
			Amount:        decimal.Zero,
			Currency:      "USD",
			Gateway:       "unknown",
			UpdatedAt:     time.Now().UTC(),
		})
		return
	}

	resp := statusResponse{
		TransactionID: txID,
		Status:        entry.Status,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		Gateway:       entry.Gateway,
		UpdatedAt:     entry.UpdatedAt,
	}

	// Confirm against the provider when the owning gateway is reachable;
	// fall back to the locally tracked state otherwise.
	if biller, err := h.dir.Lookup(entry.BillerID); err == nil {
		if gw, err := h.gateways.Gateway(biller); err == nil {
			if live, err := gw.PaymentStatus(r.Context(), txID); err != nil {
				log.Warn("live status query failed", "transaction_id", txID, "gateway", entry.Gateway, "error", err)
			} else {
				resp.Status = live.Status
				resp.UpdatedAt = live.UpdatedAt
				if live.Amount != nil {
					resp.Amount = *live.Amount
				}
				if live.Currency != "" {
					resp.Currency = live.Currency
				}
			}
		}
	}

	RespondJSON(w, http.StatusOK, resp)
}

func methodOffered(gw gateway.Gateway, method domain.PaymentMethod) bool {
	for _, m := range gw.SupportedMethods() {
		if m == method {
			return true
		}
	}
	return false
}

func joinMethods(methods []domain.PaymentMethod) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
