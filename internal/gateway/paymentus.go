package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billpay/internal/domain"
	"github.com/billhaven/billpay/internal/logging"
)

const paymentusName = "paymentus"

// PaymentusConfig carries everything a Paymentus adapter needs at
// construction time. APIKey and BillerCode come from the biller record;
// BaseURL and WebhookSecret are environment-level defaults.
type PaymentusConfig struct {
	APIKey        string
	BillerCode    string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// Paymentus is the redirect-style adapter: payments come back pending with a
// hosted checkout URL and settle via webhook.
type Paymentus struct {
	cfg    PaymentusConfig
	client *http.Client
	sink   StatusSink
}

func NewPaymentus(cfg PaymentusConfig, sink StatusSink) (*Paymentus, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Provider: domain.ProviderPaymentus, Field: "apiKey"}
	}
	if cfg.BillerCode == "" {
		return nil, &domain.ConfigError{Provider: domain.ProviderPaymentus, Field: "billerCode"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Paymentus{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sink:   sink,
	}, nil
}

func (g *Paymentus) Name() string { return paymentusName }

func (g *Paymentus) SupportedMethods() []domain.PaymentMethod {
	return []domain.PaymentMethod{domain.MethodACH, domain.MethodCard, domain.MethodBankTransfer}
}

type paymentusCreateBody struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	AccountID     string          `json:"account_id"`
	PaymentMethod string          `json:"payment_method"`
	BillerCode    string          `json:"biller_code"`
}

func (g *Paymentus) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	log := logging.FromContext(ctx)

	txID := newTransactionID("pay")
	body := paymentusCreateBody{
		TransactionID: txID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		AccountID:     req.AccountID,
		PaymentMethod: string(req.Method),
		BillerCode:    g.cfg.BillerCode,
	}

	if err := g.post(ctx, "/payments", body, http.StatusAccepted); err != nil {
		return nil, &domain.ProviderError{Provider: paymentusName, Op: "create payment", Err: err}
	}

	log.Info("payment initiated",
		"gateway", paymentusName,
		"transaction_id", txID,
		"biller_code", g.cfg.BillerCode,
	)

	return &domain.PaymentResponse{
		TransactionID: txID,
		PaymentURL:    fmt.Sprintf("%s/checkout/%s", g.cfg.BaseURL, txID),
		Status:        domain.PaymentPending,
		Message:       "Payment initiated successfully",
		Gateway:       paymentusName,
		Metadata: map[string]string{
			"billerCode": g.cfg.BillerCode,
			"accountId":  req.AccountID,
		},
	}, nil
}

type paymentusStatusBody struct {
	TransactionID string           `json:"transaction_id"`
	Status        string           `json:"status"`
	Amount        *decimal.Decimal `json:"amount"`
	Currency      string           `json:"currency"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (g *Paymentus) PaymentStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusInfo, error) {
	url := fmt.Sprintf("%s/payments/%s", g.cfg.BaseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ProviderError{Provider: paymentusName, Op: "status query", Err: err}
	}
	httpReq.Header.Set("X-Api-Key", g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: paymentusName, Op: "status query", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.ProviderError{
			Provider: paymentusName,
			Op:       "status query",
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var body paymentusStatusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.ProviderError{Provider: paymentusName, Op: "status query", Err: err}
	}

	return &domain.PaymentStatusInfo{
		TransactionID: transactionID,
		Status:        domain.PaymentState(body.Status),
		Amount:        body.Amount,
		Currency:      body.Currency,
		Gateway:       paymentusName,
		UpdatedAt:     body.UpdatedAt,
	}, nil
}

// ValidateBiller authorizes the pairing: the record must be a Paymentus
// biller whose code matches the code this instance was initialized with.
func (g *Paymentus) ValidateBiller(_ context.Context, biller domain.Biller, accountID string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	return biller.Provider == domain.ProviderPaymentus && biller.Credentials.BillerCode == g.cfg.BillerCode, nil
}

type paymentusWebhookEvent struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

func (g *Paymentus) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	log := logging.FromContext(ctx)

	if !verifySignature(payload, signature, g.cfg.WebhookSecret) {
		return fmt.Errorf("paymentus webhook: signature verification failed")
	}

	var event paymentusWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("paymentus webhook: malformed payload: %w", err)
	}

	status := domain.PaymentState(event.Status)
	switch status {
	case domain.PaymentPending, domain.PaymentCompleted, domain.PaymentFailed:
	default:
		return fmt.Errorf("paymentus webhook: unknown status %q", event.Status)
	}

	if g.sink != nil {
		g.sink.SetStatus(event.TransactionID, status)
	}

	log.Info("webhook processed",
		"gateway", paymentusName,
		"transaction_id", event.TransactionID,
		"status", event.Status,
	)
	return nil
}

func (g *Paymentus) post(ctx context.Context, path string, payload any, wantStatus int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
