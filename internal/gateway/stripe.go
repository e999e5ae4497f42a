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

const stripeName = "stripe"

type StripeConfig struct {
	SecretKey     string
	Account       string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// Stripe is the direct-capture adapter: the charge settles synchronously and
// CreatePayment returns a terminal status.
type Stripe struct {
	cfg    StripeConfig
	client *http.Client
	sink   StatusSink
}

func NewStripe(cfg StripeConfig, sink StatusSink) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, &domain.ConfigError{Provider: domain.ProviderStripe, Field: "secretKey"}
	}
	if cfg.Account == "" {
		return nil, &domain.ConfigError{Provider: domain.ProviderStripe, Field: "stripeAccount"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Stripe{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sink:   sink,
	}, nil
}

func (g *Stripe) Name() string { return stripeName }

func (g *Stripe) SupportedMethods() []domain.PaymentMethod {
	return []domain.PaymentMethod{domain.MethodCard, domain.MethodBankTransfer}
}

type stripeChargeBody struct {
	ChargeID      string          `json:"charge_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	AccountID     string          `json:"account_id"`
	PaymentMethod string          `json:"payment_method"`
}

type stripeChargeResult struct {
	Status         string `json:"status"`
	FailureMessage string `json:"failure_message,omitempty"`
}

func (g *Stripe) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	log := logging.FromContext(ctx)

	txID := newTransactionID("ch")
	body, err := json.Marshal(stripeChargeBody{
		ChargeID:      txID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		AccountID:     req.AccountID,
		PaymentMethod: string(req.Method),
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "create charge", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "create charge", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	httpReq.Header.Set("Stripe-Account", g.cfg.Account)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "create charge", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.ProviderError{
			Provider: stripeName,
			Op:       "create charge",
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result stripeChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "create charge", Err: err}
	}

	status := domain.PaymentCompleted
	message := "Payment captured"
	if result.Status != "succeeded" {
		status = domain.PaymentFailed
		message = "Payment declined"
		if result.FailureMessage != "" {
			message = result.FailureMessage
		}
	}

	log.Info("charge settled",
		"gateway", stripeName,
		"transaction_id", txID,
		"status", status,
	)

	return &domain.PaymentResponse{
		TransactionID: txID,
		Status:        status,
		Message:       message,
		Gateway:       stripeName,
		Metadata: map[string]string{
			"stripeAccount": g.cfg.Account,
			"accountId":     req.AccountID,
		},
	}, nil
}

func (g *Stripe) PaymentStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusInfo, error) {
	url := fmt.Sprintf("%s/charges/%s", g.cfg.BaseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "status query", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	httpReq.Header.Set("Stripe-Account", g.cfg.Account)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "status query", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.ProviderError{
			Provider: stripeName,
			Op:       "status query",
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var body struct {
		Status    string           `json:"status"`
		Amount    *decimal.Decimal `json:"amount"`
		Currency  string           `json:"currency"`
		UpdatedAt time.Time        `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.ProviderError{Provider: stripeName, Op: "status query", Err: err}
	}

	status := domain.PaymentState(body.Status)
	if body.Status == "succeeded" {
		status = domain.PaymentCompleted
	}

	return &domain.PaymentStatusInfo{
		TransactionID: transactionID,
		Status:        status,
		Amount:        body.Amount,
		Currency:      body.Currency,
		Gateway:       stripeName,
		UpdatedAt:     body.UpdatedAt,
	}, nil
}

func (g *Stripe) ValidateBiller(_ context.Context, biller domain.Biller, accountID string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	return biller.Provider == domain.ProviderStripe && biller.Credentials.StripeAccount == g.cfg.Account, nil
}

type stripeWebhookEvent struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

func (g *Stripe) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	log := logging.FromContext(ctx)

	if !verifySignature(payload, signature, g.cfg.WebhookSecret) {
		return fmt.Errorf("stripe webhook: signature verification failed")
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("stripe webhook: malformed payload: %w", err)
	}

	var status domain.PaymentState
	switch event.Status {
	case "succeeded":
		status = domain.PaymentCompleted
	case "failed":
		status = domain.PaymentFailed
	default:
		return fmt.Errorf("stripe webhook: unknown status %q", event.Status)
	}

	if g.sink != nil {
		g.sink.SetStatus(event.ChargeID, status)
	}

	log.Info("webhook processed",
		"gateway", stripeName,
		"transaction_id", event.ChargeID,
		"status", status,
	)
	return nil
}
