package gateway

import (
	"context"
	"fmt"

	"github.com/billhaven/billpay/internal/domain"
)

// NoPayment is the adapter for billers that do not accept online payment.
// Every payment operation fails with ErrNotSupported; validation always
// denies.
type NoPayment struct{}

func NewNoPayment() *NoPayment { return &NoPayment{} }

func (g *NoPayment) Name() string { return "none" }

func (g *NoPayment) SupportedMethods() []domain.PaymentMethod { return nil }

func (g *NoPayment) CreatePayment(_ context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	return nil, fmt.Errorf("biller %s: %w", req.BillerID, domain.ErrNotSupported)
}

func (g *NoPayment) PaymentStatus(_ context.Context, transactionID string) (*domain.PaymentStatusInfo, error) {
	return nil, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotSupported)
}

func (g *NoPayment) ValidateBiller(_ context.Context, _ domain.Biller, _ string) (bool, error) {
	return false, nil
}

func (g *NoPayment) HandleWebhook(_ context.Context, _ []byte, _ string) error {
	return domain.ErrNotSupported
}
