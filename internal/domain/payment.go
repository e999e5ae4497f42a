package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
)

type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PaymentRequest is the value object for one payment attempt. It lives for
// the duration of the request only; nothing here is persisted.
type PaymentRequest struct {
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	AccountID string            `json:"accountId"`
	BillerID  string            `json:"billerId"`
	Method    PaymentMethod     `json:"paymentMethod"`
	Customer  *CustomerInfo     `json:"customerInfo,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PaymentResponse is the normalized result of a create-payment call across
// all gateways.
type PaymentResponse struct {
	TransactionID string            `json:"transactionId"`
	PaymentURL    string            `json:"paymentUrl,omitempty"`
	Status        PaymentState      `json:"status"`
	Message       string            `json:"message,omitempty"`
	Gateway       string            `json:"gateway"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaymentStatusInfo is the result of a status query.
type PaymentStatusInfo struct {
	TransactionID string           `json:"transactionId"`
	Status        PaymentState     `json:"status"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	Gateway       string           `json:"gateway"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// AuthToken is a short-lived credential handed to the external checkout
// widget. It is never stored by this service.
type AuthToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
