// Package checkout issues short-lived authorization tokens for the embedded
// Paymentus checkout pixel. Actual token minting is delegated to the
// Paymentus identity endpoint; this service builds the signed auth request
// and scopes it to one user, account and biller.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/billhaven/billpay/internal/config"
	"github.com/billhaven/billpay/internal/domain"
	"github.com/billhaven/billpay/internal/logging"
)

const providerName = "paymentus-auth"

type TokenService struct {
	baseURL      string
	preSharedKey string
	tla          string
	pixels       []string
	audience     string
	ttl          time.Duration
	client       *http.Client
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		baseURL:      cfg.PaymentusAuthBaseURL,
		preSharedKey: cfg.PaymentusPreSharedKey,
		tla:          cfg.PaymentusTLA,
		pixels:       []string{"user-checkout-pixel"},
		audience:     "WEB_SDK",
		ttl:          cfg.TokenTTL,
		client:       &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

type paymentData struct {
	AccountNumber string `json:"accountNumber"`
	BillerCode    string `json:"billerCode,omitempty"`
}

type authRequestClaims struct {
	jwt.RegisteredClaims
	TLA          string        `json:"tla"`
	Pixels       []string      `json:"pixels"`
	UserLogin    string        `json:"userLogin"`
	PaymentsData []paymentData `json:"paymentsData"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// GenerateToken requests a checkout token scoped to the given user, account
// and biller. ExpiresAt is computed locally as now plus the configured TTL;
// the provider token is treated as opaque and never parsed for its real
// expiry.
func (s *TokenService) GenerateToken(ctx context.Context, userLogin, accountNumber string, biller domain.Biller) (*domain.AuthToken, error) {
	log := logging.FromContext(ctx)
	now := time.Now()

	claims := authRequestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
		TLA:       s.tla,
		Pixels:    s.pixels,
		UserLogin: userLogin,
		PaymentsData: []paymentData{
			{AccountNumber: accountNumber, BillerCode: biller.Credentials.BillerCode},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "001"
	authRequest, err := token.SignedString([]byte(s.preSharedKey))
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "sign auth request", Err: err}
	}

	issued, err := s.fetchToken(ctx, authRequest)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "token request", Err: err}
	}

	log.Info("checkout token issued",
		"biller_id", biller.BillerID,
		"user_login", userLogin,
	)

	return &domain.AuthToken{
		Token:     issued,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

func (s *TokenService) fetchToken(ctx context.Context, authRequest string) (string, error) {
	body, err := json.Marshal(map[string]string{"authRequest": authRequest})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	url := s.baseURL + "/api/token"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("empty token in response")
	}
	return tr.Token, nil
}

// ValidateToken is a structural check only, not a security boundary: real
// validation happens provider-side when the pixel presents the token.
func (s *TokenService) ValidateToken(token string) bool {
	return strings.HasPrefix(token, "pyt_")
}
