package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billpay/internal/config"
	"github.com/billhaven/billpay/internal/directory"
	"github.com/billhaven/billpay/internal/domain"
	"github.com/billhaven/billpay/internal/gateway"
	"github.com/billhaven/billpay/internal/track"
)

const webhookSecret = "test-webhook-secret"

type testEnv struct {
	server   *httptest.Server
	dir      *directory.Directory
	tracker  *track.Index
	factory  *gateway.Factory
	provider *fakeProviderServer
}

// fakeProviderServer stands in for both provider APIs and counts payment
// creations so tests can assert a request never reached the adapter.
type fakeProviderServer struct {
	createCalls atomic.Int64
	statuses    map[string]decimal.Decimal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fp := &fakeProviderServer{statuses: make(map[string]decimal.Decimal)}
	providerMux := http.NewServeMux()
	providerMux.HandleFunc("POST /payments", func(w http.ResponseWriter, r *http.Request) {
		fp.createCalls.Add(1)
		var body struct {
			TransactionID string          `json:"transaction_id"`
			Amount        decimal.Decimal `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fp.statuses[body.TransactionID] = body.Amount
		w.WriteHeader(http.StatusAccepted)
	})
	providerMux.HandleFunc("GET /payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		amount, ok := fp.statuses[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transaction_id": r.PathValue("id"),
			"status":         "pending",
			"amount":         amount,
			"currency":       "USD",
			"updated_at":     time.Now().UTC(),
		})
	})
	providerMux.HandleFunc("POST /charges", func(w http.ResponseWriter, r *http.Request) {
		fp.createCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"status": "succeeded"})
	})
	providerSrv := httptest.NewServer(providerMux)
	t.Cleanup(providerSrv.Close)

	cfg := &config.Config{
		PaymentusBaseURL:       providerSrv.URL,
		PaymentusAPIKey:        "key",
		PaymentusWebhookSecret: webhookSecret,
		StripeBaseURL:          providerSrv.URL,
		StripeSecretKey:        "sk_test_123",
		StripeWebhookSecret:    webhookSecret,
		ProviderTimeout:        2 * time.Second,
	}

	dir := directory.New(directory.DefaultBillers(cfg))
	tracker := track.NewIndex()
	factory := gateway.NewFactory(cfg, tracker)

	payments := NewPaymentHandler(dir, factory, tracker)
	webhooks := NewWebhookHandler(dir, factory)
	tokens := NewTokenHandler(dir, &stubIssuer{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/payment/capabilities/{billerId}", payments.Capabilities)
	mux.HandleFunc("POST /api/payment/process", payments.Process)
	mux.HandleFunc("GET /api/payment/billers", payments.Billers)
	mux.HandleFunc("GET /api/payment/status/{transactionId}", payments.Status)
	mux.HandleFunc("POST /api/payment/token/{authProvider}", tokens.Issue)
	mux.HandleFunc("POST /api/payment/webhook/{gateway}", webhooks.Receive)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, dir: dir, tracker: tracker, factory: factory, provider: fp}
}

type stubIssuer struct {
	fail bool
}

func (s *stubIssuer) GenerateToken(_ context.Context, userLogin, accountNumber string, biller domain.Biller) (*domain.AuthToken, error) {
	if s.fail {
		return nil, &domain.ProviderError{Provider: "paymentus-auth", Op: "token request", Err: fmt.Errorf("boom")}
	}
	return &domain.AuthToken{Token: "pyt_stub", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestCapabilities(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown biller is 404, no fallback", func(t *testing.T) {
		var body map[string]any
		status := getJSON(t, env.server.URL+"/api/payment/capabilities/NOPE999", &body)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Biller not found", body["error"])
	})

	t.Run("sentinel resolves to first paymentus biller", func(t *testing.T) {
		var body capabilitiesResponse
		status := getJSON(t, env.server.URL+"/api/payment/capabilities/"+directory.SentinelBillerID, &body)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "UTIL123", body.BillerID)
	})

	t.Run("none provider cannot process payments", func(t *testing.T) {
		var body capabilitiesResponse
		status := getJSON(t, env.server.URL+"/api/payment/capabilities/GOV789", &body)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, domain.ProviderNone, body.Provider)
		assert.False(t, body.CanProcessPayment)
		assert.Empty(t, body.SupportedMethods)
	})

	t.Run("account validation through resolved gateway", func(t *testing.T) {
		var body capabilitiesResponse
		status := getJSON(t, env.server.URL+"/api/payment/capabilities/UTIL123?accountId=ACCT-1", &body)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body.IsValidAccount)
		assert.True(t, body.CanProcessPayment)
	})
}

func TestProcess_Validation(t *testing.T) {
	env := newTestEnv(t)
	url := env.server.URL + "/api/payment/process"

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantError    string
		wantMessage  string
		wantRequired []string
	}{
		{
			name:         "empty body lists all required fields",
			body:         `{}`,
			wantStatus:   http.StatusBadRequest,
			wantError:    "Missing required fields",
			wantRequired: []string{"billerId", "amount", "accountId", "paymentMethod"},
		},
		{
			name:         "zero amount is missing",
			body:         `{"billerId":"UTIL123","amount":0,"accountId":"ACCT-1","paymentMethod":"ACH"}`,
			wantStatus:   http.StatusBadRequest,
			wantError:    "Missing required fields",
			wantRequired: []string{"amount"},
		},
		{
			name:       "unknown biller",
			body:       `{"billerId":"NOPE999","amount":50,"accountId":"ACCT-1","paymentMethod":"ACH"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "Biller not found",
		},
		{
			name:       "none provider refuses payment",
			body:       `{"billerId":"GOV789","amount":50,"accountId":"ACCT-1","paymentMethod":"ACH"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Payment not supported",
		},
		{
			name:        "method outside biller set",
			body:        `{"billerId":"UTIL123","amount":50,"accountId":"ACCT-1","paymentMethod":"BANK_TRANSFER"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   "Payment method not supported",
			wantMessage: "This biller only supports: ACH, CARD",
		},
		{
			name:        "unknown method tag",
			body:        `{"billerId":"UTIL123","amount":50,"accountId":"ACCT-1","paymentMethod":"CASH"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   "Payment method not supported",
			wantMessage: "This biller only supports: ACH, CARD",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := env.provider.createCalls.Load()

			var body struct {
				Error            string   `json:"error"`
				Message          string   `json:"message"`
				Required         []string `json:"required"`
				SupportedMethods []string `json:"supportedMethods"`
			}
			status := postJSON(t, url, tc.body, &body)

			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantError, body.Error)
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, body.Message)
			}
			if tc.wantRequired != nil {
				assert.Equal(t, tc.wantRequired, body.Required)
			}
			if tc.wantError == "Payment method not supported" {
				assert.NotEmpty(t, body.SupportedMethods, "rejection must name the allowed set")
			}

			assert.Equal(t, before, env.provider.createCalls.Load(),
				"a rejected request must never reach the adapter")
		})
	}
}

func TestProcess_HappyPathAndStatusRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	var created processResponse
	status := postJSON(t, env.server.URL+"/api/payment/process",
		`{"billerId":"UTIL123","amount":50.00,"accountId":"ACCT-1","paymentMethod":"ACH"}`,
		&created)

	require.Equal(t, http.StatusOK, status)
	assert.True(t, created.Success)
	assert.Equal(t, domain.PaymentPending, created.Status)
	assert.Equal(t, "paymentus", created.Gateway)
	assert.Equal(t, "Acme Water Co.", created.BillerName)
	assert.NotEmpty(t, created.PaymentURL)
	require.NotEmpty(t, created.TransactionID)

	entry, ok := env.tracker.Get(created.TransactionID)
	require.True(t, ok)
	assert.Equal(t, "UTIL123", entry.BillerID)

	// The returned id is accepted by the status endpoint and routed to the
	// owning gateway.
	var st statusResponse
	status = getJSON(t, env.server.URL+"/api/payment/status/"+created.TransactionID, &st)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.TransactionID, st.TransactionID)
	assert.Equal(t, "paymentus", st.Gateway)
	assert.Equal(t, domain.PaymentPending, st.Status)
	assert.True(t, st.Amount.Equal(decimal.RequireFromString("50.00")))
}

func TestProcess_StripeSynchronousCompletion(t *testing.T) {
	env := newTestEnv(t)

	var created processResponse
	status := postJSON(t, env.server.URL+"/api/payment/process",
		`{"billerId":"INS456","amount":120.00,"accountId":"ACCT-2","paymentMethod":"CARD"}`,
		&created)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.PaymentCompleted, created.Status)
	assert.Equal(t, "stripe", created.Gateway)
}

// stubGateway answers CreatePayment successfully and can run a hook first,
// letting tests model a caller that hangs up mid provider call.
type stubGateway struct {
	txID     string
	onCreate func()
}

func (s *stubGateway) CreatePayment(_ context.Context, _ domain.PaymentRequest) (*domain.PaymentResponse, error) {
	if s.onCreate != nil {
		s.onCreate()
	}
	return &domain.PaymentResponse{
		TransactionID: s.txID,
		Status:        domain.PaymentPending,
		Gateway:       "paymentus",
	}, nil
}

func (s *stubGateway) PaymentStatus(_ context.Context, id string) (*domain.PaymentStatusInfo, error) {
	return &domain.PaymentStatusInfo{TransactionID: id, Status: domain.PaymentPending, Gateway: "paymentus"}, nil
}

func (s *stubGateway) ValidateBiller(_ context.Context, _ domain.Biller, _ string) (bool, error) {
	return true, nil
}

func (s *stubGateway) SupportedMethods() []domain.PaymentMethod {
	return []domain.PaymentMethod{domain.MethodACH, domain.MethodCard}
}

func (s *stubGateway) HandleWebhook(_ context.Context, _ []byte, _ string) error { return nil }

func (s *stubGateway) Name() string { return "paymentus" }

type stubResolver struct {
	gw gateway.Gateway
}

func (s stubResolver) Gateway(_ domain.Biller) (gateway.Gateway, error) { return s.gw, nil }

func TestProcess_CancelledCallerNotTracked(t *testing.T) {
	tests := []struct {
		name        string
		cancel      bool
		wantTracked bool
	}{
		{name: "completed request is tracked", cancel: false, wantTracked: true},
		{name: "caller gone before create returns", cancel: true, wantTracked: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := directory.New(directory.DefaultBillers(&config.Config{PaymentusAPIKey: "key"}))
			tracker := track.NewIndex()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			txID := "pay_1_stub"
			gw := &stubGateway{txID: txID}
			if tc.cancel {
				gw.onCreate = cancel
			}
			h := NewPaymentHandler(dir, stubResolver{gw: gw}, tracker)

			req := httptest.NewRequest(http.MethodPost, "/api/payment/process",
				strings.NewReader(`{"billerId":"UTIL123","amount":50,"accountId":"ACCT-1","paymentMethod":"ACH"}`))
			rec := httptest.NewRecorder()
			h.Process(rec, req.WithContext(ctx))

			require.Equal(t, http.StatusOK, rec.Code)

			_, tracked := tracker.Get(txID)
			assert.Equal(t, tc.wantTracked, tracked,
				"a transaction created after the caller disconnected must not be recorded")
		})
	}
}

func TestStatus_UnknownTransactionStub(t *testing.T) {
	env := newTestEnv(t)

	var st statusResponse
	status := getJSON(t, env.server.URL+"/api/payment/status/pay_unknown", &st)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "unknown", st.Gateway)
	assert.Equal(t, domain.PaymentPending, st.Status)
}

func TestBillers(t *testing.T) {
	env := newTestEnv(t)

	var listed struct {
		Billers []billerDTO `json:"billers"`
	}
	status := getJSON(t, env.server.URL+"/api/payment/billers", &listed)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, listed.Billers, 5)

	var searched struct {
		Billers []billerDTO `json:"billers"`
	}
	status = getJSON(t, env.server.URL+"/api/payment/billers?search=water", &searched)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, searched.Billers, 1)
	assert.Equal(t, "UTIL123", searched.Billers[0].BillerID)
}

func signBody(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)

	// Seed a tracked transaction the webhook can transition.
	env.tracker.Record(track.Entry{
		TransactionID: "pay_1_abc",
		BillerID:      "UTIL123",
		Gateway:       "paymentus",
		Status:        domain.PaymentPending,
	})

	payload := []byte(`{"transaction_id":"pay_1_abc","status":"completed"}`)

	tests := []struct {
		name      string
		gateway   string
		signature string
	}{
		{name: "verified event applies", gateway: "paymentus", signature: signBody(payload, webhookSecret)},
		{name: "bad signature still acked", gateway: "paymentus", signature: "deadbeef"},
		{name: "unknown gateway still acked", gateway: "adyen", signature: signBody(payload, webhookSecret)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost,
				env.server.URL+"/api/payment/webhook/"+tc.gateway, strings.NewReader(string(payload)))
			require.NoError(t, err)
			req.Header.Set("X-Signature", tc.signature)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			var body map[string]bool
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, http.StatusOK, resp.StatusCode, "webhooks are acknowledged unconditionally")
			assert.True(t, body["received"])
		})
	}

	entry, ok := env.tracker.Get("pay_1_abc")
	require.True(t, ok)
	assert.Equal(t, domain.PaymentCompleted, entry.Status)
}

func TestWebhook_BadSignatureNotApplied(t *testing.T) {
	env := newTestEnv(t)

	env.tracker.Record(track.Entry{
		TransactionID: "pay_2_def",
		BillerID:      "UTIL123",
		Gateway:       "paymentus",
		Status:        domain.PaymentPending,
	})

	payload := []byte(`{"transaction_id":"pay_2_def","status":"completed"}`)
	req, err := http.NewRequest(http.MethodPost,
		env.server.URL+"/api/payment/webhook/paymentus", strings.NewReader(string(payload)))
	require.NoError(t, err)
	req.Header.Set("X-Signature", "deadbeef")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	entry, ok := env.tracker.Get("pay_2_def")
	require.True(t, ok)
	assert.Equal(t, domain.PaymentPending, entry.Status, "unverified payloads must not change state")
}

func TestWebhook_SkipsMisconfiguredBiller(t *testing.T) {
	cfg := &config.Config{
		PaymentusWebhookSecret: webhookSecret,
		ProviderTimeout:        time.Second,
	}

	// The provider's first listed biller has no credentials; the callback
	// must still be verified through the next one.
	dir := directory.New([]domain.Biller{
		{
			BillerID:         "BROKEN01",
			Name:             "Broken Utility",
			Provider:         domain.ProviderPaymentus,
			SupportedMethods: []domain.PaymentMethod{domain.MethodACH},
			IsActive:         true,
		},
		{
			BillerID: "UTIL123",
			Name:     "Acme Water Co.",
			Provider: domain.ProviderPaymentus,
			Credentials: domain.Credentials{
				APIKey:     "key",
				BillerCode: "ACME_WATER_001",
			},
			SupportedMethods: []domain.PaymentMethod{domain.MethodACH},
			IsActive:         true,
		},
	})

	tracker := track.NewIndex()
	tracker.Record(track.Entry{
		TransactionID: "pay_3_ghi",
		BillerID:      "UTIL123",
		Gateway:       "paymentus",
		Status:        domain.PaymentPending,
	})
	webhooks := NewWebhookHandler(dir, gateway.NewFactory(cfg, tracker))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/payment/webhook/{gateway}", webhooks.Receive)

	payload := []byte(`{"transaction_id":"pay_3_ghi","status":"completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook/paymentus", strings.NewReader(string(payload)))
	req.Header.Set("X-Signature", signBody(payload, webhookSecret))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	entry, ok := tracker.Get("pay_3_ghi")
	require.True(t, ok)
	assert.Equal(t, domain.PaymentCompleted, entry.Status,
		"a misconfigured biller must not block callbacks for its provider")
}
