package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billpay/internal/config"
	"github.com/billhaven/billpay/internal/domain"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		PaymentusBaseURL:       baseURL,
		PaymentusWebhookSecret: "paymentus-webhook-secret",
		StripeBaseURL:          baseURL,
		StripeSecretKey:        "sk_test_123",
		StripeWebhookSecret:    "stripe-webhook-secret",
		ProviderTimeout:        2 * time.Second,
	}
}

func paymentusBiller(id, code string) domain.Biller {
	return domain.Biller{
		BillerID:         id,
		Name:             "Biller " + id,
		Provider:         domain.ProviderPaymentus,
		Credentials:      domain.Credentials{APIKey: "key", BillerCode: code},
		SupportedMethods: []domain.PaymentMethod{domain.MethodACH, domain.MethodCard},
		IsActive:         true,
	}
}

func TestFactory_CachesPerBiller(t *testing.T) {
	f := NewFactory(testConfig("http://provider.local"), nil)

	biller := paymentusBiller("UTIL123", "ACME_WATER_001")

	first, err := f.Gateway(biller)
	require.NoError(t, err)
	second, err := f.Gateway(biller)
	require.NoError(t, err)

	assert.Same(t, first, second, "repeated resolution must reuse the cached instance")
}

func TestFactory_ConcurrentFirstResolutionYieldsOneInstance(t *testing.T) {
	f := NewFactory(testConfig("http://provider.local"), nil)
	biller := paymentusBiller("UTIL123", "ACME_WATER_001")

	const n = 16
	results := make([]Gateway, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.Gateway(biller)
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Len(t, f.CachedKeys(), 1)
}

func TestFactory_SameProviderDifferentBillersDoNotShare(t *testing.T) {
	f := NewFactory(testConfig("http://provider.local"), nil)

	a, err := f.Gateway(paymentusBiller("UTIL123", "ACME_WATER_001"))
	require.NoError(t, err)
	b, err := f.Gateway(paymentusBiller("ELEC001", "POWER_GRID_001"))
	require.NoError(t, err)

	assert.NotSame(t, a, b, "adapters are bound to a biller code and must not be shared")
}

func TestFactory_ClearCacheConstructsFresh(t *testing.T) {
	f := NewFactory(testConfig("http://provider.local"), nil)
	biller := paymentusBiller("UTIL123", "ACME_WATER_001")

	before, err := f.Gateway(biller)
	require.NoError(t, err)

	f.ClearCache()
	assert.Empty(t, f.CachedKeys())

	after, err := f.Gateway(biller)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
}

func TestFactory_MissingCredentials(t *testing.T) {
	tests := []struct {
		name      string
		biller    domain.Biller
		cfg       *config.Config
		wantField string
	}{
		{
			name: "paymentus without api key",
			biller: domain.Biller{
				BillerID:    "UTIL123",
				Provider:    domain.ProviderPaymentus,
				Credentials: domain.Credentials{BillerCode: "ACME_WATER_001"},
			},
			cfg:       testConfig("http://provider.local"),
			wantField: "apiKey",
		},
		{
			name: "paymentus without biller code",
			biller: domain.Biller{
				BillerID:    "UTIL123",
				Provider:    domain.ProviderPaymentus,
				Credentials: domain.Credentials{APIKey: "key"},
			},
			cfg:       testConfig("http://provider.local"),
			wantField: "billerCode",
		},
		{
			name: "stripe without account",
			biller: domain.Biller{
				BillerID: "INS456",
				Provider: domain.ProviderStripe,
			},
			cfg:       testConfig("http://provider.local"),
			wantField: "stripeAccount",
		},
		{
			name: "stripe without secret key",
			biller: domain.Biller{
				BillerID:    "INS456",
				Provider:    domain.ProviderStripe,
				Credentials: domain.Credentials{StripeAccount: "acct_1"},
			},
			cfg: &config.Config{StripeBaseURL: "http://provider.local"},
			wantField: "secretKey",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFactory(tc.cfg, nil)

			_, err := f.Gateway(tc.biller)
			require.Error(t, err)

			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.wantField, cfgErr.Field)
			assert.Empty(t, f.CachedKeys(), "a half-initialized adapter must never be cached")
		})
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	f := NewFactory(testConfig("http://provider.local"), nil)

	_, err := f.Gateway(domain.Biller{BillerID: "X1", Provider: "adyen"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)
}

func TestFactory_NoneProvider(t *testing.T) {
	f := NewFactory(testConfig("http://provider.local"), nil)

	gw, err := f.Gateway(domain.Biller{BillerID: "GOV789", Provider: domain.ProviderNone, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "none", gw.Name())
	assert.Equal(t, []string{"none_GOV789"}, f.CachedKeys())
}

func TestNoPayment_AlwaysRefuses(t *testing.T) {
	gw := NewNoPayment()
	ctx := context.Background()

	_, err := gw.CreatePayment(ctx, domain.PaymentRequest{BillerID: "GOV789"})
	require.ErrorIs(t, err, domain.ErrNotSupported)
	assert.Contains(t, err.Error(), "GOV789")

	_, err = gw.PaymentStatus(ctx, "pay_123")
	assert.ErrorIs(t, err, domain.ErrNotSupported)

	ok, err := gw.ValidateBiller(ctx, domain.Biller{Provider: domain.ProviderNone}, "ACCT-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, gw.SupportedMethods())
}
