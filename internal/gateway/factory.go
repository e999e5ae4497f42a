package gateway

import (
	"fmt"
	"sort"
	"sync"

	"github.com/billhaven/billpay/internal/config"
	"github.com/billhaven/billpay/internal/domain"
)

// Factory resolves a biller to its gateway, constructing and caching one
// adapter instance per (provider, billerId) pair. Two billers on the same
// provider never share an instance because each adapter is bound to that
// biller's merchant code at construction.
type Factory struct {
	cfg  *config.Config
	sink StatusSink

	mu    sync.Mutex
	cache map[string]Gateway
}

func NewFactory(cfg *config.Config, sink StatusSink) *Factory {
	return &Factory{
		cfg:   cfg,
		sink:  sink,
		cache: make(map[string]Gateway),
	}
}

// Gateway returns the cached adapter for the biller, constructing it on
// first use. The check/construct/insert sequence runs under one lock so a
// concurrent first request cannot produce two divergent instances.
func (f *Factory) Gateway(biller domain.Biller) (Gateway, error) {
	key := cacheKey(biller)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gw, ok := f.cache[key]; ok {
		return gw, nil
	}

	gw, err := f.build(biller)
	if err != nil {
		return nil, err
	}

	f.cache[key] = gw
	return gw, nil
}

func (f *Factory) build(biller domain.Biller) (Gateway, error) {
	switch biller.Provider {
	case domain.ProviderPaymentus:
		return NewPaymentus(PaymentusConfig{
			APIKey:        biller.Credentials.APIKey,
			BillerCode:    biller.Credentials.BillerCode,
			BaseURL:       f.cfg.PaymentusBaseURL,
			WebhookSecret: f.cfg.PaymentusWebhookSecret,
			Timeout:       f.cfg.ProviderTimeout,
		}, f.sink)

	case domain.ProviderStripe:
		return NewStripe(StripeConfig{
			SecretKey:     f.cfg.StripeSecretKey,
			Account:       biller.Credentials.StripeAccount,
			BaseURL:       f.cfg.StripeBaseURL,
			WebhookSecret: f.cfg.StripeWebhookSecret,
			Timeout:       f.cfg.ProviderTimeout,
		}, f.sink)

	case domain.ProviderNone:
		return NewNoPayment(), nil

	default:
		return nil, fmt.Errorf("provider %q: %w", biller.Provider, domain.ErrUnsupportedProvider)
	}
}

// ClearCache drops every cached adapter, forcing fresh construction (and
// credential re-validation) on the next request. Used on configuration
// reloads and in tests.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]Gateway)
}

// CachedKeys lists the cache keys currently held, for diagnostics.
func (f *Factory) CachedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.cache))
	for k := range f.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cacheKey(biller domain.Biller) string {
	return string(biller.Provider) + "_" + biller.BillerID
}
