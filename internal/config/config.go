package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	PaymentusBaseURL       string `env:"PAYMENTUS_BASE_URL" envDefault:"https://api.paymentus.com/v1"`
	PaymentusAPIKey        string `env:"PAYMENTUS_API_KEY"`
	PaymentusPreSharedKey  string `env:"PAYMENTUS_PRE_SHARED_KEY,required"`
	PaymentusTLA           string `env:"PAYMENTUS_TLA" envDefault:"TLA"`
	PaymentusAuthBaseURL   string `env:"PAYMENTUS_AUTH_BASE_URL" envDefault:"https://secure1.paymentus.com"`
	PaymentusWebhookSecret string `env:"PAYMENTUS_WEBHOOK_SECRET,required"`

	StripeBaseURL       string `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com/v1"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	TokenTTL        time.Duration `env:"CHECKOUT_TOKEN_TTL" envDefault:"1h"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
