package directory

import (
	"github.com/billhaven/billpay/internal/config"
	"github.com/billhaven/billpay/internal/domain"
)

// DefaultBillers is the seed registry used until billers come from a real
// backing store. Provider API keys are drawn from the service configuration.
func DefaultBillers(cfg *config.Config) []domain.Biller {
	return []domain.Biller{
		{
			BillerID: "UTIL123",
			Name:     "Acme Water Co.",
			Provider: domain.ProviderPaymentus,
			Credentials: domain.Credentials{
				APIKey:     cfg.PaymentusAPIKey,
				BillerCode: "ACME_WATER_001",
			},
			SupportedMethods: []domain.PaymentMethod{domain.MethodACH, domain.MethodCard},
			IsActive:         true,
		},
		{
			BillerID: "INS456",
			Name:     "Best Health Insurance",
			Provider: domain.ProviderStripe,
			Credentials: domain.Credentials{
				StripeAccount: "acct_best_health",
			},
			SupportedMethods: []domain.PaymentMethod{domain.MethodCard},
			IsActive:         true,
		},
		{
			BillerID:         "GOV789",
			Name:             "City Tax Department",
			Provider:         domain.ProviderNone,
			SupportedMethods: nil,
			IsActive:         true,
		},
		{
			BillerID: "ELEC001",
			Name:     "Power Grid Electric",
			Provider: domain.ProviderPaymentus,
			Credentials: domain.Credentials{
				APIKey:     cfg.PaymentusAPIKey,
				BillerCode: "POWER_GRID_001",
			},
			SupportedMethods: []domain.PaymentMethod{domain.MethodACH, domain.MethodCard, domain.MethodBankTransfer},
			IsActive:         true,
		},
		{
			BillerID: "GAS002",
			Name:     "Natural Gas Co.",
			Provider: domain.ProviderStripe,
			Credentials: domain.Credentials{
				StripeAccount: "acct_natural_gas",
			},
			SupportedMethods: []domain.PaymentMethod{domain.MethodCard, domain.MethodBankTransfer},
			IsActive:         true,
		},
	}
}
