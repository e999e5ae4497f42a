package domain

// Provider identifies the external payment platform a biller is configured
// for. The set is closed: the gateway factory switches exhaustively over it
// and rejects anything else.
type Provider string

const (
	ProviderPaymentus Provider = "paymentus"
	ProviderStripe    Provider = "stripe"
	ProviderNone      Provider = "none"
)

func (p Provider) IsValid() bool {
	switch p {
	case ProviderPaymentus, ProviderStripe, ProviderNone:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodACH          PaymentMethod = "ACH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodACH, MethodCard, MethodBankTransfer:
		return true
	}
	return false
}

// Credentials holds the per-biller provider secrets. Which fields are
// required depends on the provider; the factory validates presence at
// gateway construction time, not at lookup time.
type Credentials struct {
	APIKey        string `json:"apiKey,omitempty"`
	BillerCode    string `json:"billerCode,omitempty"`
	StripeAccount string `json:"stripeAccount,omitempty"`
}

// Biller is the payment configuration for one billing entity.
type Biller struct {
	BillerID         string          `json:"billerId"`
	Name             string          `json:"name"`
	Provider         Provider        `json:"provider"`
	Credentials      Credentials     `json:"-"`
	SupportedMethods []PaymentMethod `json:"supportedMethods"`
	IsActive         bool            `json:"isActive"`
}

// Supports reports whether the biller accepts the given payment method.
func (b Biller) Supports(method PaymentMethod) bool {
	for _, m := range b.SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}
