// Package gateway unifies the external payment providers behind one
// capability interface. Each adapter is initialized once per biller with
// that biller's credentials and is stateless afterwards; construction and
// caching are owned by the Factory.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/billhaven/billpay/internal/domain"
)

// Gateway is implemented by every provider adapter.
type Gateway interface {
	// CreatePayment initiates a payment. Asynchronous providers return a
	// pending response with a checkout URL; synchronous providers return
	// completed or failed directly.
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error)

	// PaymentStatus queries the provider for the current state of a
	// transaction previously created through this adapter.
	PaymentStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusInfo, error)

	// ValidateBiller reports whether this adapter instance is authorized to
	// take payments for the given biller and account. It guards against
	// routing biller X through an adapter configured with biller Y's
	// merchant code.
	ValidateBiller(ctx context.Context, biller domain.Biller, accountID string) (bool, error)

	// SupportedMethods is the adapter's static capability set, independent
	// of any biller. The biller's own method list is intersected against it
	// by the orchestration layer.
	SupportedMethods() []domain.PaymentMethod

	// HandleWebhook processes an asynchronous status callback. The payload
	// must not be trusted before the signature verifies.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	Name() string
}

// StatusSink receives out-of-band status transitions from webhook
// processing. The transaction index implements it.
type StatusSink interface {
	SetStatus(transactionID string, status domain.PaymentState)
}

// newTransactionID builds a provider-namespaced transaction id from a clock
// component and a random component, so collisions are negligible even across
// restarts.
func newTransactionID(prefix string) string {
	random := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), random)
}

// verifySignature checks a hex-encoded HMAC-SHA256 of the payload.
func verifySignature(payload []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
