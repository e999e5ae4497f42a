package handler

import (
	"io"
	"net/http"

	"github.com/billhaven/billpay/internal/directory"
	"github.com/billhaven/billpay/internal/domain"
	"github.com/billhaven/billpay/internal/gateway"
	"github.com/billhaven/billpay/internal/logging"
)

const signatureHeader = "X-Signature"

// WebhookHandler receives asynchronous provider callbacks. Providers deliver
// at least once and retry on non-2xx, so the endpoint acknowledges receipt
// unconditionally; processing failures are logged, never propagated.
type WebhookHandler struct {
	dir      *directory.Directory
	gateways *gateway.Factory
}

func NewWebhookHandler(dir *directory.Directory, gateways *gateway.Factory) *WebhookHandler {
	return &WebhookHandler{dir: dir, gateways: gateways}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	name := r.PathValue("gateway")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "gateway", name, "error", err)
		RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.dispatch(r, name, body); err != nil {
		log.Warn("webhook processing failed", "gateway", name, "error", err)
	} else {
		log.Info("webhook received", "gateway", name, "bytes", len(body))
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// dispatch routes the callback to an adapter of the named provider. The
// signature secret is provider-level, so any configured instance of that
// provider can verify and apply the event.
func (h *WebhookHandler) dispatch(r *http.Request, name string, body []byte) error {
	provider := domain.Provider(name)
	if !provider.IsValid() || provider == domain.ProviderNone {
		return domain.ErrUnsupportedProvider
	}

	var lastErr error
	for _, biller := range h.dir.List() {
		if biller.Provider != provider {
			continue
		}
		gw, err := h.gateways.Gateway(biller)
		if err != nil {
			// A misconfigured biller cannot verify the event; another
			// instance of the same provider still can.
			lastErr = err
			continue
		}
		return gw.HandleWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	}

	if lastErr != nil {
		return lastErr
	}
	return domain.ErrBillerNotFound
}
