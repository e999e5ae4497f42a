package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBillerNotFound      = errors.New("biller not found")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	ErrNotSupported        = errors.New("payment not supported")
)

// ConfigError reports a missing or malformed provider credential, detected
// when a gateway is constructed. It is fatal for the request but never
// silently defaulted.
type ConfigError struct {
	Provider Provider
	Field    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing %s credential: %s", e.Provider, e.Field)
}

// ProviderError wraps a failed call to a downstream payment or auth
// provider. The raw cause is kept for logs; handlers surface only a generic
// message to the client.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
