// Package track keeps a process-local index of transactions created during
// this process's lifetime, so status queries and webhook callbacks can be
// routed back to the owning gateway. It is not a ledger and nothing here
// survives a restart; durable settlement records belong to a downstream
// system.
package track

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billpay/internal/domain"
)

type Entry struct {
	TransactionID string
	BillerID      string
	Gateway       string
	Amount        decimal.Decimal
	Currency      string
	Status        domain.PaymentState
	UpdatedAt     time.Time
}

type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Record registers a freshly created transaction.
func (i *Index) Record(e Entry) {
	e.UpdatedAt = time.Now().UTC()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[e.TransactionID] = e
}

// SetStatus applies an out-of-band status transition, typically from a
// verified webhook. Unknown transaction ids are ignored: the sender may be
// replaying an event for a transaction created by a previous process.
func (i *Index) SetStatus(transactionID string, status domain.PaymentState) {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, ok := i.entries[transactionID]
	if !ok {
		return
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	i.entries[transactionID] = e
}

func (i *Index) Get(transactionID string) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[transactionID]
	return e, ok
}
