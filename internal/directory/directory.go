package directory

import (
	"strings"
	"sync"

	"github.com/billhaven/billpay/internal/domain"
)

// SentinelBillerID is the reserved placeholder a caller may use to request
// "any active Paymentus biller" without knowing a concrete id. It is an
// explicit allow-list of one; no other unmatched id ever falls back.
const SentinelBillerID = "default-paymentus-biller"

// Directory is the single source of truth mapping biller ids to their
// payment configuration. It is an in-memory registry: billers are seeded at
// construction and mutated only through the administrative methods. Safe for
// concurrent use.
type Directory struct {
	mu      sync.RWMutex
	billers map[string]domain.Biller
	order   []string
}

func New(seed []domain.Biller) *Directory {
	d := &Directory{billers: make(map[string]domain.Biller)}
	for _, b := range seed {
		d.insert(b)
	}
	return d
}

func (d *Directory) insert(b domain.Biller) {
	if _, exists := d.billers[b.BillerID]; !exists {
		d.order = append(d.order, b.BillerID)
	}
	d.billers[b.BillerID] = b
}

// Lookup returns the active biller for the given id. An empty id or the
// reserved sentinel resolves to the first active Paymentus biller in
// insertion order; any other unmatched id is a hard not-found, never a
// silent substitute.
func (d *Directory) Lookup(billerID string) (domain.Biller, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if b, ok := d.billers[billerID]; ok && b.IsActive {
		return b, nil
	}

	if billerID == "" || billerID == SentinelBillerID {
		for _, id := range d.order {
			b := d.billers[id]
			if b.IsActive && b.Provider == domain.ProviderPaymentus {
				return b, nil
			}
		}
	}

	return domain.Biller{}, domain.ErrBillerNotFound
}

// List returns all active billers in insertion order.
func (d *Directory) List() []domain.Biller {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Biller, 0, len(d.order))
	for _, id := range d.order {
		if b := d.billers[id]; b.IsActive {
			out = append(out, b)
		}
	}
	return out
}

// Search returns active billers whose name or id contains the query,
// case-insensitively. Plain substring match, no scoring.
func (d *Directory) Search(query string) []domain.Biller {
	q := strings.ToLower(query)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.Biller
	for _, id := range d.order {
		b := d.billers[id]
		if !b.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(b.Name), q) || strings.Contains(strings.ToLower(b.BillerID), q) {
			out = append(out, b)
		}
	}
	return out
}

func (d *Directory) Add(b domain.Biller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.insert(b)
}

// Update describes a partial merge; nil fields are left untouched.
type Update struct {
	Name             *string
	Provider         *domain.Provider
	Credentials      *domain.Credentials
	SupportedMethods *[]domain.PaymentMethod
	IsActive         *bool
}

// Update merges the given fields into an existing record. Returns false
// (no-op) when the id is absent.
func (d *Directory) Update(billerID string, u Update) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.billers[billerID]
	if !ok {
		return false
	}

	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.Provider != nil {
		b.Provider = *u.Provider
	}
	if u.Credentials != nil {
		b.Credentials = *u.Credentials
	}
	if u.SupportedMethods != nil {
		b.SupportedMethods = *u.SupportedMethods
	}
	if u.IsActive != nil {
		b.IsActive = *u.IsActive
	}

	d.billers[billerID] = b
	return true
}

// Remove deletes a biller outright. Returns false when the id is absent.
func (d *Directory) Remove(billerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.billers[billerID]; !ok {
		return false
	}
	delete(d.billers, billerID)
	for i, id := range d.order {
		if id == billerID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}
