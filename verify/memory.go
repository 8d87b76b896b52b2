package verify

import (
	"context"
	"strings"
	"sync"

	"github.com/lempira/comprobante/phash"
	"github.com/lempira/comprobante/risk"
)

// MemoryHashIndex is an in-process HashIndex for tests and single-node
// hosts. Production deployments back the interface with their payment store.
type MemoryHashIndex struct {
	mu     sync.RWMutex
	hashes map[string]phash.Hash
}

// NewMemoryHashIndex returns an empty index.
func NewMemoryHashIndex() *MemoryHashIndex {
	return &MemoryHashIndex{hashes: make(map[string]phash.Hash)}
}

// Add records the receipt hash persisted for a payment.
func (x *MemoryHashIndex) Add(paymentID string, h phash.Hash) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.hashes[paymentID] = h
}

// FindNear returns the closest stored hash within maxDistance, skipping the
// payment under review.
func (x *MemoryHashIndex) FindNear(ctx context.Context, h phash.Hash, maxDistance int, excludePaymentID string) (PriorMatch, bool, error) {
	if err := ctx.Err(); err != nil {
		return PriorMatch{}, false, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	best := PriorMatch{Distance: maxDistance + 1}
	for id, stored := range x.hashes {
		if id == excludePaymentID {
			continue
		}
		if d := h.Distance(stored); d < best.Distance {
			best = PriorMatch{PaymentID: id, Distance: d}
		}
	}
	if best.PaymentID == "" {
		return PriorMatch{}, false, nil
	}
	return best, true, nil
}

// MemoryHistory is an in-process PaymentHistory for tests and single-node
// hosts.
type MemoryHistory struct {
	mu       sync.RWMutex
	payments map[string][]risk.PastPayment
	refs     map[string]string
}

// NewMemoryHistory returns an empty history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		payments: make(map[string][]risk.PastPayment),
		refs:     make(map[string]string),
	}
}

// Add appends a payment to a submitter's record.
func (h *MemoryHistory) Add(submitterID string, p risk.PastPayment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payments[submitterID] = append(h.payments[submitterID], p)
}

// ClaimReference records that a payment used a transfer reference.
func (h *MemoryHistory) ClaimReference(paymentID, reference string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs[strings.ToLower(reference)] = paymentID
}

// ForSubmitter returns a copy of the submitter's payment record.
func (h *MemoryHistory) ForSubmitter(ctx context.Context, submitterID string) ([]risk.PastPayment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	past := h.payments[submitterID]
	out := make([]risk.PastPayment, len(past))
	copy(out, past)
	return out, nil
}

// ReferenceInUse reports whether another payment already claimed the
// reference. Matching is case-insensitive.
func (h *MemoryHistory) ReferenceInUse(ctx context.Context, reference, excludePaymentID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	owner, ok := h.refs[strings.ToLower(reference)]
	return ok && owner != excludePaymentID, nil
}
