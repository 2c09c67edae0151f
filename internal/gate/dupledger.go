package gate

import (
	"context"
	"sync"
)

// DuplicateLedger records which fingerprints have already passed the gate.
// CheckAndReserve must be atomic: when two near-simultaneous runs carry the
// same fingerprint, exactly one reservation succeeds.
type DuplicateLedger interface {
	// CheckAndReserve returns true if the fingerprint was free and is now
	// reserved by this caller; false if it was already taken.
	CheckAndReserve(ctx context.Context, fingerprint string) (bool, error)
	// Release frees a reservation after a submission that did not go
	// through, so a later re-run of the document is not treated as a dupe.
	Release(ctx context.Context, fingerprint string) error
}

// MemLedger is the in-process DuplicateLedger for single-binary sessions.
type MemLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemLedger() *MemLedger {
	return &MemLedger{seen: make(map[string]struct{})}
}

func (m *MemLedger) CheckAndReserve(_ context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[fingerprint]; ok {
		return false, nil
	}
	m.seen[fingerprint] = struct{}{}
	return true, nil
}

func (m *MemLedger) Release(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, fingerprint)
	return nil
}
