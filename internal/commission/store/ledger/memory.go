package ledger

import (
	"context"
	"sort"
	"sync"

	"assura/internal/commission/models"
	id "assura/pkg/domain"
	"assura/pkg/platform/sentinel"
)

type periodKey struct {
	policyID id.PolicyID
	period   string
}

// InMemory is the unit-test ledger. It enforces the same (policy, period)
// uniqueness the Postgres index does, so idempotency tests run identically
// against both stores.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.Entry
	periods map[periodKey]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{periods: make(map[periodKey]struct{})}
}

func (s *InMemory) Append(_ context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := periodKey{policyID: e.PolicyID, period: e.PeriodKey}
	if _, ok := s.periods[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.periods[key] = struct{}{}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *InMemory) ListByPolicy(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.PolicyID == policyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
