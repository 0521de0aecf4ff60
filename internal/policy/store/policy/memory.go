package policy

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"assura/internal/policy/models"
	"assura/pkg/dateutil"
	id "assura/pkg/domain"
	"assura/pkg/platform/sentinel"
)

// InMemory is the development and unit-test policy store. A single RWMutex
// stands in for the row locks the Postgres store takes, which is enough to
// serialize transitions on one policy.
type InMemory struct {
	mu          sync.RWMutex
	policies    map[id.PolicyID]*models.Policy
	transitions []models.TransitionRecord
}

func NewInMemory() *InMemory {
	return &InMemory{policies: make(map[id.PolicyID]*models.Policy)}
}

func (s *InMemory) Create(_ context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.policies {
		if existing.TenantID == p.TenantID &&
			existing.DeletedAt == nil &&
			strings.EqualFold(existing.PolicyNumber, p.PolicyNumber) {
			return sentinel.ErrConflict
		}
	}
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *InMemory) find(tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error) {
	p, ok := s.policies[policyID]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(tenantID, policyID)
}

// FindByIDForUpdate has the same semantics as FindByID here; the memory store
// relies on its mutex rather than row locks.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error) {
	return s.FindByID(ctx, tenantID, policyID)
}

func (s *InMemory) Update(_ context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.policies[p.ID]
	if !ok || existing.TenantID != p.TenantID || existing.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *InMemory) SoftDelete(_ context.Context, tenantID id.TenantID, policyID id.PolicyID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	deleted := now
	p.DeletedAt = &deleted
	return nil
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Policy
	for _, p := range s.policies {
		if p.TenantID != tenantID || p.DeletedAt != nil {
			continue
		}
		if !filter.ClientID.IsNil() && p.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ProductCategory != "" && p.ProductCategory != filter.ProductCategory {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) RenewalsDue(_ context.Context, tenantID id.TenantID, now time.Time, daysAhead int) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := dateutil.AddDays(now, daysAhead)
	var out []*models.Policy
	for _, p := range s.policies {
		if p.TenantID != tenantID || p.DeletedAt != nil || p.ExpiryDate == nil {
			continue
		}
		if p.Status != models.StatusActive && p.Status != models.StatusReinstated {
			continue
		}
		if p.ExpiryDate.Before(now) || p.ExpiryDate.After(cutoff) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(*out[j].ExpiryDate) })
	return out, nil
}

func (s *InMemory) ClawbackWatchActive(_ context.Context, tenantID id.TenantID, now time.Time) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Policy
	for _, p := range s.policies {
		if p.TenantID != tenantID || p.DeletedAt != nil || p.ClawbackWatchUntil == nil {
			continue
		}
		if !p.ClawbackWatchUntil.After(now) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClawbackWatchUntil.Before(*out[j].ClawbackWatchUntil)
	})
	return out, nil
}

func (s *InMemory) AppendTransition(_ context.Context, rec models.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, rec)
	return nil
}

func (s *InMemory) Transitions(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TransitionRecord
	for _, rec := range s.transitions {
		if rec.TenantID == tenantID && rec.PolicyID == policyID {
			out = append(out, rec)
		}
	}
	return out, nil
}
