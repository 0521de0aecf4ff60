package store

import (
	"context"
	"sort"
	"sync"

	"assura/internal/client/models"
	id "assura/pkg/domain"
	"assura/pkg/platform/sentinel"
)

// InMemory is a map-backed client store for tests and local wiring. It
// satisfies the policy service's ClientDirectory port.
type InMemory struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*models.Client
}

func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[id.ClientID]*models.Client)}
}

func (s *InMemory) Create(_ context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok || c.TenantID != tenantID || c.DeletedAt != nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Exists reports whether the client is visible inside the tenant scope.
func (s *InMemory) Exists(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (bool, error) {
	_, err := s.FindByID(ctx, tenantID, clientID)
	if err == sentinel.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Client
	for _, c := range s.clients {
		if c.TenantID == tenantID && c.DeletedAt == nil {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}
