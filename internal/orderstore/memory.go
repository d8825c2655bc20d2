package orderstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store. It is the test double and
// the local-development backend; production deployments wire an adapter to
// the real order service instead.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

// Put inserts or replaces an order record.
func (s *MemoryStore) Put(order *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	s.orders[order.ID] = &cp
}

// GetOrder pulls full order detail for an internal order ID.
func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// FindByProviderOrderID resolves the internal order linked to a vendor order.
func (s *MemoryStore) FindByProviderOrderID(_ context.Context, providerOrderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.Fulfillment.ProviderOrderID == providerOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrProviderOrderNotLinked
}

// LinkProviderOrder writes the provider linkage onto the order record.
func (s *MemoryStore) LinkProviderOrder(_ context.Context, orderID, providerName, providerOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Fulfillment.ProviderName = providerName
	o.Fulfillment.ProviderOrderID = providerOrderID
	o.Fulfillment.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyStatus sets fulfillment status and tracking under the write lock,
// which gives the atomic read-modify-write the Store contract requires.
func (s *MemoryStore) ApplyStatus(_ context.Context, orderID string, status Status, tracking *Tracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Fulfillment.Status = status
	if tracking != nil {
		o.Fulfillment.TrackingNumber = tracking.Number
		o.Fulfillment.TrackingURL = tracking.URL
	}
	o.Fulfillment.UpdatedAt = time.Now().UTC()
	return nil
}
