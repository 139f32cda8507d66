package sandbox

import (
	"context"
	"sync"
)

type memStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	customers map[string]Customer
	payments  map[string]PaymentRecord
}

func NewMemoryStore() Store {
	return &memStore{
		sessions:  map[string]Session{},
		customers: map[string]Customer{},
		payments:  map[string]PaymentRecord{},
	}
}

func (m *memStore) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Key] = s
	return nil
}

func (m *memStore) Session(_ context.Context, key string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	return Session{}, ErrNotFound
}

func (m *memStore) SaveCustomer(_ context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *memStore) Customer(_ context.Context, id string) (Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.customers[id]; ok {
		return c, nil
	}
	return Customer{}, ErrNotFound
}

func (m *memStore) SavePayment(_ context.Context, p PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *memStore) Payment(_ context.Context, id string) (PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return PaymentRecord{}, ErrNotFound
}
