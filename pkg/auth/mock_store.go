package auth

import "sync"

// MockStore is an in-memory credential store for testing
type MockStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	failAll  bool
}

// NewMockStore creates a new in-memory credential store
func NewMockStore() *MockStore {
	return &MockStore{profiles: make(map[string]*Profile)}
}

// SetUnavailable makes all operations fail with ErrStoreUnavailable
func (m *MockStore) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = unavailable
}

// Store saves credentials in memory
func (m *MockStore) Store(profile *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return ErrStoreUnavailable
	}
	cp := *profile
	m.profiles[profile.Name] = &cp
	return nil
}

// Retrieve gets credentials from memory
func (m *MockStore) Retrieve(name string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAll {
		return nil, ErrStoreUnavailable
	}
	profile, ok := m.profiles[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	cp := *profile
	return &cp, nil
}

// List returns all profiles held in memory
func (m *MockStore) List() ([]*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAll {
		return nil, ErrStoreUnavailable
	}
	var result []*Profile
	for _, profile := range m.profiles {
		cp := *profile
		result = append(result, &cp)
	}
	return result, nil
}

// Delete removes credentials from memory
func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return ErrStoreUnavailable
	}
	if _, ok := m.profiles[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.profiles, name)
	return nil
}

// Exists checks if credentials exist in memory
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[name]
	return ok
}
