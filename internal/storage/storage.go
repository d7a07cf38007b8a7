package storage

import "sync"

// Persistent keys
const (
	KeyAccessToken = "access_token"
	KeyUserID      = "user_id"
	KeyUserRole    = "user_role"
)

// Session-scoped keys
const (
	KeyLastLoginAttempt = "last_login_attempt"
	KeyLoginVisitCount  = "login_visit_count"
	KeyLastLoginVisit   = "last_login_visit"
)

// Store is a string key/value store. Writes are last-write-wins.
type Store interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)

	// Set stores value under key
	Set(key, value string) error

	// Delete removes the given keys; missing keys are ignored
	Delete(keys ...string) error
}

// Memory is a process-lifetime Store, used for session-scoped values
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
