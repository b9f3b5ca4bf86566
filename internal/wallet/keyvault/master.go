package keyvault

import "sync"

// masterKey keeps the unlocked vault key in memory, thread-safe
type masterKey struct {
	mu  sync.RWMutex
	key []byte
}

func (m *masterKey) set(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	zero(m.key)
	m.key = make([]byte, len(key))
	copy(m.key, key)
}

func (m *masterKey) isSet() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.key != nil
}

// with runs fn with the key under the read lock
func (m *masterKey) with(fn func(key []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.key == nil {
		return ErrLocked
	}

	return fn(m.key)
}

func (m *masterKey) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	zero(m.key)
	m.key = nil
}
