package keys

import (
	"context"
	"sync"
	"time"
)

// MemoryStore guarda claves en memoria. Es el store por defecto en dev: el
// servidor genera una clave al arrancar y la pierde al reiniciar.
type MemoryStore struct {
	mu   sync.RWMutex
	list []SigningKey

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

func NewMemoryStore(initial ...SigningKey) *MemoryStore {
	return &MemoryStore{list: append([]SigningKey(nil), initial...), Now: time.Now}
}

func (m *MemoryStore) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *MemoryStore) ActiveKey(ctx context.Context) (*SigningKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return selectActive(m.list, m.now())
}

func (m *MemoryStore) List(ctx context.Context) ([]SigningKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return publishable(m.list, m.now()), nil
}

func (m *MemoryStore) Insert(ctx context.Context, k *SigningKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.list {
		if existing.KID == k.KID {
			return ErrKeyExists
		}
	}
	m.list = append(m.list, *k)
	return nil
}
