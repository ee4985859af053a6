package helpers

import (
	"context"
	"sync"
)

type entityKey struct{}

// EntitySlot lleva la entidad de respuesta del handler al interceptor JWS.
// Vive solo durante el request.
type EntitySlot struct {
	mu     sync.Mutex
	entity any
	set    bool
}

// Set guarda la entidad; la última escritura gana.
func (s *EntitySlot) Set(v any) {
	s.mu.Lock()
	s.entity, s.set = v, true
	s.mu.Unlock()
}

// Get devuelve la entidad y si fue seteada.
func (s *EntitySlot) Get() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entity, s.set
}

// WithEntitySlot instala un slot vacío en el contexto.
func WithEntitySlot(ctx context.Context) (context.Context, *EntitySlot) {
	slot := &EntitySlot{}
	return context.WithValue(ctx, entityKey{}, slot), slot
}

// SetEntity registra la entidad si hay un slot instalado; si no, es no-op.
func SetEntity(ctx context.Context, v any) bool {
	slot, ok := ctx.Value(entityKey{}).(*EntitySlot)
	if !ok {
		return false
	}
	slot.Set(v)
	return true
}
