package keys

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const activeCacheKey = "active"

// CachedProvider cachea la clave activa por un TTL corto. Las cargas
// concurrentes contra el store se colapsan en una sola (singleflight).
// La clave cacheada se vuelve a validar contra el reloj antes de entregarla:
// un TTL largo nunca puede devolver una clave ya vencida.
type CachedProvider struct {
	next  Provider
	cache *gocache.Cache
	group singleflight.Group
	ttl   time.Duration

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// NewCachedProvider envuelve next. ttl <= 0 usa 30s.
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedProvider{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		Now:   time.Now,
	}
}

func (c *CachedProvider) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *CachedProvider) ActiveKey(ctx context.Context) (*SigningKey, error) {
	if k, ok := c.cached(); ok {
		return k, nil
	}

	v, err, _ := c.group.Do(activeCacheKey, func() (any, error) {
		if k, ok := c.cached(); ok {
			return k, nil
		}
		// la carga es compartida: no debe morir con la request del primer llamador
		k, err := c.next.ActiveKey(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		ttl := c.ttl
		if !k.NotAfter.IsZero() {
			if left := k.NotAfter.Sub(c.now()); left < ttl {
				ttl = left
			}
		}
		if ttl > 0 {
			c.cache.Set(activeCacheKey, k, ttl)
		}
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*SigningKey)
	return &cp, nil
}

func (c *CachedProvider) cached() (*SigningKey, bool) {
	v, ok := c.cache.Get(activeCacheKey)
	if !ok {
		return nil, false
	}
	k := v.(*SigningKey)
	if !k.ActiveAt(c.now()) {
		c.cache.Delete(activeCacheKey)
		return nil, false
	}
	cp := *k
	return &cp, true
}

// List delega al store si lo soporta; sin cache, el JWKS ya tiene el suyo.
func (c *CachedProvider) List(ctx context.Context) ([]SigningKey, error) {
	if l, ok := c.next.(Lister); ok {
		return l.List(ctx)
	}
	k, err := c.ActiveKey(ctx)
	if err != nil {
		return nil, err
	}
	return []SigningKey{*k}, nil
}

// Invalidate fuerza la próxima lectura al store (p.ej. después de rotar).
func (c *CachedProvider) Invalidate() {
	c.cache.Delete(activeCacheKey)
}
