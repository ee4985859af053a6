// Package keys es el Key Provider: entrega la clave de firma activa al servicio
// JWS. El core solo depende de Provider; generación, almacenamiento y rotación
// quedan del lado de cada store.
package keys

import (
	"context"
	"crypto"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNoActiveKey indica que ninguna clave cubre el instante actual.
	ErrNoActiveKey = errors.New("no_active_signing_key")
	// ErrKeyExists indica que el kid ya está registrado en el store.
	ErrKeyExists = errors.New("signing_key_exists")
)

// SigningKey es propiedad del store. Quien la recibe la trata como solo lectura:
// puede compartirse entre goroutines que firman en paralelo.
type SigningKey struct {
	KID        string
	Algorithm  string // "PS256", "ES256", "EdDSA", ...
	PrivateKey crypto.Signer
	NotBefore  time.Time
	NotAfter   time.Time // zero = sin vencimiento
}

// ActiveAt reporta si t cae en [NotBefore, NotAfter).
func (k *SigningKey) ActiveAt(t time.Time) bool {
	if k == nil || k.PrivateKey == nil {
		return false
	}
	if t.Before(k.NotBefore) {
		return false
	}
	return k.NotAfter.IsZero() || t.Before(k.NotAfter)
}

// Expired reporta si la clave ya no puede volver a estar activa.
func (k *SigningKey) Expired(t time.Time) bool {
	return !k.NotAfter.IsZero() && !t.Before(k.NotAfter)
}

// Provider es el único contrato que necesita el servicio de firma.
type Provider interface {
	// ActiveKey devuelve la clave activa o ErrNoActiveKey.
	ActiveKey(ctx context.Context) (*SigningKey, error)
}

// Lister expone las claves publicables (no vencidas) para el JWKS.
type Lister interface {
	List(ctx context.Context) ([]SigningKey, error)
}

// Writer registra claves nuevas (bootstrap de desarrollo).
type Writer interface {
	Insert(ctx context.Context, k *SigningKey) error
}

// Store agrupa lo que implementan los backends concretos.
type Store interface {
	Provider
	Lister
	Writer
}

// selectActive elige exactamente una clave activa en now: la de NotBefore más
// reciente; a igual NotBefore, el kid mayor.
func selectActive(list []SigningKey, now time.Time) (*SigningKey, error) {
	var act *SigningKey
	for i := range list {
		k := &list[i]
		if !k.ActiveAt(now) {
			continue
		}
		if act == nil || k.NotBefore.After(act.NotBefore) ||
			(k.NotBefore.Equal(act.NotBefore) && k.KID > act.KID) {
			act = k
		}
	}
	if act == nil {
		return nil, ErrNoActiveKey
	}
	cp := *act
	return &cp, nil
}

// publishable filtra claves vencidas y ordena por NotBefore desc.
func publishable(list []SigningKey, now time.Time) []SigningKey {
	out := make([]SigningKey, 0, len(list))
	for _, k := range list {
		if k.PrivateKey == nil || k.Expired(now) {
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NotBefore.Equal(out[j].NotBefore) {
			return out[i].NotBefore.After(out[j].NotBefore)
		}
		return out[i].KID > out[j].KID
	})
	return out
}
