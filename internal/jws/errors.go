package jws

import (
	"errors"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
)

// Kind clasifica las fallas de firma. Es lo único que se loguea de una falla:
// nunca el payload.
type Kind string

const (
	KindKeyUnavailable       Kind = "KEY_UNAVAILABLE"
	KindUnsupportedAlgorithm Kind = "UNSUPPORTED_ALGORITHM"
	KindSerializationFailure Kind = "SERIALIZATION_FAILURE"
	KindUnknown              Kind = "UNKNOWN"
)

var (
	// ErrKeyUnavailable: no hay clave activa o no se pudo obtener.
	ErrKeyUnavailable = errors.New("key_unavailable")
	// ErrUnsupportedAlgorithm: el algoritmo de la clave no es asimétrico o no
	// coincide con el material de la clave.
	ErrUnsupportedAlgorithm = errors.New("unsupported_algorithm")
	// ErrSerializationFailure: la entidad no tiene forma canónica.
	ErrSerializationFailure = canonical.ErrSerializationFailure
)

// KindOf mapea un error de firma a su Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrKeyUnavailable):
		return KindKeyUnavailable
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return KindUnsupportedAlgorithm
	case errors.Is(err, ErrSerializationFailure):
		return KindSerializationFailure
	}
	return KindUnknown
}
