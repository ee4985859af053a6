// Package jws produce JWS compactos sobre payloads canónicos con la clave activa
// del Key Provider. No verifica firmas ni administra claves.
package jws

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
	"github.com/dropDatabas3/ofbmock/internal/keys"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// HeaderType es el "typ" del protected header.
const HeaderType = "JOSE"

// Signer firma payloads. Es seguro para uso concurrente: no guarda estado por
// request y no cachea firmas.
type Signer struct {
	keys keys.Provider

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

func NewSigner(p keys.Provider) *Signer {
	return &Signer{keys: p, Now: time.Now}
}

func (s *Signer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// SignEntity canonicaliza entity y firma el resultado.
func (s *Signer) SignEntity(ctx context.Context, entity any) (*Envelope, error) {
	payload, err := canonical.Canonicalize(entity)
	if err != nil {
		return nil, err
	}
	return s.Sign(ctx, payload)
}

// Sign firma payload con la clave activa y devuelve el envelope.
// Las fallas son terminales: no hay reintentos.
func (s *Signer) Sign(ctx context.Context, payload []byte) (*Envelope, error) {
	key, err := s.activeKey(ctx)
	if err != nil {
		return nil, err
	}
	method, err := methodFor(key)
	if err != nil {
		return nil, err
	}

	h := Header{Alg: key.Algorithm, Kid: key.KID, Typ: HeaderType}
	hb, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrSerializationFailure, err)
	}
	input := encodeSegment(hb) + "." + encodeSegment(payload)

	sig, err := method.Sign(input, key.PrivateKey)
	if err != nil {
		if errors.Is(err, jwtv5.ErrInvalidKey) || errors.Is(err, jwtv5.ErrInvalidKeyType) {
			return nil, fmt.Errorf("%w: %s with key %s: %v", ErrUnsupportedAlgorithm, key.Algorithm, key.KID, err)
		}
		return nil, fmt.Errorf("jws: sign with %s: %w", key.KID, err)
	}

	return &Envelope{
		Header:       h,
		Payload:      append([]byte(nil), payload...),
		Signature:    sig,
		signingInput: input,
	}, nil
}

func (s *Signer) activeKey(ctx context.Context) (*keys.SigningKey, error) {
	if s.keys == nil {
		return nil, fmt.Errorf("%w: no key provider configured", ErrKeyUnavailable)
	}
	key, err := s.keys.ActiveKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if key == nil || !key.ActiveAt(s.now()) {
		return nil, fmt.Errorf("%w: provider returned no key valid now", ErrKeyUnavailable)
	}
	return key, nil
}

// methodFor resuelve el algoritmo declarado por la clave en el registro de
// golang-jwt. Solo algoritmos asimétricos y solo si el material coincide.
func methodFor(key *keys.SigningKey) (jwtv5.SigningMethod, error) {
	m := jwtv5.GetSigningMethod(key.Algorithm)
	if m == nil {
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrUnsupportedAlgorithm, key.Algorithm)
	}
	if !keyMatches(m, key.PrivateKey) {
		return nil, fmt.Errorf("%w: %s cannot be used with %T", ErrUnsupportedAlgorithm, key.Algorithm, key.PrivateKey)
	}
	return m, nil
}

func keyMatches(m jwtv5.SigningMethod, priv crypto.Signer) bool {
	switch mm := m.(type) {
	case *jwtv5.SigningMethodRSA, *jwtv5.SigningMethodRSAPSS:
		_, ok := priv.(*rsa.PrivateKey)
		return ok
	case *jwtv5.SigningMethodECDSA:
		ec, ok := priv.(*ecdsa.PrivateKey)
		return ok && ec.Curve.Params().BitSize == mm.CurveBits
	case *jwtv5.SigningMethodEd25519:
		_, ok := priv.(ed25519.PrivateKey)
		return ok
	}
	// HS*, "none" y métodos registrados por terceros
	return false
}
