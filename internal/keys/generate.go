package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate crea una clave para alg válida en [notBefore, notBefore+validity).
// validity <= 0 deja la clave sin vencimiento. kid vacío genera uno.
func Generate(alg, kid string, notBefore time.Time, validity time.Duration) (*SigningKey, error) {
	priv, err := newPrivateKey(alg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(kid) == "" {
		kid = "jws-" + uuid.NewString()
	}
	k := &SigningKey{
		KID:        kid,
		Algorithm:  alg,
		PrivateKey: priv,
		NotBefore:  notBefore.UTC(),
	}
	if validity > 0 {
		k.NotAfter = k.NotBefore.Add(validity)
	}
	return k, nil
}

func newPrivateKey(alg string) (crypto.Signer, error) {
	switch alg {
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
		return rsa.GenerateKey(rand.Reader, 2048)
	case "ES256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ES512":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case "EdDSA":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	}
	return nil, fmt.Errorf("keys: cannot generate key for alg %q", alg)
}

// EnsureBootstrap genera y registra una clave si el store no tiene ninguna activa.
// Si el kid pedido ya existe (p.ej. una clave vencida), se le agrega un sufijo
// con la fecha. created=false cuando ya había una clave activa.
func EnsureBootstrap(ctx context.Context, s Store, alg, kid string, validity time.Duration) (k *SigningKey, created bool, err error) {
	k, err = s.ActiveKey(ctx)
	if err == nil {
		return k, false, nil
	}
	if !errors.Is(err, ErrNoActiveKey) {
		return nil, false, err
	}

	now := time.Now().UTC()
	if strings.TrimSpace(kid) == "" {
		kid = "boot-" + now.Format("20060102T150405Z")
	}
	k, err = Generate(alg, kid, now, validity)
	if err != nil {
		return nil, false, err
	}
	if err = s.Insert(ctx, k); errors.Is(err, ErrKeyExists) {
		k.KID = kid + "-" + now.Format("20060102T150405Z")
		err = s.Insert(ctx, k)
	}
	if err != nil {
		return nil, false, err
	}
	return k, true, nil
}
