package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// JWK es la parte pública de una clave de firma (RFC 7517).
type JWK struct {
	KID string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC / OKP
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS es el documento publicado en /oauth2/jwks.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// PublicJWK arma el JWK público de k.
func PublicJWK(k SigningKey) (JWK, error) {
	if k.PrivateKey == nil {
		return JWK{}, fmt.Errorf("keys: %s has no key material", k.KID)
	}
	jwk := JWK{KID: k.KID, Alg: k.Algorithm, Use: "sig"}
	switch pub := k.PrivateKey.Public().(type) {
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = b64(pub.N.Bytes())
		jwk.E = b64(big.NewInt(int64(pub.E)).Bytes())
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		jwk.Kty = "EC"
		jwk.Crv = pub.Curve.Params().Name
		jwk.X = b64(pub.X.FillBytes(make([]byte, size)))
		jwk.Y = b64(pub.Y.FillBytes(make([]byte, size)))
	case ed25519.PublicKey:
		jwk.Kty = "OKP"
		jwk.Crv = "Ed25519"
		jwk.X = b64(pub)
	default:
		return JWK{}, fmt.Errorf("keys: unsupported public key %T", pub)
	}
	return jwk, nil
}

// BuildJWKS publica todas las claves; las que no se pueden exportar se saltean.
func BuildJWKS(list []SigningKey) JWKS {
	out := JWKS{Keys: make([]JWK, 0, len(list))}
	for _, k := range list {
		jwk, err := PublicJWK(k)
		if err != nil {
			continue
		}
		out.Keys = append(out.Keys, jwk)
	}
	return out
}

// PublicKey devuelve la clave pública de k (verificación en tests y ofbctl).
func PublicKey(k *SigningKey) crypto.PublicKey {
	if k == nil || k.PrivateKey == nil {
		return nil
	}
	return k.PrivateKey.Public()
}

// Find devuelve el JWK con ese kid.
func (s JWKS) Find(kid string) (JWK, bool) {
	for _, k := range s.Keys {
		if k.KID == kid {
			return k, true
		}
	}
	return JWK{}, false
}

// ParsePublicJWK reconstruye la clave pública de un JWK publicado.
func ParsePublicJWK(j JWK) (crypto.PublicKey, error) {
	dec := func(name, v string) ([]byte, error) {
		b, err := base64.RawURLEncoding.DecodeString(v)
		if err != nil || len(b) == 0 {
			return nil, fmt.Errorf("keys: jwk %s: invalid %s", j.KID, name)
		}
		return b, nil
	}
	switch j.Kty {
	case "RSA":
		n, err := dec("n", j.N)
		if err != nil {
			return nil, err
		}
		e, err := dec("e", j.E)
		if err != nil {
			return nil, err
		}
		exp := new(big.Int).SetBytes(e)
		if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
			return nil, fmt.Errorf("keys: jwk %s: exponent out of range", j.KID)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
	case "EC":
		var curve elliptic.Curve
		switch j.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("keys: jwk %s: unsupported curve %q", j.KID, j.Crv)
		}
		x, err := dec("x", j.X)
		if err != nil {
			return nil, err
		}
		y, err := dec("y", j.Y)
		if err != nil {
			return nil, err
		}
		pub := &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}
		if !curve.IsOnCurve(pub.X, pub.Y) {
			return nil, fmt.Errorf("keys: jwk %s: point is not on %s", j.KID, j.Crv)
		}
		return pub, nil
	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, fmt.Errorf("keys: jwk %s: unsupported curve %q", j.KID, j.Crv)
		}
		x, err := dec("x", j.X)
		if err != nil {
			return nil, err
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("keys: jwk %s: bad Ed25519 key size", j.KID)
		}
		return ed25519.PublicKey(x), nil
	}
	return nil, fmt.Errorf("keys: jwk %s: unsupported kty %q", j.KID, j.Kty)
}
