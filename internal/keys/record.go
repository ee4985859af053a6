package keys

import (
	"crypto"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

// record es el formato persistido de una clave (archivo JSON, hash de Redis).
// La clave privada va en PEM PKCS#8.
type record struct {
	KID           string    `json:"kid"`
	Algorithm     string    `json:"alg"`
	PrivateKeyPEM string    `json:"private_key_pem"`
	NotBefore     time.Time `json:"not_before"`
	NotAfter      time.Time `json:"not_after"`
}

func toRecord(k *SigningKey) (record, error) {
	pemStr, err := EncodePrivateKeyPEM(k.PrivateKey)
	if err != nil {
		return record{}, fmt.Errorf("keys: encode %s: %w", k.KID, err)
	}
	return record{
		KID:           k.KID,
		Algorithm:     k.Algorithm,
		PrivateKeyPEM: pemStr,
		NotBefore:     k.NotBefore.UTC(),
		NotAfter:      k.NotAfter.UTC(),
	}, nil
}

func (r record) signingKey() (SigningKey, error) {
	if strings.TrimSpace(r.KID) == "" || strings.TrimSpace(r.Algorithm) == "" {
		return SigningKey{}, errors.New("keys: record without kid/alg")
	}
	priv, err := DecodePrivateKeyPEM(r.PrivateKeyPEM)
	if err != nil {
		return SigningKey{}, fmt.Errorf("keys: decode %s: %w", r.KID, err)
	}
	return SigningKey{
		KID:        r.KID,
		Algorithm:  r.Algorithm,
		PrivateKey: priv,
		NotBefore:  r.NotBefore,
		NotAfter:   r.NotAfter,
	}, nil
}

func marshalRecord(k *SigningKey) ([]byte, error) {
	rec, err := toRecord(k)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(rec, "", "  ")
}

func unmarshalRecord(b []byte) (SigningKey, error) {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return SigningKey{}, fmt.Errorf("keys: invalid record: %w", err)
	}
	return rec.signingKey()
}

// EncodePrivateKeyPEM serializa RSA, ECDSA o Ed25519 como PEM PKCS#8.
func EncodePrivateKeyPEM(priv crypto.Signer) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// DecodePrivateKeyPEM parsea un PEM PKCS#8.
func DecodePrivateKeyPEM(s string) (crypto.Signer, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	signer, ok := k.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", k)
	}
	return signer, nil
}
