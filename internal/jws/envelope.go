package jws

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// MediaType es el Content-Type de una respuesta firmada.
const MediaType = "application/jose"

// Header es el protected header. Los campos se serializan en este orden.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// Envelope es un JWS compacto ya firmado.
type Envelope struct {
	Header    Header
	Payload   []byte // bytes canónicos firmados
	Signature []byte

	// signingInput es exactamente lo que se firmó: b64(header) "." b64(payload).
	signingInput string
}

func encodeSegment(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// Compact devuelve la serialización compacta b64url(header).b64url(payload).b64url(sig).
func (e *Envelope) Compact() string {
	return e.signingInput + "." + encodeSegment(e.Signature)
}

// SigningInput devuelve los bytes que cubre la firma.
func (e *Envelope) SigningInput() string { return e.signingInput }

// ParseCompact separa un JWS compacto sin verificar la firma.
func ParseCompact(s string) (*Envelope, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil, errors.New("jws: compact serialization must have 3 segments")
	}
	for _, p := range parts {
		if strings.ContainsAny(p, "=+/ \n") {
			return nil, errors.New("jws: segment is not unpadded base64url")
		}
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errors.New("jws: invalid header segment")
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return nil, errors.New("jws: invalid header JSON")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.New("jws: invalid payload segment")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errors.New("jws: invalid signature segment")
	}
	return &Envelope{
		Header:       h,
		Payload:      payload,
		Signature:    sig,
		signingInput: parts[0] + "." + parts[1],
	}, nil
}
