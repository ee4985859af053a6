package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/ofbmock/internal/jws"
	"github.com/dropDatabas3/ofbmock/internal/keys"
)

// loadJWKS lee el JWKS de una URL http(s) o de un archivo.
func (c *cli) loadJWKS(ctx context.Context, src string) (keys.JWKS, error) {
	var set keys.JWKS
	var raw []byte
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return set, err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return set, fmt.Errorf("jwks: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return set, fmt.Errorf("jwks: status=%d", resp.StatusCode)
		}
		if raw, err = io.ReadAll(resp.Body); err != nil {
			return set, err
		}
	} else {
		var err error
		if raw, err = os.ReadFile(src); err != nil {
			return set, err
		}
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		return set, fmt.Errorf("jwks: %w", err)
	}
	return set, nil
}

// verifyCompact valida la firma con la clave del kid y devuelve el payload.
func verifyCompact(compact string, set keys.JWKS) ([]byte, error) {
	env, err := jws.ParseCompact(compact)
	if err != nil {
		return nil, err
	}
	jwk, ok := set.Find(env.Header.Kid)
	if !ok {
		return nil, fmt.Errorf("kid %q not in JWKS", env.Header.Kid)
	}
	if jwk.Alg != "" && jwk.Alg != env.Header.Alg {
		return nil, fmt.Errorf("alg mismatch: header %s, jwk %s", env.Header.Alg, jwk.Alg)
	}
	method := jwtv5.GetSigningMethod(env.Header.Alg)
	if method == nil || strings.HasPrefix(env.Header.Alg, "HS") {
		return nil, fmt.Errorf("unsupported alg %q", env.Header.Alg)
	}
	pub, err := keys.ParsePublicJWK(jwk)
	if err != nil {
		return nil, err
	}
	if err := method.Verify(env.SigningInput(), env.Signature, pub); err != nil {
		return nil, fmt.Errorf("signature invalid: %w", err)
	}
	return env.Payload, nil
}

func isSigned(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.EqualFold(mt, jws.MediaType)
}
