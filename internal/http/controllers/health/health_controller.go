// Package health contiene el controller para health checks.
package health

import (
	"context"
	"errors"
	"net/http"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	httperrors "github.com/dropDatabas3/ofbmock/internal/http/errors"
	"github.com/dropDatabas3/ofbmock/internal/http/helpers"
	"github.com/dropDatabas3/ofbmock/internal/jws"
	"github.com/dropDatabas3/ofbmock/internal/keys"
	"github.com/dropDatabas3/ofbmock/internal/observability/logger"
)

var probePayload = []byte(`{"probe":"readyz"}`)

// Response es el cuerpo de /readyz.
type Response struct {
	Status      string `json:"status"`
	ActiveKeyID string `json:"activeKeyId,omitempty"`
	Algorithm   string `json:"alg,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Controller maneja /healthz y /readyz.
type Controller struct {
	keys    keys.Provider
	signer  *jws.Signer
	version string
}

func NewController(p keys.Provider, s *jws.Signer, version string) *Controller {
	return &Controller{keys: p, signer: s, version: version}
}

// Healthz maneja GET /healthz (liveness).
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, Response{Status: "ok", Version: c.version})
}

// Readyz maneja GET /readyz: firma un payload efímero con la clave activa y lo
// verifica con su clave pública.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Component("health"), logger.Op("Controller.Readyz"))

	key, err := c.selfCheck(ctx)
	if err != nil {
		kind := string(jws.KindOf(err))
		log.Warn("signing self-check failed", logger.ErrorKind(kind), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail(kind).WithCause(err))
		return
	}

	w.Header().Set("X-JWKS-KID", key.KID)
	helpers.WriteJSON(w, http.StatusOK, Response{
		Status:      "ready",
		ActiveKeyID: key.KID,
		Algorithm:   key.Algorithm,
		Version:     c.version,
	})
}

var errVerify = errors.New("self-check signature did not verify")

func (c *Controller) selfCheck(ctx context.Context) (*keys.SigningKey, error) {
	if c.keys == nil || c.signer == nil {
		return nil, jws.ErrKeyUnavailable
	}
	key, err := c.keys.ActiveKey(ctx)
	if err != nil {
		return nil, errors.Join(jws.ErrKeyUnavailable, err)
	}
	env, err := c.signer.Sign(ctx, probePayload)
	if err != nil {
		return nil, err
	}
	// rotación entre ActiveKey y Sign: la verificación sería con otra clave
	if env.Header.Kid != key.KID {
		return nil, errors.Join(jws.ErrKeyUnavailable, errors.New("active key changed during self-check"))
	}

	method := jwtv5.GetSigningMethod(env.Header.Alg)
	if method == nil {
		return nil, jws.ErrUnsupportedAlgorithm
	}
	if err := method.Verify(env.SigningInput(), env.Signature, keys.PublicKey(key)); err != nil {
		return nil, errors.Join(errVerify, err)
	}
	return key, nil
}
