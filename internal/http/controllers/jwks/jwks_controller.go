// Package jwks publica las claves públicas de firma de respuestas.
package jwks

import (
	"net/http"

	httperrors "github.com/dropDatabas3/ofbmock/internal/http/errors"
	"github.com/dropDatabas3/ofbmock/internal/http/helpers"
	"github.com/dropDatabas3/ofbmock/internal/keys"
	"github.com/dropDatabas3/ofbmock/internal/observability/logger"
)

// Controller sirve el JWKS del Key Provider.
type Controller struct {
	keys keys.Lister
}

func NewController(l keys.Lister) *Controller {
	return &Controller{keys: l}
}

// Get maneja GET /oauth2/jwks y /.well-known/jwks.json.
// Solo publica claves no vencidas; el cuerpo nunca se firma.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Component("jwks"), logger.Op("Controller.Get"))

	list, err := c.keys.List(r.Context())
	if err != nil {
		log.Error("list signing keys", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}
	set := keys.BuildJWKS(list)
	log.Debug("jwks served", logger.Count(len(set.Keys)))

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, set)
}
