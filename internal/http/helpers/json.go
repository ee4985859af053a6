// Package helpers tiene utilidades compartidas por los handlers HTTP.
package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
	"github.com/dropDatabas3/ofbmock/internal/http/errors"
	"github.com/dropDatabas3/ofbmock/internal/observability/logger"
)

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteEntity entrega una entidad de dominio: la registra para el interceptor
// JWS y escribe su forma canónica como cuerpo JSON. Así el cuerpo sin firmar y
// el payload firmado tienen los mismos bytes.
func WriteEntity(w http.ResponseWriter, r *http.Request, status int, v any) {
	SetEntity(r.Context(), v)

	body, err := canonical.Canonicalize(v)
	if err != nil {
		logger.From(r.Context()).Warn("entity has no canonical form, falling back to encoding/json", logger.Err(err))
		body, err = json.Marshal(v)
		if err != nil {
			logger.From(r.Context()).Error("entity serialization failed", logger.Err(err))
			errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.From(r.Context()).Debug("write response body", logger.Err(err))
	}
}
