// Package router arma el árbol de rutas HTTP del servidor mock.
package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	healthctrl "github.com/dropDatabas3/ofbmock/internal/http/controllers/health"
	jwksctrl "github.com/dropDatabas3/ofbmock/internal/http/controllers/jwks"
	ofctrl "github.com/dropDatabas3/ofbmock/internal/http/controllers/openfinance"
	httperrors "github.com/dropDatabas3/ofbmock/internal/http/errors"
	mw "github.com/dropDatabas3/ofbmock/internal/http/middlewares"
	"github.com/dropDatabas3/ofbmock/internal/metrics"
	"github.com/dropDatabas3/ofbmock/internal/mockdata"
)

// Deps contiene lo que necesita el router.
type Deps struct {
	OpenFinance *ofctrl.Controller
	Health      *healthctrl.Controller
	JWKS        *jwksctrl.Controller

	// Interceptor firma las respuestas elegibles. nil = sin firma (solo tests).
	Interceptor *mw.Interceptor

	Logger *zap.Logger

	// Metrics se monta en /metrics si no es nil.
	Metrics http.Handler
}

// New devuelve el handler raíz. El interceptor JWS envuelve todas las rutas y
// la política decide cuáles se firman.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(d.Logger),
		mw.WithRecover(),
		metrics.WithHTTPMetrics,
		mw.WithSecurityHeaders(),
	)
	if d.Interceptor != nil {
		r.Use(mw.WithJWSSigning(d.Interceptor))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Get("/healthz", d.Health.Healthz)
			r.Get("/readyz", d.Health.Readyz)
		})
	}

	if d.JWKS != nil {
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Get("/oauth2/jwks", d.JWKS.Get)
			r.Get("/.well-known/jwks.json", d.JWKS.Get)
		})
	}

	if d.OpenFinance != nil {
		registerOpenFinance(r, d.OpenFinance)
	}

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	return r
}

func registerOpenFinance(r chi.Router, c *ofctrl.Controller) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/customers/{cpf}", c.GetCustomer)
		r.Get("/customers/{cpf}/investments", c.ListCustomerInvestments)
		r.Get("/investments/{investmentId}", c.GetInvestment)
		r.Get("/transactions/{cpf}", c.ListTransactions)
		r.Get("/portfolios", c.ListPortfolios)
	})

	r.Get("/open-banking/customers/v2/personal/identifications", c.GetPersonalIdentification)

	// {family} solo acepta las familias conocidas; otras rutas dan 404
	families := "{" + ofctrl.ParamFamily + ":(?:" + strings.Join(mockdata.Families(), "|") + ")}"
	r.Route("/open-banking/"+families+"/v1/investments", func(r chi.Router) {
		r.Get("/", c.ListInvestments)
		r.Get("/{investmentId}", c.GetCustomerInvestment)
		r.Get("/{investmentId}/balances", c.GetInvestmentBalance)
		r.Get("/{investmentId}/transactions", c.ListInvestmentTransactions)
		r.Get("/{investmentId}/transactions-current", c.ListCurrentTransactions)
	})
}
