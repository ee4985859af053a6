// Package openfinance sirve los endpoints del mock de Open Finance a partir de
// los datos embebidos. Las entidades se entregan con helpers.WriteEntity para
// que el interceptor JWS las firme.
package openfinance

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
	dto "github.com/dropDatabas3/ofbmock/internal/http/dto/openfinance"
	httperrors "github.com/dropDatabas3/ofbmock/internal/http/errors"
	"github.com/dropDatabas3/ofbmock/internal/http/helpers"
	"github.com/dropDatabas3/ofbmock/internal/mockdata"
	"github.com/dropDatabas3/ofbmock/internal/observability/logger"
	"github.com/dropDatabas3/ofbmock/internal/util"
)

// ParamFamily es el parámetro de ruta con la familia de producto
// (bank-fixed-incomes, funds, ...).
const ParamFamily = "family"

// currentWindow es el período de /transactions-current.
const currentWindow = 7 * 24 * time.Hour

// Controller maneja las rutas /api y /open-banking.
type Controller struct {
	data *mockdata.Store

	// Now fija el reloj de saldos y movimientos recientes en tests.
	Now func() time.Time
}

func NewController(data *mockdata.Store) *Controller {
	return &Controller{data: data, Now: time.Now}
}

func (c *Controller) today() canonical.Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return canonical.DateOf(now().UTC())
}

// GetCustomer maneja GET /api/customers/{cpf}
func (c *Controller) GetCustomer(w http.ResponseWriter, r *http.Request) {
	cpf := chi.URLParam(r, "cpf")
	cust, ok := c.data.Customer(cpf)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("customer not found"))
		return
	}
	helpers.WriteEntity(w, r, http.StatusOK, cust)
}

// ListCustomerInvestments maneja GET /api/customers/{cpf}/investments
func (c *Controller) ListCustomerInvestments(w http.ResponseWriter, r *http.Request) {
	list, ok := c.data.Investments(chi.URLParam(r, "cpf"))
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("customer not found"))
		return
	}
	helpers.WriteEntity(w, r, http.StatusOK, list)
}

// GetInvestment maneja GET /api/investments/{investmentId}
func (c *Controller) GetInvestment(w http.ResponseWriter, r *http.Request) {
	inv, ok := c.data.Investment(chi.URLParam(r, "investmentId"))
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("investment not found"))
		return
	}
	helpers.WriteEntity(w, r, http.StatusOK, inv)
}

// ListTransactions maneja GET /api/transactions/{cpf}
func (c *Controller) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, ok := c.data.Transactions(chi.URLParam(r, "cpf"))
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("customer not found"))
		return
	}
	helpers.WriteEntity(w, r, http.StatusOK, txs)
}

// ListPortfolios maneja GET /api/portfolios: inversiones agrupadas por CPF.
func (c *Controller) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	helpers.WriteEntity(w, r, http.StatusOK, c.data.Portfolios())
}

// ---------------------------------------------------------------------------------
// /open-banking/customers/v2
// ---------------------------------------------------------------------------------

// GetPersonalIdentification maneja GET /open-banking/customers/v2/personal/identifications
func (c *Controller) GetPersonalIdentification(w http.ResponseWriter, r *http.Request) {
	cpf, ok := c.requireCustomer(w, r)
	if !ok {
		return
	}
	cust, _ := c.data.Customer(cpf)
	helpers.WriteEntity(w, r, http.StatusOK, dto.DataResponse{Data: cust})
}

// ---------------------------------------------------------------------------------
// /open-banking/{family}/v1
// ---------------------------------------------------------------------------------

// ListInvestments maneja GET .../v1/investments: inversiones de la familia
// de la ruta del cliente autenticado.
func (c *Controller) ListInvestments(w http.ResponseWriter, r *http.Request) {
	cpf, ok := c.requireCustomer(w, r)
	if !ok {
		return
	}
	list, _ := c.data.InvestmentsIn(cpf, chi.URLParam(r, ParamFamily))
	helpers.WriteEntity(w, r, http.StatusOK, dto.NewList(list))
}

// GetCustomerInvestment maneja GET .../v1/investments/{investmentId}
func (c *Controller) GetCustomerInvestment(w http.ResponseWriter, r *http.Request) {
	cpf, ok := c.requireCustomer(w, r)
	if !ok {
		return
	}
	inv, ok := c.ownedInvestment(w, r, cpf)
	if !ok {
		return
	}
	helpers.WriteEntity(w, r, http.StatusOK, dto.DataResponse{Data: inv})
}

// GetInvestmentBalance maneja GET .../v1/investments/{investmentId}/balances
func (c *Controller) GetInvestmentBalance(w http.ResponseWriter, r *http.Request) {
	cpf, ok := c.requireCustomer(w, r)
	if !ok {
		return
	}
	inv, ok := c.ownedInvestment(w, r, cpf)
	if !ok {
		return
	}
	bal, _ := c.data.Balance(inv.InvestmentID, c.today())
	helpers.WriteEntity(w, r, http.StatusOK, dto.DataResponse{Data: bal})
}

// ListInvestmentTransactions maneja GET .../v1/investments/{investmentId}/transactions
func (c *Controller) ListInvestmentTransactions(w http.ResponseWriter, r *http.Request) {
	cpf, ok := c.requireCustomer(w, r)
	if !ok {
		return
	}
	inv, ok := c.ownedInvestment(w, r, cpf)
	if !ok {
		return
	}
	helpers.WriteEntity(w, r, http.StatusOK, dto.NewList(c.data.InvestmentTransactions(cpf, inv.InvestmentID)))
}

// ListCurrentTransactions maneja GET .../v1/investments/{investmentId}/transactions-current:
// solo los movimientos de los últimos 7 días.
func (c *Controller) ListCurrentTransactions(w http.ResponseWriter, r *http.Request) {
	cpf, ok := c.requireCustomer(w, r)
	if !ok {
		return
	}
	inv, ok := c.ownedInvestment(w, r, cpf)
	if !ok {
		return
	}
	to := c.today()
	from := canonical.DateOf(time.Date(to.Year, to.Month, to.Day, 0, 0, 0, 0, time.UTC).Add(-currentWindow))
	helpers.WriteEntity(w, r, http.StatusOK, dto.NewList(c.data.TransactionsBetween(cpf, inv.InvestmentID, from, to)))
}

// requireCustomer resuelve el CPF del request; 401 si no hay o no existe.
func (c *Controller) requireCustomer(w http.ResponseWriter, r *http.Request) (string, bool) {
	cpf := customerCPF(r)
	if cpf == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return "", false
	}
	if _, ok := c.data.Customer(cpf); !ok {
		logger.From(r.Context()).Debug("token subject is not a known customer", logger.String("cpf", util.MaskCPF(cpf)))
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("unknown customer"))
		return "", false
	}
	return cpf, true
}

// ownedInvestment resuelve {investmentId}: 404 si no existe o es de otra
// familia que la de la ruta, 403 si es de otro cliente.
func (c *Controller) ownedInvestment(w http.ResponseWriter, r *http.Request, cpf string) (mockdata.Investment, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "investmentId"))
	inv, ok := c.data.Investment(id)
	if family := chi.URLParam(r, ParamFamily); ok && family != "" && mockdata.FamilyOf(inv.ProductType) != family {
		ok = false
	}
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("investment not found"))
		return mockdata.Investment{}, false
	}
	if owner, _ := c.data.Owner(id); owner != cpf {
		httperrors.WriteError(w, httperrors.ErrForbidden)
		return mockdata.Investment{}, false
	}
	return inv, true
}
