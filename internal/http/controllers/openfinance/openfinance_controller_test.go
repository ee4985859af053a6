package openfinance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ofbmock/internal/http/helpers"
	"github.com/dropDatabas3/ofbmock/internal/mockdata"
)

var today = time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)

func newMux() http.Handler {
	c := NewController(mockdata.MustLoad())
	c.Now = func() time.Time { return today }
	r := chi.NewRouter()
	r.Get("/api/customers/{cpf}", c.GetCustomer)
	r.Get("/api/customers/{cpf}/investments", c.ListCustomerInvestments)
	r.Get("/api/investments/{investmentId}", c.GetInvestment)
	r.Get("/api/transactions/{cpf}", c.ListTransactions)
	r.Get("/api/portfolios", c.ListPortfolios)
	r.Get("/ob/customers/identification", c.GetPersonalIdentification)
	r.Get("/ob/{family}/investments", c.ListInvestments)
	r.Get("/ob/{family}/investments/{investmentId}", c.GetCustomerInvestment)
	r.Get("/ob/{family}/investments/{investmentId}/balances", c.GetInvestmentBalance)
	r.Get("/ob/{family}/investments/{investmentId}/transactions", c.ListInvestmentTransactions)
	r.Get("/ob/{family}/investments/{investmentId}/transactions-current", c.ListCurrentTransactions)
	return r
}

func do(t *testing.T, h http.Handler, path string, hdr http.Header) (*httptest.ResponseRecorder, any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	ctx, slot := helpers.WithEntitySlot(context.Background())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	entity, _ := slot.Get()
	return rec, entity
}

func TestAPI_EntitiesAreHandedToSlot(t *testing.T) {
	h := newMux()

	rec, entity := do(t, h, "/api/investments/INV1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inv, ok := entity.(mockdata.Investment)
	require.True(t, ok, "entity %T", entity)
	assert.Equal(t, "INV1", inv.InvestmentID)
	// el cuerpo sin firmar ya es la forma canónica
	assert.Equal(t, `{"amount":1000,"investmentId":"INV1","productType":"CDB","purchaseDate":"2023-01-01"}`, rec.Body.String())

	rec, entity = do(t, h, "/api/customers/12345678901", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.IsType(t, mockdata.Customer{}, entity)

	rec, entity = do(t, h, "/api/portfolios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.IsType(t, map[string][]mockdata.Investment{}, entity)

	rec, _ = do(t, h, "/api/transactions/98765432100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 5)
}

func TestAPI_NotFoundLeavesSlotEmpty(t *testing.T) {
	h := newMux()
	for _, p := range []string{"/api/customers/1", "/api/customers/1/investments", "/api/investments/X", "/api/transactions/1"} {
		rec, entity := do(t, h, p, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.Nil(t, entity, p)
		assert.Contains(t, rec.Body.String(), `"NOT_FOUND"`, p)
	}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{"sub": sub}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestCustomerCPF(t *testing.T) {
	cases := []struct {
		name string
		hdr  http.Header
		want string
	}{
		{"bearer", http.Header{"Authorization": {"Bearer " + token(t, "12345678901")}}, "12345678901"},
		{"lowercase scheme", http.Header{"Authorization": {"bearer " + token(t, "12345678901")}}, "12345678901"},
		{"bearer wins over header", http.Header{"Authorization": {"Bearer " + token(t, "1")}, HeaderCustomerCPF: {"2"}}, "1"},
		{"garbage token falls back", http.Header{"Authorization": {"Bearer not-a-jwt"}, HeaderCustomerCPF: {"2"}}, "2"},
		{"basic auth ignored", http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}, HeaderCustomerCPF: {"3"}}, "3"},
		{"nothing", http.Header{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.hdr {
				r.Header[http.CanonicalHeaderKey(k)] = v
			}
			assert.Equal(t, tc.want, customerCPF(r))
		})
	}
}

func TestOpenBanking(t *testing.T) {
	h := newMux()
	auth := http.Header{"Authorization": {"Bearer " + token(t, "98765432100")}}

	rec, _ := do(t, h, "/ob/bank-fixed-incomes/investments", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, "/ob/bank-fixed-incomes/investments", http.Header{"Authorization": {"Bearer " + token(t, "00000000000")}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// cada familia lista solo sus productos: INV3 (LCA), no INV4 ni CREDIT-1
	rec, entity := do(t, h, "/ob/bank-fixed-incomes/investments", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, entity)
	assert.JSONEq(t, `{"totalRecords":1,"totalPages":1}`, string(mustField(t, rec.Body.Bytes(), "meta")))
	assert.Contains(t, rec.Body.String(), `"investmentId":"INV3"`)

	rec, _ = do(t, h, "/ob/treasure-titles/investments/INV4", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"investmentId":"INV4"`)

	// existe, pero no en esta familia
	rec, _ = do(t, h, "/ob/bank-fixed-incomes/investments/INV4", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "/ob/bank-fixed-incomes/investments/INV1", auth)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, "/ob/bank-fixed-incomes/investments/NOPE/transactions", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "/ob/treasure-titles/investments/INV4/transactions", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalRecords":2,"totalPages":1}`, string(mustField(t, rec.Body.Bytes(), "meta")))
}

func TestOpenBanking_Balances(t *testing.T) {
	h := newMux()

	rec, entity := do(t, h, "/ob/credit-fixed-incomes/investments/CREDIT-1/balances", http.Header{HeaderCustomerCPF: {"98765432100"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, entity)
	assert.Equal(t, `{"data":{"grossAmount":{"amount":12987.65,"currency":"BRL"},`+
		`"incomeTaxProvision":{"amount":148.15,"currency":"BRL"},`+
		`"netAmount":{"amount":12839.5,"currency":"BRL"},"quantity":12,"referenceDate":"2025-03-20"}}`, rec.Body.String())

	rec, _ = do(t, h, "/ob/funds/investments/FUND-1/balances", http.Header{HeaderCustomerCPF: {"12345678901"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":{"grossAmount":{"amount":8612.4,"currency":"BRL"},`+
		`"incomeTaxProvision":{"amount":91.86,"currency":"BRL"},`+
		`"netAmount":{"amount":8520.54,"currency":"BRL"},`+
		`"quotaGrossPriceValue":{"amount":5.65200035,"currency":"BRL"},"quotaQuantity":1523.7791,`+
		`"referenceDate":"2025-03-20"}}`, rec.Body.String())

	// pérdida: sin provisión de IR
	rec, _ = do(t, h, "/ob/variable-incomes/investments/VAR-1/balances", http.Header{HeaderCustomerCPF: {"12345678901"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":{"grossAmount":{"amount":2980,"currency":"BRL"},`+
		`"incomeTaxProvision":{"amount":0,"currency":"BRL"},`+
		`"netAmount":{"amount":2980,"currency":"BRL"},"referenceDate":"2025-03-20"}}`, rec.Body.String())

	rec, _ = do(t, h, "/ob/funds/investments/FUND-1/balances", http.Header{HeaderCustomerCPF: {"98765432100"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOpenBanking_CurrentTransactions(t *testing.T) {
	h := newMux()
	hdr := http.Header{HeaderCustomerCPF: {"98765432100"}}

	// 2025-03-15 cae dentro de los 7 días previos a 2025-03-20; 2023-09-18 no
	rec, _ := do(t, h, "/ob/credit-fixed-incomes/investments/CREDIT-1/transactions-current", hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalRecords":1,"totalPages":1}`, string(mustField(t, rec.Body.Bytes(), "meta")))
	assert.Contains(t, rec.Body.String(), `"transactionId":"TX-CREDIT-1-2"`)

	rec, _ = do(t, h, "/ob/treasure-titles/investments/INV4/transactions-current", hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":[],"meta":{"totalPages":1,"totalRecords":0}}`, rec.Body.String())
}

func TestOpenBanking_PersonalIdentification(t *testing.T) {
	h := newMux()

	rec, entity := do(t, h, "/ob/customers/identification", http.Header{"Authorization": {"Bearer " + token(t, "12345678901")}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, entity)
	var body struct {
		Data mockdata.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "12345678901", body.Data.CPF)
	assert.Equal(t, "1985-04-12", body.Data.BirthDate.String())

	rec, _ = do(t, h, "/ob/customers/identification", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenBanking_EmptyPortfolioIsEmptyList(t *testing.T) {
	rec, _ := do(t, newMux(), "/ob/funds/investments", http.Header{HeaderCustomerCPF: {"11122233344"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":[],"meta":{"totalPages":1,"totalRecords":0}}`, rec.Body.String())
}

func mustField(t *testing.T, body []byte, name string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	f, ok := m[name]
	require.True(t, ok, "missing %s in %s", name, body)
	return f
}
