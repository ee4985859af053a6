package middlewares

import (
	"net/http"
	"testing"
)

func TestPolicy_Default(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		method, path string
		want         bool
	}{
		{"GET", "/api/investments/INV1", true},
		{"GET", "api/investments/INV1", true},
		{"GET", "/api/customers/12345678901", true},
		{"POST", "/api/portfolios", true},
		{"GET", "/api", false},
		{"GET", "/apix/investments", false},
		{"GET", "/oauth2/jwks", false},
		{"POST", "/oauth2/token", false},
		{"GET", "/api/auth/login", false},
		{"GET", "/.well-known/openid-configuration", false},
		{"GET", "/healthz", false},
		{"GET", "", false},
		// no se puede escapar de la exclusión con segmentos relativos
		{"GET", "/api/../oauth2/jwks", false},
		{"GET", "//api/investments", true},
	}
	for _, c := range cases {
		if got := p.Matches(c.method, c.path); got != c.want {
			t.Fatalf("Matches(%s %q) = %v, want %v", c.method, c.path, got, c.want)
		}
	}
}

func TestNewPolicy_Config(t *testing.T) {
	p, err := NewPolicy(
		[]string{"/open-banking/", "api/"},
		nil,
		[]string{`^partners/[a-z]+/statements$`},
		[]string{"get"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Matches(http.MethodGet, "/open-banking/bank-fixed-incomes/v1/investments") {
		t.Fatal("extra prefix must be protected")
	}
	if !p.Matches(http.MethodGet, "/partners/acme/statements") {
		t.Fatal("pattern must be protected")
	}
	if p.Matches(http.MethodPost, "/api/portfolios") {
		t.Fatal("method filter must apply")
	}
	if p.Matches(http.MethodGet, "/oauth2/jwks") {
		t.Fatal("default exclusions must remain")
	}

	if _, err := NewPolicy(nil, nil, []string{"("}, nil); err == nil {
		t.Fatal("invalid regex must fail")
	}
}

func TestInterceptor_Eligible(t *testing.T) {
	i := NewInterceptor(nil)
	entity := map[string]any{"a": 1}
	ok := SigningContext{StatusCode: 200, RequestPath: "/api/investments/INV1", Method: "GET"}
	json := http.Header{"Content-Type": {"application/json"}}

	if !i.Eligible(ok, json, entity) {
		t.Fatal("expected eligible")
	}
	for _, status := range []int{201, 204, 301, 400, 404, 500} {
		sc := ok
		sc.StatusCode = status
		if i.Eligible(sc, json, entity) {
			t.Fatalf("status %d must not be eligible", status)
		}
	}
	if i.Eligible(ok, json, nil) {
		t.Fatal("absent entity must not be eligible")
	}
	var nilMap map[string]any
	if i.Eligible(ok, json, nilMap) {
		t.Fatal("nil map must count as absent")
	}
	signed := http.Header{"Content-Type": {"Application/JOSE; charset=utf-8"}}
	if i.Eligible(ok, signed, entity) {
		t.Fatal("already signed response must not be eligible")
	}
	sc := ok
	sc.RequestPath = "/oauth2/token"
	if i.Eligible(sc, json, entity) {
		t.Fatal("auth server path must not be eligible")
	}
}
