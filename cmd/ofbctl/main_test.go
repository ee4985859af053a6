package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/ofbmock/internal/config"
	"github.com/dropDatabas3/ofbmock/internal/http/server"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCanonicalize(t *testing.T) {
	out, err := run(t, `{ "purchaseDate": "2023-01-01", "amount": 1000.00, "productType": "CDB", "investmentId": "INV1" }`, "canonicalize")
	require.NoError(t, err)
	require.Equal(t, `{"amount":1000,"investmentId":"INV1","productType":"CDB","purchaseDate":"2023-01-01"}`+"\n", out)

	_, err = run(t, `{"a":`, "canonicalize")
	require.Error(t, err)
}

func TestSignEphemeralAndVerify(t *testing.T) {
	dir := t.TempDir()
	jwksPath := filepath.Join(dir, "jwks.json")

	token, err := run(t, `{"b":2,"a":1}`, "sign", "--alg", "ES256", "--jwks-out", jwksPath)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(strings.TrimSpace(token), "."))

	payload, err := run(t, token, "verify", "--jwks", jwksPath)
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2}`+"\n", payload)

	// firma alterada
	tampered := strings.TrimSpace(token)
	tampered = tampered[:len(tampered)-4] + "AAAA"
	_, err = run(t, tampered, "verify", "--jwks", jwksPath)
	require.Error(t, err)
}

func TestFileStoreFlow(t *testing.T) {
	dir := t.TempDir()
	keysDir := filepath.Join(dir, "keys")

	out, err := run(t, "", "keys", "rotate", "--dir", keysDir, "--alg", "EdDSA", "--kid", "k1")
	require.NoError(t, err)
	require.Contains(t, out, "kid=k1")

	out, err = run(t, "", "keys", "list", "--dir", keysDir)
	require.NoError(t, err)
	require.Contains(t, out, "k1")
	require.Contains(t, out, "EdDSA")

	jwks, err := run(t, "", "jwks", "--dir", keysDir)
	require.NoError(t, err)
	jwksPath := filepath.Join(dir, "jwks.json")
	require.NoError(t, os.WriteFile(jwksPath, []byte(jwks), 0o600))

	token, err := run(t, `{"x":"y"}`, "sign", "--dir", keysDir)
	require.NoError(t, err)
	payload, err := run(t, token, "verify", "--jwks", jwksPath)
	require.NoError(t, err)
	require.Equal(t, `{"x":"y"}`+"\n", payload)
}

func TestGetVerifiesSignedResponse(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Keys.Source = "memory"
	cfg.JWS.Algorithm = "ES384"
	app, err := server.Build(context.Background(), cfg, zap.NewNop(), server.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer app.Close()
	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	out, err := run(t, "", "get", srv.URL+"/api/investments/INV1", "--jwks", srv.URL+"/oauth2/jwks")
	require.NoError(t, err)
	require.Contains(t, out, "signed=true")
	require.Contains(t, out, `"investmentId":"INV1"`)

	out, err = run(t, "", "get", srv.URL+"/api/customers/00000000000", "--jwks", srv.URL+"/oauth2/jwks")
	require.NoError(t, err)
	require.Contains(t, out, "status=404 signed=false")
}
