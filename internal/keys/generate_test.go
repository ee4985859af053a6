package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerate_KeyTypes(t *testing.T) {
	cases := map[string]func(any) bool{
		"PS256": func(k any) bool { _, ok := k.(*rsa.PrivateKey); return ok },
		"RS256": func(k any) bool { _, ok := k.(*rsa.PrivateKey); return ok },
		"ES256": func(k any) bool { p, ok := k.(*ecdsa.PrivateKey); return ok && p.Curve.Params().BitSize == 256 },
		"ES384": func(k any) bool { p, ok := k.(*ecdsa.PrivateKey); return ok && p.Curve.Params().BitSize == 384 },
		"EdDSA": func(k any) bool { _, ok := k.(ed25519.PrivateKey); return ok },
	}
	for alg, check := range cases {
		k, err := Generate(alg, "", t0, time.Hour)
		require.NoError(t, err, alg)
		require.True(t, check(k.PrivateKey), alg)
		require.True(t, strings.HasPrefix(k.KID, "jws-"), k.KID)
		require.Equal(t, t0.Add(time.Hour), k.NotAfter)
	}

	_, err := Generate("HS256", "x", t0, 0)
	require.Error(t, err)
}

func TestPrivateKeyPEM_RoundTrip(t *testing.T) {
	for _, alg := range []string{"PS256", "ES512", "EdDSA"} {
		k, err := Generate(alg, "k", t0, 0)
		require.NoError(t, err)
		pemStr, err := EncodePrivateKeyPEM(k.PrivateKey)
		require.NoError(t, err)
		require.Contains(t, pemStr, "BEGIN PRIVATE KEY")

		back, err := DecodePrivateKeyPEM(pemStr)
		require.NoError(t, err)
		require.Equal(t, k.PrivateKey.Public(), back.Public(), alg)
	}

	_, err := DecodePrivateKeyPEM("garbage")
	require.Error(t, err)
}

func TestEnsureBootstrap(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	k, created, err := EnsureBootstrap(ctx, m, "ES256", "dev-key", 0)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "dev-key", k.KID)

	again, created, err := EnsureBootstrap(ctx, m, "ES256", "dev-key", 0)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "dev-key", again.KID)
}

func TestEnsureBootstrap_RenamesWhenKIDTaken(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-2 * time.Hour)
	old, err := Generate("EdDSA", "dev-key", past, time.Hour)
	require.NoError(t, err)
	m := NewMemoryStore(*old)

	k, created, err := EnsureBootstrap(ctx, m, "EdDSA", "dev-key", 0)
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, strings.HasPrefix(k.KID, "dev-key-"), k.KID)
}
