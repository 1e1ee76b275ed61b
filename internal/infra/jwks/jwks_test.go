package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func ecJWK(kid string, pub *ecdsa.PublicKey) map[string]string {
	return map[string]string{"kid": kid, "kty": "EC", "alg": "ES256", "crv": "P-256", "x": b64(pub.X.Bytes()), "y": b64(pub.Y.Bytes())}
}

func rsaJWK(kid string, pub *rsa.PublicKey) map[string]string {
	return map[string]string{"kid": kid, "kty": "RSA", "alg": "RS256", "n": b64(pub.N.Bytes()), "e": b64(big.NewInt(int64(pub.E)).Bytes())}
}

func serveKeys(t *testing.T, keys ...map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestKeySetVerifiesES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	srv, hits := serveKeys(t, ecJWK("ec-1", &priv.PublicKey))
	set := NewKeySet(srv.URL, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Subject:   "owner-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = "ec-1"
	raw, err := token.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		parsed, err := jwt.Parse(raw, set.Keyfunc, jwt.WithValidMethods([]string{"ES256"}))
		if err != nil || !parsed.Valid {
			t.Fatalf("parse: %v", err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("jwks fetched %d times, want 1", n)
	}
}

func TestKeySetRSAAndUnknownKid(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv, hits := serveKeys(t, rsaJWK("rsa-1", &priv.PublicKey), map[string]string{"kid": "odd", "kty": "OKP"})
	set := NewKeySet(srv.URL, nil)

	key, err := set.Key(t.Context(), "rsa-1")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if pub, ok := key.(*rsa.PublicKey); !ok || pub.E != priv.PublicKey.E || pub.N.Cmp(priv.PublicKey.N) != 0 {
		t.Fatalf("unexpected key %#v", key)
	}

	if _, err := set.Key(t.Context(), "missing"); err == nil {
		t.Fatalf("expected unknown kid error")
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Fatalf("jwks fetched %d times, want 2 (one refresh on miss)", n)
	}
}

func TestSupabaseURL(t *testing.T) {
	if got := SupabaseURL("https://abc.supabase.co/"); got != "https://abc.supabase.co/auth/v1/.well-known/jwks.json" {
		t.Fatalf("SupabaseURL = %q", got)
	}
}
