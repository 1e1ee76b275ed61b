// Package jwks verifies asymmetrically signed Supabase Auth tokens against the
// project's published JSON Web Key Set.
package jwks

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTTL          = time.Hour
	defaultFetchTimeout = 10 * time.Second
)

var ErrUnknownKey = errors.New("jwks: unknown key id")

type keySet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// KeySet caches public keys by kid and refreshes them when stale or when an
// unknown kid shows up.
type KeySet struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration

	mu      sync.RWMutex
	keys    map[string]any
	fetched time.Time
}

// SupabaseURL returns the JWKS endpoint of a Supabase project.
func SupabaseURL(projectURL string) string {
	return strings.TrimRight(projectURL, "/") + "/auth/v1/.well-known/jwks.json"
}

func NewKeySet(url string, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &KeySet{url: url, httpClient: client, ttl: defaultTTL, keys: make(map[string]any)}
}

// Keyfunc resolves the verification key for token. It plugs into
// jwt.ParseWithClaims.
func (k *KeySet) Keyfunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
	defer cancel()
	return k.Key(ctx, kid)
}

// Key returns the public key for kid, refreshing once on a miss.
func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	if err := k.ensureKeys(ctx); err != nil {
		return nil, err
	}
	if key, ok := k.keyFor(kid); ok {
		return key, nil
	}
	if err := k.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := k.keyFor(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}

func (k *KeySet) ensureKeys(ctx context.Context) error {
	k.mu.RLock()
	fresh := time.Since(k.fetched) < k.ttl && len(k.keys) > 0
	k.mu.RUnlock()
	if fresh {
		return nil
	}
	return k.refresh(ctx)
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("jwks: build request: %w", err)
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jwks: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks: fetch status %d", resp.StatusCode)
	}
	var set keySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("jwks: decode: %w", err)
	}
	keys := make(map[string]any, len(set.Keys))
	for _, key := range set.Keys {
		pub, err := publicKey(key)
		if err != nil {
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks: no usable keys")
	}
	k.mu.Lock()
	k.keys = keys
	k.fetched = time.Now()
	k.mu.Unlock()
	return nil
}

func (k *KeySet) keyFor(kid string) (any, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[kid]
	return key, ok
}

func publicKey(j jwk) (any, error) {
	switch j.Kty {
	case "RSA":
		return rsaKey(j)
	case "EC":
		return ecKey(j)
	default:
		return nil, fmt.Errorf("jwks: unsupported key type %q", j.Kty)
	}
}

func rsaKey(j jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("jwks: invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

func ecKey(j jwk) (*ecdsa.PublicKey, error) {
	if j.Crv != "P-256" {
		return nil, fmt.Errorf("jwks: unsupported curve %q", j.Crv)
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, err
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(j.Y)
	if err != nil {
		return nil, err
	}
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("jwks: point not on curve")
	}
	return pub, nil
}
