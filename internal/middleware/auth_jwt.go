package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of a Supabase access token the API relies on.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// KeyProvider resolves public keys for asymmetrically signed tokens.
type KeyProvider interface {
	Keyfunc(token *jwt.Token) (any, error)
}

// JWTOptions configures token verification. Secret verifies legacy HS256
// tokens; Keys, when set, verifies RS256 and ES256 tokens from the project's
// JWKS. Issuer and Audience are optional.
type JWTOptions struct {
	Secret   string
	Keys     KeyProvider
	Issuer   string
	Audience string
}

type userKey string

const (
	userIDKey userKey = "user_id"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// SignJWT issues an HS256 token. It exists for tests and local tooling; in
// production tokens come from Supabase Auth.
func SignJWT(secret string, claims TokenClaims) (string, error) {
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyJWT parses token and checks signature, expiry, subject and, when
// configured, issuer and audience.
func VerifyJWT(opts JWTOptions, token string) (*TokenClaims, error) {
	methods := []string{jwt.SigningMethodHS256.Alg()}
	if opts.Keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg())
	}
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return opts.Keys.Keyfunc(t)
		}
		if opts.Secret == "" {
			return nil, errors.New("hs256 tokens are not accepted")
		}
		return []byte(opts.Secret), nil
	}, parserOpts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// AuthJWT rejects requests without a valid bearer token and stores the
// token subject as the user ID.
func AuthJWT(opts JWTOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeUnauthorized(w, "missing authorization")
				return
			}
			claims, err := VerifyJWT(opts, token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), claims.Subject)))
		})
	}
}

func extractBearer(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"success":false,"kind":"Unauthorized","error":%q}`, detail)
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if strings.TrimSpace(userID) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}
