// Package auth guards the API with HMAC-signed tokens sent in the x-auth-token header.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-erp/httpx"
)

type ctxKey string

const (
	// HeaderName carries the token on every API request.
	HeaderName   = "x-auth-token"
	userIDCtxKey = ctxKey("userID")

	DefaultTTL    = 14 * 24 * time.Hour
	defaultSecret = "devsessionsecret"
)

// UserVerifier is an optional callback to validate that a token's user is still allowed.
type UserVerifier func(ctx context.Context, uid uint) bool

// Authenticator issues and checks tokens of the form "<uid>.<unix expiry>.<signature>".
type Authenticator struct {
	secret   []byte
	disabled bool
	TTL      time.Duration
	Verify   UserVerifier
	Now      func() time.Time
}

// New returns an Authenticator signing with secret. An empty secret falls back to a
// development value. disabled lets every request through, for local development.
func New(secret string, disabled bool) *Authenticator {
	if secret == "" {
		secret = defaultSecret
	}
	return &Authenticator{secret: []byte(secret), disabled: disabled, TTL: DefaultTTL, Now: time.Now}
}

func (a *Authenticator) Disabled() bool { return a.disabled }

func (a *Authenticator) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue returns a signed token for userID valid for TTL.
func (a *Authenticator) Issue(userID uint) string {
	exp := a.Now().Add(a.TTL).Unix()
	payload := strconv.FormatUint(uint64(userID), 10) + "." + strconv.FormatInt(exp, 10)
	return payload + "." + a.sign(payload)
}

// Parse validates token and returns its user id.
func (a *Authenticator) Parse(token string) (uint, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, false
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(a.sign(payload))) {
		return 0, false
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || a.Now().Unix() >= exp {
		return 0, false
	}
	id64, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok
}

// Middleware attaches the token's user id to the request context if present.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := a.Parse(r.Header.Get(HeaderName)); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless Middleware found a valid token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.disabled {
			next.ServeHTTP(w, r)
			return
		}
		uid, ok := UserIDFromContext(r.Context())
		if !ok || (a.Verify != nil && !a.Verify(r.Context(), uid)) {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized", "missing or invalid "+HeaderName, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Protect is Middleware followed by RequireAuth.
func (a *Authenticator) Protect(next http.Handler) http.Handler {
	return a.Middleware(a.RequireAuth(next))
}
