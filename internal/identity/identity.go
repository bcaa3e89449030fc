// Package identity provides anonymous per-device operator identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	OperatorCookieName = "gridassist_operator"
	TabHeaderName      = "X-Grid-Session-ID"
	TabQueryParam      = "session_id"
	DefaultTabID       = "default"
	operatorCookieTTL  = 30 * 24 * time.Hour
)

type contextKey int

const (
	operatorIDKey contextKey = iota
	tabIDKey
)

var (
	operatorIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	tabIDPattern      = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// OperatorIDFromContext extracts the operator ID from the request context.
func OperatorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorIDKey).(string); ok {
		return v
	}
	return ""
}

// TabIDFromContext extracts the browser tab ID from the request context.
func TabIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tabIDKey).(string); ok {
		return v
	}
	return DefaultTabID
}

// WithIdentity returns a context carrying operator and tab IDs.
func WithIdentity(ctx context.Context, operatorID, tabID string) context.Context {
	ctx = context.WithValue(ctx, operatorIDKey, operatorID)
	return context.WithValue(ctx, tabIDKey, sanitizeTabID(tabID))
}

func generateOperatorID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate operator id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidOperatorID(id string) bool {
	return operatorIDPattern.MatchString(id)
}

func sanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !tabIDPattern.MatchString(id) {
		return DefaultTabID
	}
	return id
}

func setOperatorCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OperatorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(operatorCookieTTL.Seconds()),
		Expires:  time.Now().Add(operatorCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// getOrCreateOperatorID reuses a valid cookie, refreshing its expiry, or mints a new ID.
func getOrCreateOperatorID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(OperatorCookieName); err == nil && isValidOperatorID(c.Value) {
		setOperatorCookie(w, c.Value, !isDev)
		return c.Value, nil
	}

	id, err := generateOperatorID()
	if err != nil {
		return "", err
	}
	setOperatorCookie(w, id, !isDev)
	return id, nil
}

func tabIDFromRequest(r *http.Request) string {
	tab := r.Header.Get(TabHeaderName)
	if tab == "" {
		tab = r.URL.Query().Get(TabQueryParam)
	}
	return sanitizeTabID(tab)
}

// Middleware injects the anonymous operator identity and per-request tab ID.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operatorID, err := getOrCreateOperatorID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish operator identity"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithIdentity(r.Context(), operatorID, tabIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
