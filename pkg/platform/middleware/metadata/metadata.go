// Package metadata records where a request came from so access logs and the
// ownership audit trail can name its origin.
package metadata

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// maxUserAgent bounds what is copied into audit payloads.
const maxUserAgent = 256

// Client describes the caller as seen at the edge.
type Client struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

// Middleware stores the caller's Client in the context. Apply it early in the chain.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), ClientFromRequest(r))))
	})
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// FromContext returns the zero Client when the middleware did not run.
func FromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

func ClientFromRequest(r *http.Request) Client {
	ua := r.Header.Get("User-Agent")
	if len(ua) > maxUserAgent {
		ua = ua[:maxUserAgent]
	}
	return Client{IP: clientIP(r), UserAgent: ua}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address. Header values that are not addresses are skipped.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := parseAddr(first); ok {
			return ip
		}
	}
	if ip, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseAddr(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
