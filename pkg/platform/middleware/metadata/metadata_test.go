package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain takes first hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remoteAddr: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "garbage forwarded hop falls through", headers: map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "198.51.100.4"}, remoteAddr: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "real ip header", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remoteAddr: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "ipv4 remote addr", remoteAddr: "127.0.0.1:5555", want: "127.0.0.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:5555", want: "::1"},
		{name: "no port", remoteAddr: "127.0.0.1", want: "127.0.0.1"},
		{name: "nothing", remoteAddr: "", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientFromRequest(r).IP)
		})
	}
}

func TestUserAgentIsBounded(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", strings.Repeat("x", 1000))
	assert.Len(t, ClientFromRequest(r).UserAgent, maxUserAgent)
}

func TestMiddleware(t *testing.T) {
	var got Client
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:80"
	r.Header.Set("User-Agent", "mediactl/1.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, Client{IP: "192.0.2.1", UserAgent: "mediactl/1.0"}, got)
	assert.Equal(t, Client{}, FromContext(context.Background()))
}
