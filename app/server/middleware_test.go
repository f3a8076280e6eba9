package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	log "github.com/go-pkgz/lgr"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{name: "host and port", remoteAddr: "192.168.1.1:54321", want: "192.168.1.1"},
		{name: "bare ip after realip", remoteAddr: "10.0.0.1", want: "10.0.0.1"},
		{name: "ipv6 with port", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "bare ipv6", remoteAddr: "[2001:db8::1]", want: "2001:db8::1"},
		{name: "bare ipv6 after realip", remoteAddr: "2001:db8::1", want: "2001:db8::1"},
		{name: "bare ipv6 longer form", remoteAddr: "2001:db8:0:1:1:1:1:1", want: "2001:db8:0:1:1:1:1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", http.NoBody)
			r.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestClientIP_DistinctV6Clients(t *testing.T) {
	// two bare ipv6 peers must map to two different rate-limit keys
	r1 := httptest.NewRequest("GET", "/", http.NoBody)
	r1.RemoteAddr = "2001:db8::1"
	r2 := httptest.NewRequest("GET", "/", http.NoBody)
	r2.RemoteAddr = "2001:db8::2"
	assert.NotEqual(t, clientIP(r1), clientIP(r2))
}

func TestLogger_CapturesStatus(t *testing.T) {
	handler := Logger(log.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/some/path", http.NoBody))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
