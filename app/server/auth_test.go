package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_SessionTokens(t *testing.T) {
	s := &Server{cfg: Config{AuthHash: "$2a$10$somehash", SessionTTL: time.Hour}}

	token := s.generateSessionToken()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.True(t, s.validateSessionToken(token))
}

func TestServer_SessionTokenRejected(t *testing.T) {
	s := &Server{cfg: Config{AuthHash: "$2a$10$somehash", SessionTTL: time.Hour}}
	token := s.generateSessionToken()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "nope"},
		{name: "two parts", token: "aaa.bbb"},
		{name: "tampered id", token: "x" + token},
		{name: "tampered signature", token: token[:len(token)-2] + "xx"},
		{name: "bad base64 signature", token: strings.Join(strings.Split(token, ".")[:2], ".") + ".!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, s.validateSessionToken(tt.token))
		})
	}
}

func TestServer_SessionTokenFromOtherSecretRejected(t *testing.T) {
	s1 := &Server{cfg: Config{AuthHash: "hash-one", SessionTTL: time.Hour}}
	s2 := &Server{cfg: Config{AuthHash: "hash-two", SessionTTL: time.Hour}}

	token := s1.generateSessionToken()
	assert.True(t, s1.validateSessionToken(token))
	assert.False(t, s2.validateSessionToken(token))
}

func TestServer_SessionTokenExpires(t *testing.T) {
	s := &Server{cfg: Config{AuthHash: "somehash", SessionTTL: -time.Minute}}
	token := s.generateSessionToken()
	assert.False(t, s.validateSessionToken(token), "negative ttl means already expired")
}

func TestServer_CSRFTokenBoundToSession(t *testing.T) {
	s := &Server{cfg: Config{AuthHash: "somehash", SessionTTL: time.Hour}}

	t1, t2 := s.generateSessionToken(), s.generateSessionToken()
	assert.Equal(t, s.csrfToken(t1), s.csrfToken(t1), "deterministic per session")
	assert.NotEqual(t, s.csrfToken(t1), s.csrfToken(t2), "differs across sessions")
}
