package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	log "github.com/go-pkgz/lgr"
)

const (
	authCookieName = "sharebin_session"
	csrfCookieName = "sharebin_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// POST /login
// every attempt from an IP counts toward the limiter window, a denied attempt
// is not recorded and reports the wait in whole minutes
func (s *Server) loginCtrl(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if res := s.limiter.Check(ip); !res.Allowed {
		waitMinutes := int(math.Ceil(res.Wait.Seconds() / 60))
		log.Printf("[WARN] login rate limited for %s, wait %v", ip, res.Wait)
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, JSON{
			"success":      false,
			"error":        "too many login attempts, try again in " + strconv.Itoa(waitMinutes) + " minute(s)",
			"wait_minutes": waitMinutes,
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		sendErr(w, r, http.StatusBadRequest, "invalid form data")
		return
	}
	password := r.PostForm.Get("password")

	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AuthHash), []byte(password)); err != nil {
		sendErr(w, r, http.StatusForbidden, "invalid credentials")
		return
	}

	session := s.generateSessionToken()
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    session,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Protocol == "https",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
	})

	// csrf token is bound to the session id, readable by the client so it can
	// be sent back in the header on mutating calls
	csrf := s.csrfToken(session)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    csrf,
		Path:     "/",
		Secure:   s.cfg.Protocol == "https",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
	})

	render.JSON(w, r, JSON{"success": true, "data": JSON{"csrf_token": csrf}})
}

// GET /logout
func (s *Server) logoutCtrl(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{authCookieName, csrfCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == authCookieName,
			Secure:   s.cfg.Protocol == "https",
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// requireSession guards admin routes with a valid session cookie
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil || !s.validateSessionToken(cookie.Value) {
			sendErr(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCSRF guards mutating admin routes, the header token must match the
// one derived from the session cookie
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			sendErr(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		supplied := r.Header.Get(csrfHeaderName)
		expected := s.csrfToken(cookie.Value)
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
			sendErr(w, r, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// generateSessionToken creates a signed session token
// format: uuid.timestamp.signature
func (s *Server) generateSessionToken() string {
	tokenID := uuid.NewString()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	h := hmac.New(sha256.New, s.sessionSecret())
	h.Write([]byte(tokenID))
	h.Write([]byte(timestamp))
	signature := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return tokenID + "." + timestamp + "." + signature
}

// validateSessionToken checks the signature and the session TTL
func (s *Server) validateSessionToken(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	tokenID, timestamp, signatureB64 := parts[0], parts[1], parts[2]

	h := hmac.New(sha256.New, s.sessionSecret())
	h.Write([]byte(tokenID))
	h.Write([]byte(timestamp))
	expected := h.Sum(nil)

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	return time.Since(time.Unix(ts, 0)) <= s.cfg.SessionTTL
}

// csrfToken derives the session-scoped csrf token from a session token
func (s *Server) csrfToken(session string) string {
	h := hmac.New(sha256.New, s.sessionSecret())
	h.Write([]byte("csrf"))
	h.Write([]byte(session))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// sessionSecret returns the signing key, derived from the auth hash to avoid
// requiring extra config
func (s *Server) sessionSecret() []byte {
	h := sha256.Sum256([]byte(s.cfg.AuthHash))
	return h[:]
}
