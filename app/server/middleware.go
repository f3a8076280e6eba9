package server

import (
	"net/http"
	"net/url"
	"time"

	log "github.com/go-pkgz/lgr"
)

// Logger middleware logs requests with status and duration
func Logger(l log.L) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := &statusWriter{ResponseWriter: w, status: 200}
			start := time.Now()

			h.ServeHTTP(ww, r)

			q := r.URL.String()
			if qun, err := url.QueryUnescape(q); err == nil {
				q = qun
			}
			l.Logf("[DEBUG] %s - %s - %s - %d - %v", r.Method, q, clientIP(r), ww.status, time.Since(start))
		}
		return http.HandlerFunc(fn)
	}
}

// statusWriter wraps http.ResponseWriter to capture status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
