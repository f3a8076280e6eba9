// Package server provides the rest-like api for shares, short links and the
// admin session.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth_chi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/sharebin/sharebin/app/limiter"
	"github.com/sharebin/sharebin/app/sharing"
	"github.com/sharebin/sharebin/app/shortener"
)

// Config is a configuration for the server
type Config struct {
	Listen        string
	Domain        string
	Protocol      string
	AuthHash      string // bcrypt hash of the admin password
	UploadToken   string // static token for the sharex endpoint
	SessionTTL    time.Duration
	MaxUploadSize int64
}

// Server is a rest with share, link and login-limiter services
type Server struct {
	shares    *sharing.Shares
	links     *shortener.Links
	limiter   *limiter.Limiter
	accessLog AccessLogger
	cfg       Config
	version   string
}

// JSON is a map alias for json responses
type JSON = rest.JSON

// New creates a new server
func New(shares *sharing.Shares, links *shortener.Links, lim *limiter.Limiter, version string, cfg Config) *Server {
	return &Server{
		shares:    shares,
		links:     links,
		limiter:   lim,
		accessLog: LgrAccessLogger{},
		cfg:       cfg,
		version:   version,
	}
}

// Run the listener and request's router, activate rest server
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] activate rest server on %s", s.cfg.Listen)

	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if clsErr := httpServer.Close(); clsErr != nil {
			log.Printf("[ERROR] failed to close http server, %v", clsErr)
		}
	}()

	err := httpServer.ListenAndServe()
	log.Printf("[WARN] http server terminated, %s", err)

	if !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID, middleware.RealIP, rest.Recoverer(log.Default()))
	router.Use(middleware.Throttle(1000))
	router.Use(rest.AppInfo("sharebin", "sharebin", s.version), rest.Ping)
	router.Use(tollbooth_chi.LimitHandler(tollbooth.NewLimiter(10, nil)))

	router.Route("/api/v1", func(api chi.Router) {
		// upload routes run without the body size cap and request timeout,
		// share creation has to tolerate large multi-file uploads
		api.Group(func(up chi.Router) {
			up.Use(Logger(log.Default()))
			up.Post("/upload", s.sharexUploadCtrl)
			up.With(s.requireSession, s.requireCSRF).Post("/shares", s.createShareCtrl)
		})

		api.Group(func(adm chi.Router) {
			adm.Use(Logger(log.Default()))
			adm.Use(middleware.Timeout(30*time.Second), rest.SizeLimit(64*1024))
			adm.Use(s.requireSession)
			adm.Get("/shares", s.listSharesCtrl)
			adm.Get("/links", s.listLinksCtrl)
			adm.Group(func(mut chi.Router) {
				mut.Use(s.requireCSRF)
				mut.Post("/links", s.createLinkCtrl)
				mut.Delete("/links/{code}", s.deleteLinkCtrl)
				mut.Delete("/shares/{id}", s.deleteShareCtrl)
				mut.Post("/shares/{id}/access-key", s.accessKeyCtrl)
			})
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(Logger(log.Default()))
		r.Use(middleware.Timeout(30*time.Second), rest.SizeLimit(64*1024))
		r.Use(middleware.StripSlashes)

		r.Post("/login", s.loginCtrl)
		r.Get("/logout", s.logoutCtrl)

		r.Get("/l", s.resolveLinkCtrl)
		r.Get("/share/{id}", s.accessShareCtrl)
		r.Post("/share/{id}", s.accessShareCtrl)
		r.Get("/share/{id}/files/{name}", s.downloadFileCtrl)
	})

	router.Get("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "User-agent: *\nDisallow: /share/\nDisallow: /l\nDisallow: /api/\n")
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, JSON{"success": false, "error": "not found"})
	})

	return router
}

// shareURL builds the public access url for a share id.
func (s *Server) shareURL(id string) string {
	return s.cfg.Protocol + "://" + s.cfg.Domain + "/share/" + id
}

// shortURL builds the public url for a short code.
func (s *Server) shortURL(code string) string {
	return s.cfg.Protocol + "://" + s.cfg.Domain + "/l?c=" + code
}

// clientIP returns the request's client address. middleware.RealIP has already
// substituted proxy headers into RemoteAddr; when the server is exposed
// directly those headers are client-controllable, see the deployment note in
// the README. After RealIP the value may be a bare IP without a port, so a
// failed host:port split means the address is used as-is.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

func sendErr(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, JSON{"success": false, "error": msg})
}
