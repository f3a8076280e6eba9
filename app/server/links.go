package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	log "github.com/go-pkgz/lgr"

	"github.com/sharebin/sharebin/app/server/validator"
	"github.com/sharebin/sharebin/app/shortener"
)

// linkForm holds validated link-creation inputs
type linkForm struct {
	URL        string
	ExpireDays int
	validator.Validator
}

// POST /api/v1/links
// json body {"url": ..., "expire": -1|days} or form fields of the same names
func (s *Server) createLinkCtrl(w http.ResponseWriter, r *http.Request) {
	form := linkForm{}
	if render.GetRequestContentType(r) == render.ContentTypeJSON {
		body := struct {
			URL    string `json:"url"`
			Expire int    `json:"expire"`
		}{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			sendErr(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		form.URL, form.ExpireDays = body.URL, body.Expire
	} else {
		if err := r.ParseForm(); err != nil {
			sendErr(w, r, http.StatusBadRequest, "invalid form data")
			return
		}
		form.URL = r.PostForm.Get("url")
		form.ExpireDays, _ = strconv.Atoi(r.PostForm.Get("expire"))
		form.CheckField(validator.ValidExpireSelector(r.PostForm.Get("expire")), "expire", "expire must be -1 or a positive day count")
	}
	form.CheckField(validator.NotBlank(form.URL), "url", "url required")
	form.CheckField(validator.AbsoluteURL(form.URL), "url", "url must be absolute http(s)")
	if !form.Valid() {
		sendErr(w, r, http.StatusBadRequest, form.FirstError())
		return
	}

	link, err := s.links.Create(r.Context(), form.URL, form.ExpireDays)
	if err != nil {
		if errors.Is(err, shortener.ErrInvalidURL) {
			sendErr(w, r, http.StatusBadRequest, "invalid url")
			return
		}
		log.Printf("[ERROR] failed to create link: %v", err)
		sendErr(w, r, http.StatusInternalServerError, "can't create link")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, JSON{"success": true, "data": JSON{
		"code":         link.Code,
		"short_url":    s.shortURL(link.Code),
		"original_url": link.OriginalURL,
	}})
}

// GET /l?c=<code>
func (s *Server) resolveLinkCtrl(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("c")
	if code == "" {
		sendErr(w, r, http.StatusBadRequest, "no code passed")
		return
	}

	link, err := s.links.Resolve(r.Context(), code)
	if err != nil {
		s.accessLog.Record(AccessEvent{Kind: "link", Key: code, IP: clientIP(r), Granted: false})
		switch {
		case errors.Is(err, shortener.ErrNotFound):
			sendErr(w, r, http.StatusNotFound, "link not found")
		case errors.Is(err, shortener.ErrExpired):
			sendErr(w, r, http.StatusGone, "link expired")
		default:
			log.Printf("[ERROR] failed to resolve link %s: %v", code, err)
			sendErr(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.accessLog.Record(AccessEvent{Kind: "link", Key: code, IP: clientIP(r), Granted: true})
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// GET /api/v1/links
func (s *Server) listLinksCtrl(w http.ResponseWriter, r *http.Request) {
	links, err := s.links.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list links: %v", err)
		sendErr(w, r, http.StatusInternalServerError, "can't list links")
		return
	}
	render.JSON(w, r, JSON{"success": true, "data": links})
}

// DELETE /api/v1/links/{code}
func (s *Server) deleteLinkCtrl(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.links.Delete(r.Context(), code); err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			sendErr(w, r, http.StatusNotFound, "link not found")
			return
		}
		log.Printf("[ERROR] failed to delete link %s: %v", code, err)
		sendErr(w, r, http.StatusInternalServerError, "can't delete link")
		return
	}
	render.JSON(w, r, JSON{"success": true})
}
