package server

import (
	"crypto/subtle"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	log "github.com/go-pkgz/lgr"

	"github.com/sharebin/sharebin/app/server/validator"
	"github.com/sharebin/sharebin/app/sharing"
	"github.com/sharebin/sharebin/app/store"
)

// shareForm holds validated share-creation inputs
type shareForm struct {
	ExpireDays int
	Password   string
	validator.Validator
}

// POST /api/v1/shares
// multipart: files=<one or more>, expire=<-1|days>, password=<optional>
func (s *Server) createShareCtrl(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		sendErr(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Printf("[WARN] failed to clean multipart temp files: %v", err)
		}
	}()

	form := shareForm{Password: r.FormValue("password")}
	form.ExpireDays, _ = strconv.Atoi(r.FormValue("expire"))
	form.CheckField(validator.NotBlank(r.FormValue("expire")), "expire", "expire selector required")
	form.CheckField(validator.ValidExpireSelector(r.FormValue("expire")), "expire", "expire must be -1 or a positive day count")
	if !form.Valid() {
		sendErr(w, r, http.StatusBadRequest, form.FirstError())
		return
	}

	uploads := r.MultipartForm.File["files"]
	req, closeAll, err := buildCreateRequest(uploads, form)
	if err != nil {
		sendErr(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer closeAll()

	share, err := s.shares.Create(r.Context(), req)
	if err != nil {
		s.sendShareErr(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, JSON{"success": true, "data": JSON{
		"id":        share.ID,
		"url":       s.shareURL(share.ID),
		"fileCount": len(share.Files),
	}})
}

// buildCreateRequest opens all multipart file headers into a service request.
// The returned closer releases the opened readers.
func buildCreateRequest(uploads []*multipart.FileHeader, form shareForm) (sharing.CreateRequest, func(), error) {
	req := sharing.CreateRequest{ExpireDays: form.ExpireDays, Password: form.Password}
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, hdr := range uploads {
		fh, err := hdr.Open()
		if err != nil {
			closeAll()
			return sharing.CreateRequest{}, func() {}, errors.Wrapf(err, "can't open upload %q", hdr.Filename)
		}
		opened = append(opened, fh)
		req.Files = append(req.Files, sharing.FileUpload{
			Name: hdr.Filename,
			Type: hdr.Header.Get("Content-Type"),
			Size: hdr.Size,
			Data: fh,
		})
	}
	return req, closeAll, nil
}

// GET|POST /share/{id}
// password comes from the form on POST, access key from ?key= on GET
func (s *Server) accessShareCtrl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	password, accessKey := r.FormValue("password"), r.URL.Query().Get("key")

	share, err := s.shares.Resolve(r.Context(), id, password, accessKey)
	if err != nil {
		s.accessLog.Record(AccessEvent{Kind: "share", Key: id, IP: clientIP(r), Granted: false})
		s.sendShareErr(w, r, err)
		return
	}
	s.accessLog.Record(AccessEvent{Kind: "share", Key: id, IP: clientIP(r), Granted: true})

	files := make([]JSON, 0, len(share.Files))
	for _, f := range share.Files {
		files = append(files, JSON{"name": f.Name, "type": f.Type, "size": f.Size})
	}
	render.JSON(w, r, JSON{"success": true, "data": JSON{
		"id":      share.ID,
		"created": share.Created,
		"expires": share.Expires,
		"files":   files,
	}})
}

// GET /share/{id}/files/{name}
func (s *Server) downloadFileCtrl(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	password, accessKey := r.URL.Query().Get("password"), r.URL.Query().Get("key")

	path, entry, err := s.shares.FilePath(r.Context(), id, name, password, accessKey)
	if err != nil {
		s.sendShareErr(w, r, err)
		return
	}
	s.accessLog.Record(AccessEvent{Kind: "download", Key: id + "/" + entry.Name, IP: clientIP(r), Granted: true})

	if entry.Type != "" {
		w.Header().Set("Content-Type", entry.Type)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+entry.Name+`"`)
	http.ServeFile(w, r, path)
}

// GET /api/v1/shares
func (s *Server) listSharesCtrl(w http.ResponseWriter, r *http.Request) {
	shares, err := s.shares.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list shares: %v", err)
		sendErr(w, r, http.StatusInternalServerError, "can't list shares")
		return
	}
	render.JSON(w, r, JSON{"success": true, "data": shares})
}

// DELETE /api/v1/shares/{id}
func (s *Server) deleteShareCtrl(w http.ResponseWriter, r *http.Request) {
	if err := s.shares.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		log.Printf("[ERROR] failed to delete share: %v", err)
		sendErr(w, r, http.StatusInternalServerError, "can't delete share")
		return
	}
	render.JSON(w, r, JSON{"success": true})
}

// POST /api/v1/shares/{id}/access-key
func (s *Server) accessKeyCtrl(w http.ResponseWriter, r *http.Request) {
	key, err := s.shares.SetAccessKey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendShareErr(w, r, err)
		return
	}
	render.JSON(w, r, JSON{"success": true, "data": JSON{"access_key": key}})
}

// POST /api/v1/upload
// sharex-compatible single file upload, authorized by a static token header,
// creates a never-expiring share and responds with the direct file url
func (s *Server) sharexUploadCtrl(w http.ResponseWriter, r *http.Request) {
	if s.cfg.UploadToken == "" ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Upload-Token")), []byte(s.cfg.UploadToken)) != 1 {
		sendErr(w, r, http.StatusUnauthorized, "invalid upload token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		sendErr(w, r, http.StatusBadRequest, "file field required")
		return
	}
	defer func() { _ = file.Close() }()

	share, err := s.shares.Create(r.Context(), sharing.CreateRequest{
		ExpireDays: -1,
		Files: []sharing.FileUpload{{
			Name: hdr.Filename,
			Type: hdr.Header.Get("Content-Type"),
			Size: hdr.Size,
			Data: file,
		}},
	})
	if err != nil {
		s.sendShareErr(w, r, err)
		return
	}

	render.PlainText(w, r, s.shareURL(share.ID)+"/files/"+share.Files[0].Name)
}

// sendShareErr maps service errors to the 4xx taxonomy: 404 missing,
// 410 expired, 403 denied without hinting which check failed
func (s *Server) sendShareErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sharing.ErrNotFound), errors.Is(err, store.ErrNotFound):
		sendErr(w, r, http.StatusNotFound, "share not found")
	case errors.Is(err, sharing.ErrExpired):
		sendErr(w, r, http.StatusGone, "share expired")
	case errors.Is(err, sharing.ErrAccessDenied):
		sendErr(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, sharing.ErrNoFiles):
		sendErr(w, r, http.StatusBadRequest, "no files provided")
	case errors.Is(err, sharing.ErrBadFileName):
		sendErr(w, r, http.StatusBadRequest, "invalid file name")
	default:
		log.Printf("[ERROR] share operation failed: %v", err)
		sendErr(w, r, http.StatusInternalServerError, "internal error")
	}
}
