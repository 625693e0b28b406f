// Package httpserver exposes the file-server HTTP API.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"filedepot/internal/archive"
	"filedepot/internal/config"
	"filedepot/internal/errs"
	"filedepot/internal/limiter"
	"filedepot/internal/marker"
	"filedepot/internal/model"
)

// CredentialService authenticates accounts and manages their tokens.
type CredentialService interface {
	ValidateLogin(ctx context.Context, username, password, ip string) (uuid.UUID, error)
	IssueToken(ctx context.Context, accountID uuid.UUID, boundAddr string) (string, error)
	ExpireAllTokens(ctx context.Context, accountID uuid.UUID)
	GetAccessLevel(ctx context.Context, accountID uuid.UUID) (int, bool)
}

// TokenService checks presented bearer tokens.
type TokenService interface {
	ValidateToken(ctx context.Context, accountID uuid.UUID, token, sourceAddr string) (bool, error)
	Invalidate(accountID uuid.UUID)
}

// ArchiveService resolves directory archive requests against the cache.
type ArchiveService interface {
	GetOrBuild(ctx context.Context, sourceDir, relDir, ownerScope string, info archive.DirInfo) (archive.Result, error)
	ListExports(ownerScope string) ([]model.ZipExport, error)
	ExportPath(ownerScope, fileName string) (string, error)
}

// Server wires services into HTTP handlers.
type Server struct {
	cfg       config.Config
	creds     CredentialService
	validator TokenService
	archives  ArchiveService
	markers   *marker.Store
	lim       limiter.Limiter
	log       *zap.Logger
}

// New constructs a Server with injected services.
func New(
	cfg config.Config,
	creds CredentialService,
	validator TokenService,
	archives ArchiveService,
	markers *marker.Store,
	lim limiter.Limiter,
	log *zap.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		creds:     creds,
		validator: validator,
		archives:  archives,
		markers:   markers,
		lim:       lim,
		log:       log,
	}
}

// Router builds the endpoint table into a router. Anything outside the table
// is a 404.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recovery(s.log), logging(s.log))

	for _, rt := range s.routes() {
		h := rt.handler
		if !rt.public {
			h = s.authenticate(h)
		}
		h = s.rateLimit(rt.bracket, h)

		// Routes carry the endpoint name so the request log can report
		// which table entry served a request.
		if rt.prefix {
			r.PathPrefix(rt.path).HandlerFunc(h).Methods(rt.method).Name(rt.endpoint.String())
			continue
		}
		r.HandleFunc(rt.path, h).Methods(rt.method).Name(rt.endpoint.String())
	}
	return r
}

// scopeRoot is the widest directory the identity may read. Below the full-read
// level everything is confined to the account's own subtree.
func (s *Server) scopeRoot(id identity) string {
	if id.accessLevel >= model.FullReadLevel {
		return s.cfg.ContentRoot
	}
	return filepath.Join(s.cfg.UserRoot(), id.accountID.String())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}

	ip := clientIP(r)
	accountID, err := s.creds.ValidateLogin(r.Context(), req.Username, req.Password, ip)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.creds.IssueToken(r.Context(), accountID, ip)
	if err != nil {
		s.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     userIDCookie,
		Value:    accountID.String(),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"userId": accountID.String()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if ok {
		s.creds.ExpireAllTokens(r.Context(), id.accountID)
		s.validator.Invalidate(id.accountID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	dir, err := joinWithinRoot(s.scopeRoot(id), r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	list, err := os.ReadDir(dir)
	if err != nil {
		s.writeError(w, errs.ErrNotFound)
		return
	}

	entries := make([]model.DirEntry, 0, len(list))
	for _, e := range list {
		if s.markers.IsSentinelName(e.Name()) {
			continue
		}
		// Files mid-write are simply not shown.
		if s.markers.HasAnyMarker(filepath.Join(dir, e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		entries = append(entries, model.DirEntry{
			Name:     e.Name(),
			Dir:      e.IsDir(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleZip(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if id.accessLevel < model.ZipLevel {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	rel := cleanRelPath(r.URL.Query().Get("path"))
	source, err := joinWithinRoot(s.scopeRoot(id), rel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := os.Stat(source)
	if err != nil || !st.IsDir() {
		s.writeError(w, errs.ErrNotFound)
		return
	}

	// One walk serves both the large-tree bracket check and the cache
	// decision, so the two cannot disagree on the content version.
	info := archive.ScanDir(source)
	if info.Size > s.cfg.RateHugeZipCutoff {
		if allowed, retry := s.lim.Allow(clientIP(r), limiter.Extreme); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	res, err := s.archives.GetOrBuild(r.Context(), source, rel, id.accountID.String(), info)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch {
	case res.Busy:
		s.writeError(w, errs.ErrNotReady)
	case res.Deferred:
		w.Header().Set("Location", "/api/zip/exports")
		w.WriteHeader(http.StatusSeeOther)
	default:
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(archive.DisplayName(filepath.Base(res.Path))))
		http.ServeFile(w, r, res.Path)
	}
}

func (s *Server) handleZipExports(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if id.accessLevel < model.ZipLevel {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	exports, err := s.archives.ListExports(id.accountID.String())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exports)
}

func (s *Server) handleZipExportFile(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if id.accessLevel < model.ZipLevel {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	fileName := r.URL.Query().Get("val")
	path, err := s.archives.ExportPath(id.accountID.String(), fileName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch s.markers.Readiness(path) {
	case marker.Absent:
		s.writeError(w, errs.ErrNotFound)
		return
	case marker.InProgress:
		s.writeError(w, errs.ErrNotReady)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, errs.ErrNotFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(archive.DisplayName(filepath.Base(path))))
	w.WriteHeader(http.StatusAccepted)
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn("export stream interrupted", zap.String("file", path), zap.Error(err))
	}
}

func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	path, err := joinWithinRoot(s.cfg.PublicRoot(), r.URL.Query().Get("val"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.serveContent(w, r, path)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rel := r.URL.Path[len("/files/"):]
	path, err := joinWithinRoot(s.scopeRoot(id), rel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.serveContent(w, r, path)
}

// serveContent streams one regular file. Files that are mid-write, sentinels
// themselves, and directories all fall through to the 404 page.
func (s *Server) serveContent(w http.ResponseWriter, r *http.Request, path string) {
	if s.markers.IsSentinelName(filepath.Base(path)) || s.markers.HasAnyMarker(path) {
		s.serveNotFound(w, r)
		return
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		s.serveNotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// serveNotFound sends the static 404 page when the public tree has one.
func (s *Server) serveNotFound(w http.ResponseWriter, r *http.Request) {
	page := filepath.Join(s.cfg.PublicRoot(), "404.html")
	if st, err := os.Stat(page); err == nil && !st.IsDir() {
		w.WriteHeader(http.StatusNotFound)
		http.ServeFile(w, r, page)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromCtx(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Uploads always land in the account's own subtree, whatever the level.
	ownRoot := filepath.Join(s.cfg.UserRoot(), id.accountID.String())
	destDir, err := joinWithinRoot(ownRoot, r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, fmt.Errorf("%w: bad multipart body", errs.ErrValidation))
		return
	}

	var saved []string
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			name := filepath.Base(fh.Filename)
			if name == "" || name == "." || name == string(filepath.Separator) {
				continue
			}
			if err := s.saveUpload(fh, filepath.Join(destDir, name)); err != nil {
				s.writeError(w, err)
				return
			}
			saved = append(saved, name)
		}
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"saved": saved})
}

// saveUpload writes one part to disk under a marker so concurrent readers
// never see the half-written file.
func (s *Server) saveUpload(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("%w: unreadable part", errs.ErrValidation)
	}
	defer src.Close()

	if err := s.markers.Acquire(dest); err != nil {
		return err
	}
	defer func() {
		if err := s.markers.Release(dest); err != nil {
			s.log.Error("release upload marker", zap.String("file", dest), zap.Error(err))
		}
	}()

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dest)
		return err
	}
	return dst.Close()
}
