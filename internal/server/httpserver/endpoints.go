package httpserver

import (
	"net/http"

	"filedepot/internal/limiter"
)

// Endpoint identifies one registered route. Handlers are looked up through
// this enum at startup; a request that matches no registered endpoint is a
// plain 404.
type Endpoint int

const (
	EndpointLogin Endpoint = iota
	EndpointLogout
	EndpointStructure
	EndpointZip
	EndpointZipExports
	EndpointZipExportFile
	EndpointPublic
	EndpointFiles
	EndpointUpload
)

// String names the endpoint for logs.
func (e Endpoint) String() string {
	switch e {
	case EndpointLogin:
		return "login"
	case EndpointLogout:
		return "logout"
	case EndpointStructure:
		return "structure"
	case EndpointZip:
		return "zip"
	case EndpointZipExports:
		return "zip_exports"
	case EndpointZipExportFile:
		return "zip_export_file"
	case EndpointPublic:
		return "public"
	case EndpointFiles:
		return "files"
	case EndpointUpload:
		return "upload"
	}
	return "unknown"
}

type route struct {
	endpoint Endpoint
	method   string
	path     string
	bracket  limiter.Bracket
	public   bool // no token required
	prefix   bool // register as path prefix
	handler  http.HandlerFunc
}

// routes is the full endpoint table. Registration order matters only for the
// trailing file prefix, which must come last.
func (s *Server) routes() []route {
	return []route{
		{EndpointLogin, http.MethodPost, "/auth/login", limiter.Medium, true, false, s.handleLogin},
		{EndpointLogout, http.MethodPost, "/auth/logout", limiter.Medium, false, false, s.handleLogout},
		{EndpointStructure, http.MethodGet, "/api/structure", limiter.Weak, false, false, s.handleStructure},
		{EndpointZip, http.MethodGet, "/api/zip", limiter.Strong, false, false, s.handleZip},
		{EndpointZipExports, http.MethodGet, "/api/zip/exports", limiter.Medium, false, false, s.handleZipExports},
		{EndpointZipExportFile, http.MethodGet, "/api/zip/exports/file", limiter.Medium, false, false, s.handleZipExportFile},
		{EndpointUpload, http.MethodPost, "/api/upload", limiter.Medium, false, false, s.handleUpload},
		{EndpointPublic, http.MethodGet, "/public", limiter.Weak, true, false, s.handlePublic},
		{EndpointFiles, http.MethodGet, "/files/", limiter.Weak, false, true, s.handleFiles},
	}
}
