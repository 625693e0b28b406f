package httpserver

import (
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"filedepot/internal/errs"
)

// cleanRelPath takes a client path like "", ".", "/a/b", "a//b" and returns a
// safe, slash-based, no-leading-slash relative path ("" means root).
func cleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// joinWithinRoot returns an absolute filesystem path under root for a given
// rel path. It rejects escapes (..).
func joinWithinRoot(rootAbs, rel string) (string, error) {
	rel = cleanRelPath(rel)
	if rel == "" {
		return rootAbs, nil
	}
	if strings.Contains(rel, "\x00") {
		return "", fmt.Errorf("%w: invalid path", errs.ErrValidation)
	}
	abs := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))
	rootClean := filepath.Clean(rootAbs)
	if abs != rootClean && !strings.HasPrefix(abs, rootClean+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escape", errs.ErrValidation)
	}
	return abs, nil
}

// clientIP returns the remote host without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
