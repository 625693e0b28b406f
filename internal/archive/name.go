// Package archive builds and caches zip exports of content directories.
package archive

import (
	"strconv"
	"strings"
)

// zipExt is the fixed extension of cached archives.
const zipExt = ".zip"

// CanonicalName derives a collision-resistant file name stem from a relative
// directory path: the leading separator is dropped, `-` and `_` are stripped
// so the separator replacement stays unambiguous, separators collapse to `_`,
// and the result is wrapped in `-...-` so the original name can be recovered.
//
//	/docs/reports -> -docs_reports-
func CanonicalName(relDir string) string {
	s := relDir
	s = strings.TrimPrefix(s, "/")
	s = strings.TrimPrefix(s, `\`)
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, `\`, "_")
	return "-" + s + "-"
}

// FileName is the full archive file name for a source directory at a given
// content version: canonical stem, version, fixed extension.
func FileName(relDir string, version int64) string {
	return CanonicalName(relDir) + strconv.FormatInt(version, 10) + zipExt
}

// DisplayName recovers a user-facing name from an archive file name,
// preserving the extension.
//
//	-docs_reports-1700000000000.zip -> docs_reports.zip
func DisplayName(fileName string) string {
	ext := ""
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		ext = fileName[i:]
	}
	start := strings.Index(fileName, "-")
	if start < 0 {
		return fileName
	}
	end := strings.Index(fileName[start+1:], "-")
	if end < 0 {
		return fileName
	}
	return fileName[start+1:start+1+end] + ext
}
