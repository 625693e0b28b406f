package archive

import (
	"io/fs"
	"path/filepath"
)

// DirInfo summarizes a directory tree for the cache: cumulative regular-file
// size and the content version, the maximum modification timestamp (Unix
// milliseconds) across all files and subdirectories.
type DirInfo struct {
	Size    int64
	Version int64
}

// ScanDir walks dir recursively and returns its DirInfo. Unreadable entries
// are skipped, never fatal; a fully unreadable directory yields a zero DirInfo.
func ScanDir(dir string) DirInfo {
	var info DirInfo
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if mt := fi.ModTime().UnixMilli(); mt > info.Version {
			info.Version = mt
		}
		if fi.Mode().IsRegular() {
			info.Size += fi.Size()
		}
		return nil
	})
	return info
}
