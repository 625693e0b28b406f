package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"filedepot/internal/errs"
	"filedepot/internal/marker"
	"filedepot/internal/model"
)

// Result is the answer to an archive request: a ready archive path, the
// signal that a background build was started and the caller should poll the
// export listing (Deferred), or the signal that a build of this exact version
// is already running (Busy).
type Result struct {
	Path     string
	Deferred bool
	Busy     bool
}

// DirArchiver turns a directory into an archive at a target path. Implemented
// by *Builder.
type DirArchiver interface {
	Build(ctx context.Context, sourceDir, targetPath string) error
}

// Cache decides whether a cached archive is still valid for a source
// directory, rebuilding through the Builder when it is not. Validity is keyed
// on the content version (max mtime), which is baked into the file name, so a
// changed source simply resolves to a different target path and the old
// artifact becomes stale.
type Cache struct {
	markers     *marker.Store
	builder     DirArchiver
	zipRoot     string
	directLimit int64
	log         *zap.Logger

	group buildGroup
}

// NewCache constructs a Cache rooted at zipRoot. Sources whose cumulative size
// exceeds directLimit are built in the background and answered with Deferred.
func NewCache(markers *marker.Store, builder DirArchiver, zipRoot string, directLimit int64, log *zap.Logger) *Cache {
	return &Cache{
		markers:     markers,
		builder:     builder,
		zipRoot:     zipRoot,
		directLimit: directLimit,
		log:         log,
		group:       buildGroup{active: make(map[string]struct{})},
	}
}

// GetOrBuild returns a ready archive for sourceDir, building one if the cached
// version is stale or absent. relDir is the directory's path relative to the
// content root (it determines the canonical name); ownerScope picks the export
// directory the archive lives in. info is the caller's ScanDir of sourceDir;
// taking it as an argument keeps one walk per request and keys the whole
// decision on a single version reading.
//
// The same call may answer synchronously for a small directory and defer for a
// large one; deferred builds keep running after the client goes away so a
// later poll finds the archive ready.
func (c *Cache) GetOrBuild(ctx context.Context, sourceDir, relDir, ownerScope string, info DirInfo) (Result, error) {
	if sourceDir == "" || ownerScope == "" {
		return Result{}, fmt.Errorf("%w: empty source or owner", errs.ErrValidation)
	}

	ownerDir := filepath.Join(c.zipRoot, ownerScope)
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	stem := CanonicalName(relDir)
	fileName := FileName(relDir, info.Version)
	target := filepath.Join(ownerDir, fileName)

	switch c.markers.Readiness(target) {
	case marker.Ready:
		c.dropStaleVersions(ownerDir, stem, fileName)
		return Result{Path: target}, nil
	case marker.InProgress:
		return Result{Busy: true}, nil
	}

	// Absent: this version has never been built (or a leftover was just
	// cleaned up). Superseded versions can go regardless of what happens next.
	c.dropStaleVersions(ownerDir, stem, fileName)

	if !c.group.begin(target) {
		// Another request is already building this exact version.
		return Result{Busy: true}, nil
	}

	if info.Size > c.directLimit {
		go func() {
			defer c.group.end(target)
			// Deliberately detached from the request context: the client has
			// been redirected to the export listing and the build must finish
			// for a later poll to succeed.
			if err := c.builder.Build(context.Background(), sourceDir, target); err != nil {
				c.log.Error("background archive build failed",
					zap.String("source", sourceDir), zap.String("target", target), zap.Error(err))
			}
		}()
		return Result{Deferred: true}, nil
	}

	defer c.group.end(target)
	if err := c.builder.Build(ctx, sourceDir, target); err != nil {
		return Result{}, fmt.Errorf("build archive: %w", err)
	}
	return Result{Path: target}, nil
}

// ListExports returns the owner's archives, newest first, with a readiness
// flag per entry. Sentinel files are not listed; an archive with any marker is
// reported not ready rather than hidden, so clients can poll for it.
func (c *Cache) ListExports(ownerScope string) ([]model.ZipExport, error) {
	ownerDir := filepath.Join(c.zipRoot, ownerScope)
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	entries, err := os.ReadDir(ownerDir)
	if err != nil {
		return nil, fmt.Errorf("read export dir: %w", err)
	}

	exports := make([]model.ZipExport, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || c.markers.IsSentinelName(name) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		exports = append(exports, model.ZipExport{
			FileName:    name,
			DisplayName: DisplayName(name),
			Size:        fi.Size(),
			Modified:    fi.ModTime(),
			Ready:       !c.markers.HasAnyMarker(filepath.Join(ownerDir, name)),
		})
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].Modified.After(exports[j].Modified) })
	return exports, nil
}

// ExportPath resolves an export file name inside the owner's directory,
// rejecting traversal out of it.
func (c *Cache) ExportPath(ownerScope, fileName string) (string, error) {
	ownerDir := filepath.Join(c.zipRoot, ownerScope)
	full := filepath.Join(ownerDir, fileName)
	if full != ownerDir && !strings.HasPrefix(full, ownerDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes export dir", errs.ErrValidation)
	}
	return full, nil
}

// dropStaleVersions removes archives sharing the canonical stem but not the
// current file name. Best effort; a failed delete only wastes disk.
//
// Anything tied to a build in flight is left alone: removing a live sentinel
// would let a crashed partial target pass for ready after a restart.
func (c *Cache) dropStaleVersions(ownerDir, stem, keep string) {
	entries, err := os.ReadDir(ownerDir)
	if err != nil {
		return
	}
	keepPath := filepath.Join(ownerDir, keep)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == keep || !strings.HasPrefix(name, stem) {
			continue
		}
		full := filepath.Join(ownerDir, name)
		target := full
		if c.markers.IsSentinelName(name) {
			target = c.markers.TargetPath(full)
		}
		if target == keepPath || c.markers.Active(target) {
			continue
		}
		if err := os.Remove(full); err != nil {
			c.log.Warn("failed to remove stale archive", zap.String("name", name), zap.Error(err))
			continue
		}
		c.log.Info("removed stale archive", zap.String("name", name))
	}
}
