package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"filedepot/internal/errs"
	"filedepot/internal/marker"
)

// Marker release is what makes a finished archive visible to readers, so it
// is retried a few times before the build is declared failed.
const (
	releaseRetries = 4 // retries after the first attempt, 5 attempts total
	releaseDelay   = 500 * time.Millisecond
)

// Builder streams a directory tree into a zip archive under the marker
// protocol: the sentinel is acquired before the first byte and released only
// after the archive is fully flushed.
type Builder struct {
	markers *marker.Store
	log     *zap.Logger
}

// NewBuilder constructs a Builder over the shared marker store.
func NewBuilder(markers *marker.Store, log *zap.Logger) *Builder {
	return &Builder{markers: markers, log: log}
}

// Build zips sourceDir into targetPath. The target must not exist; the Builder
// never overwrites. Unreadable source files are logged and skipped so one bad
// file does not void the whole archive. On a writer error the partial target
// is deleted and the marker deliberately left behind: the path is contaminated
// and readers must keep seeing it as not ready.
//
// Concurrent builds of the same target are the caller's problem (the cache
// serializes them); the O_EXCL create plus the marker protocol only guarantee
// that a lost race cannot corrupt an existing archive.
func (b *Builder) Build(ctx context.Context, sourceDir, targetPath string) error {
	if sourceDir == "" || targetPath == "" {
		return fmt.Errorf("%w: empty source or target", errs.ErrValidation)
	}
	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, targetPath)
	}

	if err := b.markers.Acquire(targetPath); err != nil {
		return fmt.Errorf("acquire marker: %w", err)
	}

	out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		b.discardPartial(targetPath)
		return fmt.Errorf("create target: %w", err)
	}

	if err := b.writeArchive(out, sourceDir, targetPath); err != nil {
		_ = out.Close()
		b.discardPartial(targetPath)
		return err
	}
	if err := out.Close(); err != nil {
		b.discardPartial(targetPath)
		return fmt.Errorf("close target: %w", err)
	}

	// The archive bytes are complete; only the release makes them readable.
	backoff := retry.WithMaxRetries(releaseRetries, retry.NewConstant(releaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := b.markers.Release(targetPath); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("release marker after %d attempts: %w", releaseRetries+1, err)
	}
	return nil
}

func (b *Builder) writeArchive(out io.Writer, sourceDir, targetPath string) error {
	zw := zip.NewWriter(out)

	selfBase := filepath.Base(targetPath)
	sentinelBase := filepath.Base(b.markers.SentinelPath(targetPath))

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.log.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if base == selfBase || base == sentinelBase {
			// Self-inclusion guard for directories that hold earlier exports.
			return nil
		}
		fi, err := d.Info()
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			b.log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			return nil
		}
		defer src.Close()

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: fi.ModTime(),
		})
		if err != nil {
			return fmt.Errorf("add entry %s: %w", rel, err)
		}
		if _, err := io.Copy(w, src); err != nil {
			b.log.Warn("entry truncated, source read failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		return fmt.Errorf("walk source: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// discardPartial removes a half-written target. The marker is kept on purpose;
// see Build.
func (b *Builder) discardPartial(targetPath string) {
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		b.log.Error("failed to remove partial archive", zap.String("target", targetPath), zap.Error(err))
	}
}
