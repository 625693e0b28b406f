package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filedepot/internal/errs"
	"filedepot/internal/marker"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestBuild_ArchivesTreeAndReleasesMarker(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":        "aaaaaaaaaa",
		"sub/b.txt":    "bbbbbbbbbbbbbbbbbbbb",
		"sub/deep/c.b": "cccccccccccccccccccccccccccccc",
	})

	markers := marker.New(".filepart", zap.NewNop())
	b := NewBuilder(markers, zap.NewNop())
	target := filepath.Join(t.TempDir(), "out.zip")

	require.NoError(t, b.Build(context.Background(), src, target))
	require.Equal(t, marker.Ready, markers.Readiness(target))
	require.Equal(t, []string{"a.txt", "sub/b.txt", "sub/deep/c.b"}, zipNames(t, target))
}

func TestBuild_RejectsExistingTarget(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "x"})
	target := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, os.WriteFile(target, []byte("already here"), 0o644))

	b := NewBuilder(marker.New(".filepart", zap.NewNop()), zap.NewNop())
	err := b.Build(context.Background(), src, target)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	// The existing file is untouched.
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "already here", string(data))
}

func TestBuild_ExcludesSelfAndSentinel(t *testing.T) {
	t.Parallel()

	// Archiving a directory that holds earlier exports: the target and its
	// sentinel must not end up inside the archive.
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "x"})
	target := filepath.Join(src, "export.zip")

	b := NewBuilder(marker.New(".filepart", zap.NewNop()), zap.NewNop())
	require.NoError(t, b.Build(context.Background(), src, target))
	require.Equal(t, []string{"a.txt"}, zipNames(t, target))
}

func TestBuild_SkipsIrregularEntries(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"ok.txt": "fine"})
	require.NoError(t, os.Symlink(filepath.Join(src, "nowhere"), filepath.Join(src, "dangling")))

	b := NewBuilder(marker.New(".filepart", zap.NewNop()), zap.NewNop())
	target := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, b.Build(context.Background(), src, target))
	require.Equal(t, []string{"ok.txt"}, zipNames(t, target))
}

func TestBuild_EmptyInputs(t *testing.T) {
	t.Parallel()
	b := NewBuilder(marker.New(".filepart", zap.NewNop()), zap.NewNop())
	require.ErrorIs(t, b.Build(context.Background(), "", "x"), errs.ErrValidation)
	require.ErrorIs(t, b.Build(context.Background(), "x", ""), errs.ErrValidation)
}

func TestBuild_CreateFailureDiscardsPartialKeepsMarker(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "x"})

	dir := t.TempDir()
	target := filepath.Join(dir, "out.zip")
	// A dangling symlink slips past the existence check but defeats the
	// exclusive create, like a rival writer sneaking in between the two.
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), target))

	markers := marker.New(".filepart", zap.NewNop())
	b := NewBuilder(markers, zap.NewNop())
	require.Error(t, b.Build(context.Background(), src, target))

	// The partial target is discarded but the marker stays: the path is
	// contaminated and must keep reading as not ready.
	_, lerr := os.Lstat(target)
	require.True(t, os.IsNotExist(lerr))
	require.True(t, markers.Active(target))
	require.FileExists(t, markers.SentinelPath(target))
}

func TestBuild_FailedReleaseFailsTheBuild(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "payload"})

	markers := marker.New(".filepart", zap.NewNop())
	b := NewBuilder(markers, zap.NewNop())
	target := filepath.Join(t.TempDir(), "out.zip")

	// A canceled context makes the release retry loop give up immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Build(ctx, src, target)
	require.ErrorContains(t, err, "release marker")

	// The archive bytes are complete, but the held marker keeps them invisible.
	require.Equal(t, []string{"a.txt"}, zipNames(t, target))
	require.Equal(t, marker.InProgress, markers.Readiness(target))
}

func TestBuild_NoPartialReadWindow(t *testing.T) {
	t.Parallel()

	// While a build holds the marker, readiness must never report Ready.
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "payload"})

	markers := marker.New(".filepart", zap.NewNop())
	target := filepath.Join(t.TempDir(), "out.zip")

	require.NoError(t, markers.Acquire(target))
	require.NoError(t, os.WriteFile(target, []byte("half"), 0o644))
	require.Equal(t, marker.InProgress, markers.Readiness(target))
	require.NoError(t, markers.Release(target))
	require.Equal(t, marker.Ready, markers.Readiness(target))
}
