// Package marker tracks files that are currently being written.
//
// A file is flagged twice while a producer writes it: an entry in an
// in-process set owned by this Store, and a sentinel file next to the target
// on disk. The disk sentinel survives a crash; the set does not. A sentinel
// without a matching set entry therefore identifies a crash leftover whose
// target must not be trusted.
package marker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"filedepot/internal/errs"
)

// Readiness is the tri-state answer to "may this file be read".
type Readiness int

const (
	// Ready means the file exists and no marker references it.
	Ready Readiness = iota + 1
	// InProgress means a write is in flight, or a leftover could not be cleaned up.
	InProgress
	// Absent means the file does not exist.
	Absent
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case InProgress:
		return "in-progress"
	case Absent:
		return "absent"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// Store owns the in-process marker set and the sentinel naming convention.
// The set is a performance cache over the filesystem; disk is authoritative.
type Store struct {
	ext string
	log *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New constructs a Store using ext (e.g. ".filepart") as the sentinel extension.
func New(ext string, log *zap.Logger) *Store {
	return &Store{ext: ext, log: log, inflight: make(map[string]struct{})}
}

// SentinelPath returns the on-disk sentinel path for target.
func (s *Store) SentinelPath(target string) string { return target + s.ext }

// IsSentinelName reports whether a file name is itself a sentinel.
func (s *Store) IsSentinelName(name string) bool { return strings.HasSuffix(name, s.ext) }

// TargetPath returns the target a sentinel path guards. Inverse of SentinelPath.
func (s *Store) TargetPath(sentinel string) string { return strings.TrimSuffix(sentinel, s.ext) }

// Acquire flags target as being written: creates (or truncates) the sentinel
// and adds target to the in-process set. A sentinel or set entry that already
// exists is suspicious (the caller should have consulted Readiness first),
// but Acquire still succeeds; the path stays flagged either way.
func (s *Store) Acquire(target string) error {
	sentinel := s.SentinelPath(target)
	if _, err := os.Stat(sentinel); err == nil {
		s.log.Warn("sentinel already present on acquire, target may be a leftover",
			zap.String("target", target))
	}
	if err := os.WriteFile(sentinel, nil, 0o644); err != nil {
		return fmt.Errorf("create sentinel: %w", err)
	}

	s.mu.Lock()
	_, dup := s.inflight[target]
	s.inflight[target] = struct{}{}
	s.mu.Unlock()
	if dup {
		s.log.Warn("in-process marker already present on acquire", zap.String("target", target))
	}
	return nil
}

// Release removes the in-process entry unconditionally, then deletes the
// sentinel. The set entry goes first because it is only an approximation;
// a failed sentinel delete is returned so the caller can retry, since the
// sentinel is what makes the target visible to readers.
func (s *Store) Release(target string) error {
	s.mu.Lock()
	delete(s.inflight, target)
	s.mu.Unlock()

	sentinel := s.SentinelPath(target)
	if _, err := os.Stat(sentinel); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat sentinel: %w", err)
	}
	if err := os.Remove(sentinel); err != nil {
		return fmt.Errorf("remove sentinel: %w", err)
	}
	return nil
}

// Readiness reports whether target may be read. It never fails: I/O errors
// degrade to InProgress (never Ready for a possibly corrupt file).
//
// A disk sentinel without an in-process entry is a crash leftover; Readiness
// remediates by deleting the target and the sentinel. On success the path is
// clean and Absent is reported; on failure InProgress is reported so no reader
// trusts the file.
func (s *Store) Readiness(target string) Readiness {
	if !exists(target) {
		return Absent
	}

	s.mu.Lock()
	_, inProc := s.inflight[target]
	s.mu.Unlock()
	if inProc {
		return InProgress
	}

	if exists(s.SentinelPath(target)) {
		if err := s.removeLeftover(target); err != nil {
			s.log.Error("failed to remove crash leftover", zap.String("target", target), zap.Error(err))
			return InProgress
		}
		return Absent
	}
	return Ready
}

// Active reports whether target has an in-process marker in this Store.
// Unlike HasAnyMarker it ignores disk sentinels, so a crash leftover does not
// count as active.
func (s *Store) Active(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[target]
	return ok
}

// HasAnyMarker reports whether target has an in-process or disk marker, or is
// itself a sentinel file. Listing and serving paths use this as a cheap
// "do not touch" check without the remediation Readiness performs.
func (s *Store) HasAnyMarker(target string) bool {
	if s.IsSentinelName(target) {
		return true
	}
	s.mu.Lock()
	_, inProc := s.inflight[target]
	s.mu.Unlock()
	if inProc {
		return true
	}
	return exists(s.SentinelPath(target))
}

// Reset drops all in-process markers. A restarted process calls this
// implicitly by constructing a fresh Store; tests use it directly.
func (s *Store) Reset() {
	s.mu.Lock()
	s.inflight = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *Store) removeLeftover(target string) error {
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove target: %w", errs.ErrCorruptedState, err)
	}
	if err := os.Remove(s.SentinelPath(target)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove sentinel: %w", errs.ErrCorruptedState, err)
	}
	s.log.Info("removed crash leftover", zap.String("target", filepath.Base(target)))
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
