// Package snapshot implements the Hasher / Snapshot Store (spec §4.5, C5):
// per-file content hashing, atomic persistence, and diffing against the
// live tree to drive incremental sync. Grounded in the teacher pack's
// ferg-cod3s-conexus Merkle-tree hashing and atomic-rename persistence
// idiom, simplified to the flat path->hash map spec §6.4 calls for.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/pathfilter"
)

// Store persists and reloads a Snapshot for a codebase root, and computes
// diffs between snapshots.
type Store struct {
	dir    string // directory snapshot files are kept in
	logger *zap.Logger
}

// NewStore creates a Store that keeps snapshot files under dir (created if
// missing).
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// pathFor derives the well-known snapshot file location for root, keyed by
// the first 16 hex chars of the SHA-256 of the canonicalized absolute path
// (the same canonicalization identity uses for collection names), so two
// different codebases never collide.
func (s *Store) pathFor(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	name := hex.EncodeToString(sum[:])[:16] + ".snapshot.json"
	return filepath.Join(s.dir, name), nil
}

// Load reads the persisted snapshot for root, or an empty snapshot if none
// exists yet (spec §4.10 Snapshot lifecycle: Absent -> Present(v)).
func (s *Store) Load(root string) (*model.Snapshot, error) {
	path, err := s.pathFor(root)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewSnapshot(root, 0), nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Hashes == nil {
		snap.Hashes = make(map[string]string)
	}
	return &snap, nil
}

// Save persists snap atomically: write to a sibling temp file, then rename
// (spec §4.5), so a crash mid-write never corrupts the previous snapshot.
func (s *Store) Save(snap *model.Snapshot) error {
	path, err := s.pathFor(snap.Root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Delete removes the persisted snapshot for root. Idempotent: a missing
// file is not an error (spec §4.5 delete_snapshot).
func (s *Store) Delete(root string) error {
	path, err := s.pathFor(root)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Initialize walks the filtered tree rooted at root and records a content
// hash for every included file (spec §4.5 initialize).
func (s *Store) Initialize(root string, filter *pathfilter.Filter) (*model.Snapshot, error) {
	snap := model.NewSnapshot(root, nowUnix())

	err := pathfilter.Walk(root, filter, s.logger, func(rec model.FileRecord) error {
		hash, err := HashFile(rec.AbsPath)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to hash file, skipping", zap.String("path", rec.AbsPath), zap.Error(err))
			}
			return nil
		}
		snap.Hashes[rec.RelPath] = hash
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk for hashing: %w", err)
	}
	return snap, nil
}

// HashFile computes the SHA-256 hex digest of a file's bytes (spec §4.5).
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes computes the SHA-256 hex digest of in-memory content, used when
// the pipeline has already read a file and wants to avoid re-reading it for
// the snapshot update.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func nowUnix() int64 { return time.Now().Unix() }

// Diff compares previous and current snapshots, returning disjoint
// added/modified/removed sets (spec §4.5 diff).
func Diff(previous, current *model.Snapshot) model.DiffResult {
	var result model.DiffResult

	for path, hash := range current.Hashes {
		oldHash, existed := previous.Hashes[path]
		switch {
		case !existed:
			result.Added = append(result.Added, path)
		case oldHash != hash:
			result.Modified = append(result.Modified, path)
		}
	}
	for path := range previous.Hashes {
		if _, stillPresent := current.Hashes[path]; !stillPresent {
			result.Removed = append(result.Removed, path)
		}
	}
	return result
}
