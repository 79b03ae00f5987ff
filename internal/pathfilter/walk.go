package pathfilter

import (
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/model"
)

// Walk traverses root, applying f's directory-skip policy and file
// inclusion rules, invoking fn for every included file in lexical order.
// Unreadable directories are logged and skipped; traversal never aborts for
// a single error (spec §4.1 failure model).
func Walk(root string, f *Filter, logger *zap.Logger, fn func(model.FileRecord) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := statRoot(absRoot); err != nil {
		return err
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if logger != nil {
				logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != absRoot && f.ShouldSkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !f.Include(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if logger != nil {
				logger.Warn("skipping file with unreadable info", zap.String("path", path), zap.Error(err))
			}
			return nil
		}

		rec := model.FileRecord{
			AbsPath: path,
			RelPath: f.RelPath(path),
			Ext:     filepath.Ext(path),
			Size:    info.Size(),
		}
		return fn(rec)
	})
}

// statRoot validates that root exists and is a directory, so Walk can
// return a clear error before traversal starts.
func statRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "walk", Path: root, Err: os.ErrInvalid}
	}
	return nil
}
