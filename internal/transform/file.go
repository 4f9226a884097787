package transform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// File transforms the document at srcPath into dstPath. Output goes to a
// temporary file next to dstPath that is renamed into place only when the
// whole document was transformed; on any failure dstPath is left untouched.
func (t *Transformer) File(srcPath, dstPath string) (Stats, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer func() { _ = src.Close() }()

	if dir := filepath.Dir(dstPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Stats{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), filepath.Base(dstPath)+".*.tmp")
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create temporary output for %s: %w", dstPath, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if t.name == "" {
		t.name = srcPath
	}
	stats, err := t.Run(src, tmp)
	if err != nil {
		return stats, err
	}
	if _, err := tmp.WriteString("\n"); err != nil {
		return stats, cloneerr.New(cloneerr.Transform, "write", dstPath, err)
	}
	if err := tmp.Close(); err != nil {
		return stats, cloneerr.New(cloneerr.Transform, "write", dstPath, err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		return stats, fmt.Errorf("failed to move output into place at %s: %w", dstPath, err)
	}
	committed = true
	return stats, nil
}
