//go:build windows

package compaction

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic replaces path through a synced temp file. renameio does not
// build on Windows; os.Rename there maps to MoveFileEx with
// MOVEFILE_REPLACE_EXISTING.
func writeAtomic(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat transcript: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp transcript: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp transcript: %w", err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting transcript mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing transcript %s: %w", path, err)
	}
	return nil
}
