//go:build !windows

package compaction

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// writeAtomic writes content to a pending file next to path and renames it
// over path, keeping path's permissions.
func writeAtomic(path string, content []byte) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("creating temp transcript: %w", err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(content); err != nil {
		return fmt.Errorf("writing temp transcript: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing transcript %s: %w", path, err)
	}
	return nil
}
