package compaction

import (
	"bytes"
	"fmt"
	"os"
)

// replaceFile atomically replaces path with content.
//
// original is what the caller read. If the file has since grown by pure
// appends, the appended tail is carried over onto content and returned.
// Any other change aborts with ErrConcurrentModification.
func replaceFile(path string, original, content []byte) ([]byte, error) {
	current, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("re-reading transcript: %w", err)
	}

	var tail []byte
	if !bytes.Equal(current, original) {
		if len(current) < len(original) || !bytes.HasPrefix(current, original) {
			return nil, ErrConcurrentModification
		}
		tail = current[len(original):]
		content = append(content[:len(content):len(content)], tail...)
	}

	if err := writeAtomic(path, content); err != nil {
		return nil, err
	}
	return tail, nil
}
