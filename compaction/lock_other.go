//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package compaction

// lockFile is a no-op where flock(2) is unavailable; only the in-process
// lock applies.
func lockFile(string) (func() error, error) {
	return func() error { return nil }, nil
}

func lockUnavailable(error) bool {
	return false
}
