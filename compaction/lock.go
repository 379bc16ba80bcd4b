package compaction

import (
	"path/filepath"
	"sync"
)

// transcriptLocks serializes compaction per transcript within the process.
var transcriptLocks = newPathLocks()

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// pathLocks is a set of mutexes keyed by cleaned absolute path. Entries are
// dropped once no caller holds or waits on them.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// lock blocks until the caller owns path and returns the unlock func.
func (l *pathLocks) lock(path string) func() {
	key := canonicalPath(path)

	l.mu.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &pathLock{}
		l.locks[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()

	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// size returns the number of tracked paths.
func (l *pathLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// lockPath is the sidecar file used for cross-process locking.
func lockPath(path string) string {
	return path + ".lock"
}
