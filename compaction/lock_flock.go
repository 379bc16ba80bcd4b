//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package compaction

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive advisory lock on path, creating it if needed.
// Hook processes launched by the agent runtime for overlapping tool calls
// contend on this lock. Release removes path before unlocking.
func lockFile(path string) (func() error, error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, err
		}

		if err := flock(f, unix.LOCK_EX); err != nil {
			f.Close()
			return nil, err
		}

		// The previous holder removes path on release; a lock on an unlinked
		// inode excludes nobody, so start over on a fresh file.
		same, err := sameFile(f, path)
		if err != nil {
			f.Close()
			return nil, err
		}
		if !same {
			f.Close()
			continue
		}

		return func() error {
			removeErr := os.Remove(path)
			if errors.Is(removeErr, fs.ErrNotExist) {
				removeErr = nil
			}
			unlockErr := flock(f, unix.LOCK_UN)
			closeErr := f.Close()
			return errors.Join(removeErr, unlockErr, closeErr)
		}, nil
	}
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			return err
		}
	}
}

// sameFile reports whether f is still the file linked at path.
func sameFile(f *os.File, path string) (bool, error) {
	var held, linked unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &held); err != nil {
		return false, err
	}
	if err := unix.Stat(path, &linked); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, err
	}
	return held.Dev == linked.Dev && held.Ino == linked.Ino, nil
}

// lockUnavailable reports whether err means the lock file cannot be created
// at all, as in a read-only or foreign-owned directory.
func lockUnavailable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, unix.EROFS)
}
