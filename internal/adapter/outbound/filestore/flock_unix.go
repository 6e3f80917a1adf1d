//go:build !windows

package filestore

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// lockSlotFile blocks until f's advisory lock is held. Loads share the lock;
// a write or clear holds it alone.
func lockSlotFile(f *os.File, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func unlockSlotFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
