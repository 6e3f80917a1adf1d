//go:build windows

package filestore

import (
	"math"
	"os"

	"golang.org/x/sys/windows"
)

// lockSlotFile blocks until f's lock is held over the whole byte range.
// Loads share the lock; a write or clear holds it alone.
func lockSlotFile(f *os.File, exclusive bool) error {
	var flags uint32
	if exclusive {
		flags = windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, math.MaxUint32, math.MaxUint32, new(windows.Overlapped))
}

func unlockSlotFile(f *os.File) error {
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, math.MaxUint32, math.MaxUint32, new(windows.Overlapped))
}
