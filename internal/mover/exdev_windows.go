//go:build windows

package mover

import "syscall"

// ERROR_NOT_SAME_DEVICE is Windows' analogue of EXDEV.
const errorNotSameDevice = syscall.Errno(17)

func isEXDEV(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && errno == errorNotSameDevice
}
