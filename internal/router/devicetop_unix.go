//go:build !windows

package router

import (
	"path/filepath"
	"syscall"
)

// deviceTop walks upward from dir until st_dev changes, returning the
// last path still on dir's originating device — the mount root, per
// spec.md §4.2 step 4.
func deviceTop(dir string) (string, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(dir, &st); err != nil {
		return "", err
	}
	origDev := st.Dev

	top := dir
	for {
		parent := filepath.Dir(top)
		if parent == top {
			return top, nil
		}
		var pst syscall.Stat_t
		if err := syscall.Stat(parent, &pst); err != nil {
			return top, nil
		}
		if pst.Dev != origDev {
			return top, nil
		}
		top = parent
	}
}
