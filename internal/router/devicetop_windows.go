//go:build windows

package router

import "path/filepath"

// deviceTop has no st_dev equivalent on Windows; the volume name (drive
// letter or UNC share) is the closest analogue of a device boundary, so
// the walk stops at the volume root instead.
func deviceTop(dir string) (string, error) {
	vol := filepath.VolumeName(dir)
	top := dir
	for {
		parent := filepath.Dir(top)
		if parent == top || filepath.VolumeName(parent) != vol {
			return top, nil
		}
		if parent == vol+`\` {
			return parent, nil
		}
		top = parent
	}
}
