//go:build windows

package scheduler

import "os"

// Windows ACLs are not reflected in mode bits, so probe with a real file.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".snapzone-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
