//go:build !windows

package filesystem

import "os"

// replaceFile: POSIX rename 在同一文件系统内原子覆盖目标。
func replaceFile(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	err = d.Sync()
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return err
}
