//go:build unix

package fs

import "golang.org/x/sys/unix"

// statfs_unix.go reports free space via statfs on Unix systems.
// Retention's min-free-space rule and the pre-transfer check both rely on it.

func freeSpaceOf(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
