// Package fs defines the filesystem abstraction used by the snapshot engine.
// It provides the FS interface and the FileInfo type shared across the system.
package fs

import (
	"context"
	"os"
	"time"
)

type FileInfo struct {
	Path  string
	Size  int64
	Mode  os.FileMode
	MTime time.Time
	Inode uint64
	IsDir bool
}

type DirEntry struct {
	Name  string
	IsDir bool
}

type FS interface {
	Stat(path string) (FileInfo, error)
	Lstat(path string) (FileInfo, error)
	ReadDir(path string) ([]DirEntry, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	// CreateExclusive creates path with O_EXCL semantics and fails with
	// os.ErrExist if the path is already present. It is the atomic primitive
	// behind completion markers and lock records.
	CreateExclusive(path string, data []byte) error
	MkdirAll(path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Remove(path string) error
	Link(oldPath, newPath string) error
	// FreeSpace reports the free bytes on the filesystem containing path.
	FreeSpace(path string) (uint64, error)
}
