package fs

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemFS is an in-memory FS implementation used by tests. It models just
// enough POSIX behavior for the engine: directories, regular files, hard
// links (shared content, shared inode) and exclusive creation.
type MemFS struct {
	mu    sync.Mutex
	nodes map[string]*memNode
	next  uint64
	// Free is the value returned by FreeSpace.
	Free uint64
}

type memNode struct {
	data  *memData
	mode  os.FileMode
	mtime time.Time
	dir   bool
}

type memData struct {
	bytes []byte
	inode uint64
}

func NewMem() *MemFS {
	return &MemFS{
		nodes: map[string]*memNode{"/": {dir: true, mode: 0o755 | os.ModeDir}},
		next:  1,
		Free:  1 << 40,
	}
}

func clean(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

func (m *MemFS) lookup(p string) (*memNode, bool) {
	n, ok := m.nodes[clean(p)]
	return n, ok
}

func (m *MemFS) info(p string, n *memNode) FileInfo {
	fi := FileInfo{
		Path:  clean(p),
		Mode:  n.mode,
		MTime: n.mtime,
		IsDir: n.dir,
	}
	if n.data != nil {
		fi.Size = int64(len(n.data.bytes))
		fi.Inode = n.data.inode
	}
	return fi
}

func (m *MemFS) Stat(p string) (FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.lookup(p)
	if !ok {
		return FileInfo{}, &os.PathError{Op: "stat", Path: p, Err: os.ErrNotExist}
	}
	return m.info(p, n), nil
}

func (m *MemFS) Lstat(p string) (FileInfo, error) {
	// MemFS has no symlinks, so Lstat and Stat agree.
	return m.Stat(p)
}

func (m *MemFS) ReadDir(p string) ([]DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir, ok := m.lookup(p)
	if !ok {
		return nil, &os.PathError{Op: "readdir", Path: p, Err: os.ErrNotExist}
	}
	if !dir.dir {
		return nil, &os.PathError{Op: "readdir", Path: p, Err: os.ErrInvalid}
	}

	prefix := clean(p)
	if prefix != "/" {
		prefix += "/"
	}

	var out []DirEntry
	for full, n := range m.nodes {
		if !strings.HasPrefix(full, prefix) || full == clean(p) {
			continue
		}
		rest := strings.TrimPrefix(full, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		out = append(out, DirEntry{Name: rest, IsDir: n.dir})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemFS) ReadFile(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.lookup(p)
	if !ok || n.dir {
		return nil, &os.PathError{Op: "open", Path: p, Err: os.ErrNotExist}
	}
	return append([]byte(nil), n.data.bytes...), nil
}

func (m *MemFS) WriteFile(p string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(p, data, perm, false)
}

func (m *MemFS) CreateExclusive(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(p, data, 0o644, true)
}

func (m *MemFS) writeLocked(p string, data []byte, perm os.FileMode, excl bool) error {
	if _, ok := m.lookup(path.Dir(clean(p))); !ok {
		return &os.PathError{Op: "open", Path: p, Err: os.ErrNotExist}
	}
	if n, ok := m.lookup(p); ok {
		if excl || n.dir {
			return &os.PathError{Op: "open", Path: p, Err: os.ErrExist}
		}
		n.data.bytes = append([]byte(nil), data...)
		n.mtime = time.Now()
		return nil
	}

	m.nodes[clean(p)] = &memNode{
		data:  &memData{bytes: append([]byte(nil), data...), inode: m.nextInode()},
		mode:  perm,
		mtime: time.Now(),
	}
	return nil
}

func (m *MemFS) nextInode() uint64 {
	ino := m.next
	m.next++
	return ino
}

func (m *MemFS) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := "/"
	for _, part := range strings.Split(clean(p), "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		if n, ok := m.nodes[cur]; ok {
			if !n.dir {
				return &os.PathError{Op: "mkdir", Path: cur, Err: os.ErrExist}
			}
			continue
		}
		m.nodes[cur] = &memNode{dir: true, mode: 0o755 | os.ModeDir, mtime: time.Now()}
	}
	return nil
}

func (m *MemFS) Rename(ctx context.Context, oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldClean, newClean := clean(oldPath), clean(newPath)
	if _, ok := m.nodes[oldClean]; !ok {
		return &os.PathError{Op: "rename", Path: oldPath, Err: os.ErrNotExist}
	}

	moved := map[string]*memNode{}
	for full, n := range m.nodes {
		if full == oldClean || strings.HasPrefix(full, oldClean+"/") {
			moved[newClean+strings.TrimPrefix(full, oldClean)] = n
			delete(m.nodes, full)
		}
	}
	for full, n := range moved {
		m.nodes[full] = n
	}
	return nil
}

func (m *MemFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.lookup(p)
	if !ok {
		return &os.PathError{Op: "remove", Path: p, Err: os.ErrNotExist}
	}
	if n.dir {
		entries, _ := m.readDirNamesLocked(p)
		if len(entries) > 0 {
			return &os.PathError{Op: "remove", Path: p, Err: os.ErrInvalid}
		}
	}
	delete(m.nodes, clean(p))
	return nil
}

func (m *MemFS) readDirNamesLocked(p string) ([]string, error) {
	prefix := clean(p) + "/"
	var names []string
	for full := range m.nodes {
		if strings.HasPrefix(full, prefix) && !strings.Contains(strings.TrimPrefix(full, prefix), "/") {
			names = append(names, strings.TrimPrefix(full, prefix))
		}
	}
	return names, nil
}

func (m *MemFS) Link(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.lookup(oldPath)
	if !ok || src.dir {
		return &os.PathError{Op: "link", Path: oldPath, Err: os.ErrNotExist}
	}
	if _, ok := m.lookup(newPath); ok {
		return &os.PathError{Op: "link", Path: newPath, Err: os.ErrExist}
	}
	if _, ok := m.lookup(path.Dir(clean(newPath))); !ok {
		return &os.PathError{Op: "link", Path: newPath, Err: os.ErrNotExist}
	}

	m.nodes[clean(newPath)] = &memNode{data: src.data, mode: src.mode, mtime: src.mtime}
	return nil
}

func (m *MemFS) FreeSpace(string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Free, nil
}
