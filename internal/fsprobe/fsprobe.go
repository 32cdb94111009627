// Package fsprobe checks destination filesystem capabilities before a run.
// It performs a real create+link test, since mount options and filesystem
// types lie less than documentation.
package fsprobe

import (
	"fmt"
	"path/filepath"

	"github.com/bgurmendi/backintime/internal/fs"
)

// Result reports destination capabilities and why one is missing.
type Result struct {
	HardLinks bool   // true if hard links work within dir
	FreeBytes uint64 // free space on the filesystem containing dir
	Reason    string // explanation when hard links are unsupported
}

// Probe tests whether dir supports hard links and reports its free space.
func Probe(fsys fs.FS, dir string) Result {
	st, err := fsys.Stat(dir)
	if err != nil {
		return Result{Reason: fmt.Sprintf("stat failed: %v", err)}
	}
	if !st.IsDir {
		return Result{Reason: "not a directory"}
	}

	res := Result{}
	if free, err := fsys.FreeSpace(dir); err == nil {
		res.FreeBytes = free
	}

	tmp := filepath.Join(dir, ".linkprobe_tmp")
	linked := filepath.Join(dir, ".linkprobe_link")

	if err := fsys.CreateExclusive(tmp, []byte("probe")); err != nil {
		res.Reason = fmt.Sprintf("cannot create probe file: %v", err)
		return res
	}
	defer func() {
		_ = fsys.Remove(tmp)
		_ = fsys.Remove(linked)
	}()

	if err := fsys.Link(tmp, linked); err != nil {
		res.Reason = fmt.Sprintf("hard links unsupported: %v", err)
		return res
	}

	res.HardLinks = true
	return res
}
