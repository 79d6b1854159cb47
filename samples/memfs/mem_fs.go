// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memfs contains a handler that keeps a whole file system tree in
// memory. Reads are completed from a separate goroutine, so the handler
// goroutine is free to pick up the next operation while they are served.
package memfs

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

type MemFS struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	// The UID and GID that own new inodes.
	uid uint32
	gid uint32

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// Every live inode, indexed by absolute path.
	//
	// INVARIANT: inodes["/"] is a directory
	// INVARIANT: For each path p != "/", inodes[path.Dir(p)] is a directory
	//            listing path.Base(p)
	// INVARIANT: For each directory d, every entry of d is in the map
	inodes map[string]*inode // GUARDED_BY(mu)

	// The path each open handle refers to.
	//
	// INVARIANT: For all keys k, 0 < k < nextHandle
	handles map[uint64]string // GUARDED_BY(mu)

	// INVARIANT: nextHandle > 0
	nextHandle uint64 // GUARDED_BY(mu)
}

// Create a handler that stores data and metadata in memory, owned by the
// given IDs.
func NewMemFS(
	uid uint32,
	gid uint32,
	clock timeutil.Clock) (fs *MemFS) {
	// Set up the basic struct.
	fs = &MemFS{
		clock:      clock,
		uid:        uid,
		gid:        gid,
		inodes:     make(map[string]*inode),
		handles:    make(map[uint64]string),
		nextHandle: 1,
	}

	// Set up the root inode.
	fs.inodes["/"] = newInode(clock, fuseops.Attributes{
		Mode:  unix.S_IFDIR | 0777,
		Nlink: 2,
		Uid:   uid,
		Gid:   gid,
	})

	// Set up invariant checking.
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return
}

func (fs *MemFS) checkInvariants() {
	// Check general inode invariants.
	for _, in := range fs.inodes {
		in.checkInvariants()
	}

	// INVARIANT: inodes["/"] is a directory
	if root, ok := fs.inodes["/"]; !ok || !root.isDir() {
		panic("Missing or non-directory root")
	}

	for p := range fs.inodes {
		if p == "/" {
			continue
		}

		// INVARIANT: For each path p != "/", inodes[path.Dir(p)] is a directory
		// listing path.Base(p)
		parent, ok := fs.inodes[path.Dir(p)]
		if !ok || !parent.isDir() {
			panic(fmt.Sprintf("No parent directory for %q", p))
		}

		if !contains(parent.entries, path.Base(p)) {
			panic(fmt.Sprintf("Parent doesn't list %q", p))
		}
	}

	// INVARIANT: For each directory d, every entry of d is in the map
	for p, in := range fs.inodes {
		for _, name := range in.entries {
			if _, ok := fs.inodes[path.Join(p, name)]; !ok {
				panic(fmt.Sprintf("Dangling entry %q in %q", name, p))
			}
		}
	}

	// INVARIANT: For all keys k, 0 < k < nextHandle
	for k := range fs.handles {
		if !(0 < k && k < fs.nextHandle) {
			panic(fmt.Sprintf("Unexpected handle %d (next %d)", k, fs.nextHandle))
		}
	}

	// INVARIANT: nextHandle > 0
	if fs.nextHandle == 0 {
		panic("nextHandle wrapped")
	}
}

func contains(sorted []string, name string) bool {
	for _, e := range sorted {
		if e == name {
			return true
		}
	}

	return false
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Find the directory that would hold p, returning a status if there is no
// such directory.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *MemFS) parentOf(p string) (parent *inode, status int) {
	parent, ok := fs.inodes[path.Dir(p)]
	switch {
	case !ok:
		status = fuse3.ENOENT

	case !parent.isDir():
		status = fuse3.ENOTDIR
	}

	return
}

// Create a child of the appropriate parent, returning a status on failure.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *MemFS) createChild(
	p string,
	attrs fuseops.Attributes) (child *inode, status int) {
	parent, status := fs.parentOf(p)
	if status != 0 {
		return
	}

	if _, ok := fs.inodes[p]; ok {
		status = fuse3.EEXIST
		return
	}

	attrs.Uid = fs.uid
	attrs.Gid = fs.gid

	child = newInode(fs.clock, attrs)
	fs.inodes[p] = child
	parent.AddChild(path.Base(p))

	return
}

// LOCKS_REQUIRED(fs.mu)
func (fs *MemFS) newHandle(p string) (fh uint64) {
	fh = fs.nextHandle
	fs.nextHandle++
	fs.handles[fh] = p

	return
}

// Is p equal to dir or underneath it?
func within(p string, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}

////////////////////////////////////////////////////////////////////////
// Operations
////////////////////////////////////////////////////////////////////////

func (fs *MemFS) Getattr(p string, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	complete(0, in.attrs)
}

func (fs *MemFS) Readdir(p string, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	switch {
	case !ok:
		complete(fuse3.ENOENT)

	case !in.isDir():
		complete(fuse3.ENOTDIR)

	default:
		complete(0, in.Entries())
	}
}

func (fs *MemFS) Open(p string, flags uint32, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	if in.isDir() && flags&unix.O_ACCMODE != unix.O_RDONLY {
		complete(fuse3.EISDIR)
		return
	}

	if in.isFile() && flags&unix.O_TRUNC != 0 {
		in.Truncate(0)
	}

	complete(0, fs.newHandle(p))
}

// Reads are served from a goroutine of their own, which fills in buf and then
// completes.
func (fs *MemFS) Read(
	p string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	go fs.serveRead(p, buf, length, offset, complete)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *MemFS) serveRead(
	p string,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	switch {
	case !ok:
		complete(fuse3.ENOENT)
		return

	case !in.isFile():
		complete(fuse3.EISDIR)
		return

	case offset < 0:
		complete(fuse3.EINVAL)
		return
	}

	// io.EOF is the normal way to report a short read here.
	data := make([]byte, length)
	n, _ := in.ReadAt(data, offset)
	in.attrs.Atime = fs.clock.Now()

	buf.WriteAt(data[:n], 0)
	complete(n)
}

func (fs *MemFS) Write(
	p string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	switch {
	case !ok:
		complete(fuse3.ENOENT)
		return

	case !in.isFile():
		complete(fuse3.EISDIR)
		return

	case offset < 0:
		complete(fuse3.EINVAL)
		return
	}

	n, _ := in.WriteAt(buf.Bytes(), offset)
	complete(n)
}

func (fs *MemFS) Create(p string, mode uint32, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, status := fs.createChild(p, fuseops.Attributes{
		Mode:  unix.S_IFREG | mode&0777,
		Nlink: 1,
	})

	if status != 0 {
		complete(status)
		return
	}

	complete(0, fs.newHandle(p))
}

func (fs *MemFS) Mkdir(p string, mode uint32, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, status := fs.createChild(p, fuseops.Attributes{
		Mode:  unix.S_IFDIR | mode&0777,
		Nlink: 2,
	})

	complete(status)
}

func (fs *MemFS) Unlink(p string, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	switch {
	case !ok:
		complete(fuse3.ENOENT)
		return

	case in.isDir():
		complete(fuse3.EISDIR)
		return
	}

	fs.inodes[path.Dir(p)].RemoveChild(path.Base(p))
	delete(fs.inodes, p)

	complete(0)
}

func (fs *MemFS) Rmdir(p string, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	switch {
	case !ok:
		complete(fuse3.ENOENT)
		return

	case !in.isDir():
		complete(fuse3.ENOTDIR)
		return

	case p == "/":
		complete(fuse3.EBUSY)
		return

	case in.Len() != 0:
		complete(fuse3.ENOTEMPTY)
		return
	}

	fs.inodes[path.Dir(p)].RemoveChild(path.Base(p))
	delete(fs.inodes, p)

	complete(0)
}

// Moves a file or a whole directory tree. An existing target is replaced if
// it is a file, or an empty directory being replaced by a directory.
func (fs *MemFS) Rename(from string, to string, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	complete(fs.rename(from, to))
}

// LOCKS_REQUIRED(fs.mu)
func (fs *MemFS) rename(from string, to string) int {
	src, ok := fs.inodes[from]
	if !ok {
		return fuse3.ENOENT
	}

	if from == to {
		return 0
	}

	if from == "/" || within(to, from) {
		return fuse3.EINVAL
	}

	newParent, status := fs.parentOf(to)
	if status != 0 {
		return status
	}

	// Deal with an existing target.
	if dst, ok := fs.inodes[to]; ok {
		switch {
		case dst.isDir() && !src.isDir():
			return fuse3.EISDIR

		case !dst.isDir() && src.isDir():
			return fuse3.ENOTDIR

		case dst.isDir() && dst.Len() != 0:
			return fuse3.ENOTEMPTY
		}

		newParent.RemoveChild(path.Base(to))
		delete(fs.inodes, to)
	}

	// Move the inode and everything underneath it.
	moved := make(map[string]*inode)
	for p, in := range fs.inodes {
		if within(p, from) {
			moved[to+strings.TrimPrefix(p, from)] = in
			delete(fs.inodes, p)
		}
	}

	for p, in := range moved {
		fs.inodes[p] = in
	}

	fs.inodes[path.Dir(from)].RemoveChild(path.Base(from))
	newParent.AddChild(path.Base(to))
	src.touchCtime()

	// Handles follow the file.
	for fh, p := range fs.handles {
		if within(p, from) {
			fs.handles[fh] = to + strings.TrimPrefix(p, from)
		}
	}

	return 0
}

// Apply f to the inode at p, completing with ENOENT if there is none.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *MemFS) modify(
	p string,
	complete fuseops.Completion,
	f func(in *inode) int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[p]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	complete(f(in))
}

func (fs *MemFS) Chmod(p string, mode uint32, complete fuseops.Completion) {
	fs.modify(p, complete, func(in *inode) int {
		in.Chmod(mode)
		return 0
	})
}

func (fs *MemFS) Chown(
	p string,
	uid uint32,
	gid uint32,
	complete fuseops.Completion) {
	fs.modify(p, complete, func(in *inode) int {
		in.Chown(uid, gid)
		return 0
	})
}

func (fs *MemFS) Truncate(p string, size int64, complete fuseops.Completion) {
	fs.modify(p, complete, func(in *inode) int {
		switch {
		case !in.isFile():
			return fuse3.EISDIR

		case size < 0:
			return fuse3.EINVAL
		}

		in.Truncate(size)
		return 0
	})
}

func (fs *MemFS) Utimens(
	p string,
	atime time.Time,
	mtime time.Time,
	complete fuseops.Completion) {
	fs.modify(p, complete, func(in *inode) int {
		in.SetTimes(atime, mtime)
		return 0
	})
}

func (fs *MemFS) Release(p string, fh uint64, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.handles, fh)
	complete(0)
}

func (fs *MemFS) Fsync(
	p string,
	datasync bool,
	fh uint64,
	complete fuseops.Completion) {
	// Everything is already as durable as it will ever be.
	fs.modify(p, complete, func(in *inode) int { return 0 })
}

func (fs *MemFS) Flush(p string, fh uint64, complete fuseops.Completion) {
	fs.modify(p, complete, func(in *inode) int { return 0 })
}

// Check mask against the owner's permission bits.
func (fs *MemFS) Access(p string, mask uint32, complete fuseops.Completion) {
	fs.modify(p, complete, func(in *inode) int {
		perm := in.attrs.Mode >> 6 & 07
		if mask&^perm&(unix.R_OK|unix.W_OK|unix.X_OK) != 0 {
			return fuse3.EACCES
		}

		return 0
	})
}

// The number of handles currently open.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *MemFS) OpenHandles() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return len(fs.handles)
}
