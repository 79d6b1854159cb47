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

// Package roloopbackfs mirrors a directory of the host file system,
// read-only.
package roloopbackfs

import (
	"errors"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

// A handler that exposes the tree rooted at a host directory. Lookups and
// listings complete inline; reads are served from their own goroutines so
// that a slow disk never holds up the handler goroutine. Anything that would
// modify the tree fails with EROFS.
type ReadonlyLoopbackFS struct {
	root   string
	logger *log.Logger

	mu sync.Mutex

	// Open host files, by the handle we gave the kernel.
	files      map[uint64]*os.File // GUARDED_BY(mu)
	nextHandle uint64              // GUARDED_BY(mu)
}

// Create a handler mirroring loopbackPath, which must be a directory.
// Unexpected host errors are written to logger.
func NewReadonlyLoopbackFS(
	loopbackPath string,
	logger *log.Logger) (*ReadonlyLoopbackFS, error) {
	fi, err := os.Stat(loopbackPath)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		return nil, &os.PathError{Op: "mirror", Path: loopbackPath, Err: unix.ENOTDIR}
	}

	return &ReadonlyLoopbackFS{
		root:       loopbackPath,
		logger:     logger,
		files:      make(map[uint64]*os.File),
		nextHandle: 1,
	}, nil
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Map a mount-relative path onto the host. The path is cleaned against the
// root first, so ".." can never climb out of the mirrored tree.
func (fs *ReadonlyLoopbackFS) hostPath(p string) string {
	return filepath.Join(fs.root, filepath.FromSlash(path.Clean("/"+p)))
}

// Translate a host error into a negative status.
func (fs *ReadonlyLoopbackFS) status(op string, err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}

	fs.logger.Printf("%s: %v", op, err)
	return fuse3.EIO
}

func attributesOf(fi os.FileInfo) (attrs fuseops.Attributes) {
	attrs = fuseops.Attributes{
		Size:  uint64(fi.Size()),
		Nlink: 1,
		Mode:  uint32(fi.Mode().Perm()),
		Atime: fi.ModTime(),
		Mtime: fi.ModTime(),
		Ctime: fi.ModTime(),
	}

	switch {
	case fi.IsDir():
		attrs.Mode |= unix.S_IFDIR
		attrs.Size = 0
		attrs.Nlink = 2
	case fi.Mode()&os.ModeSymlink != 0:
		attrs.Mode |= unix.S_IFLNK
	default:
		attrs.Mode |= unix.S_IFREG
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		attrs.Nlink = uint32(st.Nlink)
		attrs.Uid = st.Uid
		attrs.Gid = st.Gid
	}

	return
}

func (fs *ReadonlyLoopbackFS) file(fh uint64) *os.File {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.files[fh]
}

////////////////////////////////////////////////////////////////////////
// Handler methods
////////////////////////////////////////////////////////////////////////

func (fs *ReadonlyLoopbackFS) Getattr(p string, complete fuseops.Completion) {
	fi, err := os.Lstat(fs.hostPath(p))
	if err != nil {
		complete(fs.status("getattr", err))
		return
	}

	complete(0, attributesOf(fi))
}

func (fs *ReadonlyLoopbackFS) Readdir(p string, complete fuseops.Completion) {
	entries, err := os.ReadDir(fs.hostPath(p))
	if err != nil {
		complete(fs.status("readdir", err))
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	complete(0, names)
}

func (fs *ReadonlyLoopbackFS) Open(p string, flags uint32, complete fuseops.Completion) {
	if flags&unix.O_ACCMODE != unix.O_RDONLY || flags&unix.O_TRUNC != 0 {
		complete(fuse3.EROFS)
		return
	}

	f, err := os.Open(fs.hostPath(p))
	if err != nil {
		complete(fs.status("open", err))
		return
	}

	fs.mu.Lock()
	fh := fs.nextHandle
	fs.nextHandle++
	fs.files[fh] = f
	fs.mu.Unlock()

	complete(0, fh)
}

func (fs *ReadonlyLoopbackFS) Read(
	p string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	f := fs.file(fh)
	if f == nil {
		complete(fuse3.EBADF)
		return
	}

	go func() {
		data := make([]byte, length)
		n, err := f.ReadAt(data, offset)

		// FUSE doesn't expect us to return io.EOF.
		if err != nil && err != io.EOF {
			complete(fs.status("read", err))
			return
		}

		buf.WriteAt(data[:n], 0)
		complete(n)
	}()
}

func (fs *ReadonlyLoopbackFS) Release(p string, fh uint64, complete fuseops.Completion) {
	fs.mu.Lock()
	f, ok := fs.files[fh]
	delete(fs.files, fh)
	fs.mu.Unlock()

	if !ok {
		complete(fuse3.EBADF)
		return
	}

	if err := f.Close(); err != nil {
		complete(fs.status("release", err))
		return
	}

	complete(0)
}

func (fs *ReadonlyLoopbackFS) Access(p string, mask uint32, complete fuseops.Completion) {
	if mask&unix.W_OK != 0 {
		complete(fuse3.EROFS)
		return
	}

	if _, err := os.Lstat(fs.hostPath(p)); err != nil {
		complete(fs.status("access", err))
		return
	}

	complete(0)
}

// The number of host files currently held open.
func (fs *ReadonlyLoopbackFS) OpenFiles() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return len(fs.files)
}

func (fs *ReadonlyLoopbackFS) readOnly(complete fuseops.Completion) {
	complete(fuse3.EROFS)
}

func (fs *ReadonlyLoopbackFS) Write(
	p string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Create(p string, mode uint32, complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Unlink(p string, complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Mkdir(p string, mode uint32, complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Rmdir(p string, complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Rename(from string, to string, complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Truncate(p string, size int64, complete fuseops.Completion) {
	fs.readOnly(complete)
}

func (fs *ReadonlyLoopbackFS) Chmod(p string, mode uint32, complete fuseops.Completion) {
	fs.readOnly(complete)
}
