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

package errorfs

import (
	"sync"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

const FooContents = "xxxx"

// A handler for a file system whose sole contents are a file named "foo"
// containing the string defined by FooContents.
//
// The handler can be configured to complete particular kinds of operation
// with canned error statuses using the method SetError. It serves the handler
// method set through an Ops map, so kinds it has no function for are missing.
//
// Must be created with New.
type FS struct {
	mu sync.Mutex

	// Canned statuses, by kind.
	//
	// INVARIANT: For each v, v < 0
	errors map[fuseops.Kind]int // GUARDED_BY(mu)
}

func New() *FS {
	return &FS{
		errors: make(map[fuseops.Kind]int),
	}
}

// Cause the handler to complete all future operations of the given kind with
// the given status, which must be negative. A zero status clears the error.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *FS) SetError(k fuseops.Kind, status int) {
	if status > 0 {
		panic("SetError: positive status")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if status == 0 {
		delete(fs.errors, k)
		return
	}

	fs.errors[k] = status
}

// Return the handler functions to mount, keyed by operation name.
func (fs *FS) Ops() fuse3.Ops {
	return fuse3.Ops{
		fuseops.OpGetattr.String(): fs.getattr,
		fuseops.OpReaddir.String(): fs.readdir,
		fuseops.OpOpen.String():    fs.open,
		fuseops.OpRead.String():    fs.read,
		fuseops.OpRelease.String(): fs.release,
	}
}

// Complete with the canned error for k, if there is one.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *FS) transformError(
	k fuseops.Kind,
	complete fuseops.Completion) bool {
	fs.mu.Lock()
	status, ok := fs.errors[k]
	fs.mu.Unlock()

	if ok {
		complete(status)
	}

	return ok
}

////////////////////////////////////////////////////////////////////////
// Handler functions
////////////////////////////////////////////////////////////////////////

func (fs *FS) getattr(path string, complete fuseops.Completion) {
	if fs.transformError(fuseops.OpGetattr, complete) {
		return
	}

	switch path {
	case "/":
		complete(0, fuseops.Attributes{
			Nlink: 2,
			Mode:  unix.S_IFDIR | 0777,
		})

	case "/foo":
		complete(0, fuseops.Attributes{
			Nlink: 1,
			Mode:  unix.S_IFREG | 0444,
			Size:  uint64(len(FooContents)),
		})

	default:
		complete(fuse3.ENOENT)
	}
}

func (fs *FS) readdir(path string, complete fuseops.Completion) {
	if fs.transformError(fuseops.OpReaddir, complete) {
		return
	}

	complete(0, []string{"foo"})
}

func (fs *FS) open(path string, flags uint32, complete fuseops.Completion) {
	if fs.transformError(fuseops.OpOpen, complete) {
		return
	}

	complete(0)
}

func (fs *FS) read(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	if fs.transformError(fuseops.OpRead, complete) {
		return
	}

	if offset < 0 || offset > int64(len(FooContents)) {
		complete(fuse3.EINVAL)
		return
	}

	n, _ := buf.Write([]byte(FooContents[offset:]))
	complete(n)
}

func (fs *FS) release(path string, fh uint64, complete fuseops.Completion) {
	if fs.transformError(fuseops.OpRelease, complete) {
		return
	}

	complete(0)
}
