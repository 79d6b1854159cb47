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

package flushfs

import (
	"sync"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

// Create a handler for a file system containing a single file named "foo".
//
// The file may be opened for reading and/or writing. Its initial contents are
// empty. Whenever a flush or fsync is received, the supplied function will be
// called with the current contents of the file and its result used as the
// status of the operation.
func NewFileSystem(
	reportFlush func(string) int,
	reportFsync func(string) int) *FlushFS {
	return &FlushFS{
		reportFlush: reportFlush,
		reportFsync: reportFsync,
	}
}

type FlushFS struct {
	reportFlush func(string) int
	reportFsync func(string) int

	mu  sync.Mutex
	foo []byte // GUARDED_BY(mu)
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (fs *FlushFS) rootAttributes() fuseops.Attributes {
	return fuseops.Attributes{
		Nlink: 2,
		Mode:  unix.S_IFDIR | 0777,
	}
}

// LOCKS_REQUIRED(fs.mu)
func (fs *FlushFS) fooAttributes() fuseops.Attributes {
	return fuseops.Attributes{
		Nlink: 1,
		Mode:  unix.S_IFREG | 0777,
		Size:  uint64(len(fs.foo)),
	}
}

////////////////////////////////////////////////////////////////////////
// Handler methods
////////////////////////////////////////////////////////////////////////

func (fs *FlushFS) Getattr(path string, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch path {
	case "/":
		complete(0, fs.rootAttributes())

	case "/foo":
		complete(0, fs.fooAttributes())

	default:
		complete(fuse3.ENOENT)
	}
}

func (fs *FlushFS) Readdir(path string, complete fuseops.Completion) {
	if path != "/" {
		complete(fuse3.ENOTDIR)
		return
	}

	complete(0, []string{"foo"})
}

func (fs *FlushFS) Open(path string, flags uint32, complete fuseops.Completion) {
	if path != "/foo" {
		complete(fuse3.ENOENT)
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if flags&unix.O_TRUNC != 0 {
		fs.foo = nil
	}

	complete(0)
}

func (fs *FlushFS) Read(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Ensure the offset is in range.
	switch {
	case offset < 0:
		complete(fuse3.EINVAL)
		return

	case offset > int64(len(fs.foo)):
		complete(0)
		return
	}

	// Hand over our own copy; the bridge clamps it to the request.
	complete(len(fs.foo[offset:]), append([]byte{}, fs.foo[offset:]...))
}

func (fs *FlushFS) Write(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if offset < 0 {
		complete(fuse3.EINVAL)
		return
	}

	// Ensure that the contents slice is long enough.
	newLen := int(offset) + length
	if len(fs.foo) < newLen {
		padding := make([]byte, newLen-len(fs.foo))
		fs.foo = append(fs.foo, padding...)
	}

	// Copy in the data.
	n, _ := buf.ReadAt(fs.foo[offset:newLen], 0)
	complete(n)
}

func (fs *FlushFS) Flush(path string, fh uint64, complete fuseops.Completion) {
	fs.mu.Lock()
	contents := string(fs.foo)
	fs.mu.Unlock()

	complete(fs.reportFlush(contents))
}

func (fs *FlushFS) Fsync(
	path string,
	datasync bool,
	fh uint64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	contents := string(fs.foo)
	fs.mu.Unlock()

	complete(fs.reportFsync(contents))
}

func (fs *FlushFS) Release(path string, fh uint64, complete fuseops.Completion) {
	complete(0)
}
