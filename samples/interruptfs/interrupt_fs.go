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

package interruptfs

import (
	"sync"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

var rootAttrs = fuseops.Attributes{
	Nlink: 2,
	Mode:  unix.S_IFDIR | 0777,
}

var fooAttrs = fuseops.Attributes{
	Nlink: 1,
	Mode:  unix.S_IFREG | 0777,
}

// A handler for a file system containing exactly one file, named "foo".
// Reads of the file hang until Interrupt is called, at which point every
// pending read completes with EINTR. Exposes a method for synchronizing with
// the arrival of a read.
//
// Because reads are completed later rather than inside the handler method,
// other operations continue to be served while reads hang.
//
// Must be created with New.
type InterruptFS struct {
	mu sync.Mutex

	// Completions for reads that have arrived and not yet been interrupted.
	pending []fuseops.Completion // GUARDED_BY(mu)

	// Signalled whenever pending grows.
	readArrived sync.Cond
}

func New() (fs *InterruptFS) {
	fs = &InterruptFS{}
	fs.readArrived.L = &fs.mu

	return
}

////////////////////////////////////////////////////////////////////////
// Public interface
////////////////////////////////////////////////////////////////////////

// Block until at least n reads are hanging.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *InterruptFS) WaitForReadsInFlight(n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for len(fs.pending) < n {
		fs.readArrived.Wait()
	}
}

// Complete every hanging read with EINTR, returning how many there were.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *InterruptFS) Interrupt() int {
	fs.mu.Lock()
	pending := fs.pending
	fs.pending = nil
	fs.mu.Unlock()

	for _, complete := range pending {
		complete(fuse3.EINTR)
	}

	return len(pending)
}

////////////////////////////////////////////////////////////////////////
// Handler methods
////////////////////////////////////////////////////////////////////////

func (fs *InterruptFS) Getattr(path string, complete fuseops.Completion) {
	switch path {
	case "/":
		complete(0, rootAttrs)

	case "/foo":
		complete(0, fooAttrs)

	default:
		complete(fuse3.ENOENT)
	}
}

func (fs *InterruptFS) Open(path string, flags uint32, complete fuseops.Completion) {
	if path != "/foo" {
		complete(fuse3.ENOENT)
		return
	}

	complete(0)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *InterruptFS) Read(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.pending = append(fs.pending, complete)
	fs.readArrived.Broadcast()
}
