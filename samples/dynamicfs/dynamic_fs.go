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

package dynamicfs

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

// Create a handler that contains 2 files (`age` and `weekday`) and no
// directories. Every time the `age` file is opened, its contents are refreshed
// to show the number of seconds elapsed since the handler was created (as
// opposed to mounted). Every time the `weekday` file is opened, its contents
// are refreshed to reflect the current weekday.
//
// File sizes are reported as 0, simulating a data source whose metadata isn't
// known before it is read. Reads therefore only work with the "direct" open
// cache policy; otherwise the kernel stops at what it believes is EOF.
func NewDynamicFS(clock timeutil.Clock) *DynamicFS {
	return &DynamicFS{
		clock:       clock,
		createTime:  clock.Now(),
		fileHandles: make(map[uint64]string),
		nextHandle:  1,
	}
}

type DynamicFS struct {
	clock      timeutil.Clock
	createTime time.Time

	mu sync.Mutex

	// Contents snapshotted at open time, by handle.
	fileHandles map[uint64]string // GUARDED_BY(mu)
	nextHandle  uint64            // GUARDED_BY(mu)
}

var gAttributes = map[string]fuseops.Attributes{
	"/": {
		Nlink: 2,
		Mode:  unix.S_IFDIR | 0555,
	},

	"/age": {
		Nlink: 1,
		Mode:  unix.S_IFREG | 0444,
	},

	// Size left at 0.
	"/weekday": {
		Nlink: 1,
		Mode:  unix.S_IFREG | 0444,
	},
}

func (fs *DynamicFS) Getattr(path string, complete fuseops.Completion) {
	attrs, ok := gAttributes[path]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	complete(0, attrs)
}

func (fs *DynamicFS) Readdir(path string, complete fuseops.Completion) {
	if path != "/" {
		complete(fuse3.ENOTDIR)
		return
	}

	complete(0, []string{"age", "weekday"})
}

func (fs *DynamicFS) Open(path string, flags uint32, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Update file contents on (and only on) open.
	var contents string
	switch path {
	case "/age":
		ageInSeconds := int(fs.clock.Now().Sub(fs.createTime).Seconds())
		contents = fmt.Sprintf("This filesystem is %d seconds old.", ageInSeconds)

	case "/weekday":
		contents = fmt.Sprintf("Today is %s.", fs.clock.Now().Weekday())

	default:
		complete(fuse3.EINVAL)
		return
	}

	handle := fs.nextHandle
	fs.nextHandle++
	fs.fileHandles[handle] = contents

	complete(0, handle)
}

func (fs *DynamicFS) Read(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	fs.mu.Lock()
	contents, ok := fs.fileHandles[fh]
	fs.mu.Unlock()

	if !ok {
		log.Printf("Read: no open file handle: %d", fh)
		complete(fuse3.EIO)
		return
	}

	// Hand back our own bytes rather than filling buf.
	p := make([]byte, length)
	n, err := strings.NewReader(contents).ReadAt(p, offset)
	if err != nil && err != io.EOF {
		complete(fuse3.EINVAL)
		return
	}

	complete(n, p[:n])
}

func (fs *DynamicFS) Release(path string, fh uint64, complete fuseops.Completion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.fileHandles[fh]; !ok {
		log.Printf("Release: bad handle: %d", fh)
		complete(fuse3.EIO)
		return
	}

	delete(fs.fileHandles, fh)
	complete(0)
}
