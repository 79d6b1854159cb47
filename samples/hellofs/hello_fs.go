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

package hellofs

import (
	"io"
	"strings"

	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

// A handler with a fixed structure that looks like this:
//
//     hello
//     dir/
//         world
//
// Each file contains the string "Hello, world!". Every operation completes
// before the handler method returns.
type HelloFS struct {
	Clock timeutil.Clock
}

const contents = "Hello, world!"

type entryInfo struct {
	attributes fuseops.Attributes

	// For directories, the names of the children.
	children []string
}

// We have a fixed directory structure.
var gEntryInfo = map[string]entryInfo{
	// root
	"/": entryInfo{
		attributes: fuseops.Attributes{
			Nlink: 2,
			Mode:  unix.S_IFDIR | 0555,
		},
		children: []string{"hello", "dir"},
	},

	// hello
	"/hello": entryInfo{
		attributes: fuseops.Attributes{
			Nlink: 1,
			Mode:  unix.S_IFREG | 0444,
			Size:  uint64(len(contents)),
		},
	},

	// dir
	"/dir": entryInfo{
		attributes: fuseops.Attributes{
			Nlink: 2,
			Mode:  unix.S_IFDIR | 0555,
		},
		children: []string{"world"},
	},

	// world
	"/dir/world": entryInfo{
		attributes: fuseops.Attributes{
			Nlink: 1,
			Mode:  unix.S_IFREG | 0444,
			Size:  uint64(len(contents)),
		},
	},
}

func (fs *HelloFS) patchAttributes(attr *fuseops.Attributes) {
	now := fs.Clock.Now()
	attr.Atime = now
	attr.Mtime = now
	attr.Ctime = now
}

func (fs *HelloFS) Getattr(path string, complete fuseops.Completion) {
	info, ok := gEntryInfo[path]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	// Copy over its attributes and patch them.
	attrs := info.attributes
	fs.patchAttributes(&attrs)

	complete(0, attrs)
}

func (fs *HelloFS) Readdir(path string, complete fuseops.Completion) {
	info, ok := gEntryInfo[path]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	if info.attributes.Filetype() != fuseops.DirectoryFiletype {
		complete(fuse3.ENOTDIR)
		return
	}

	complete(0, info.children)
}

func (fs *HelloFS) Open(path string, flags uint32, complete fuseops.Completion) {
	info, ok := gEntryInfo[path]
	if !ok {
		complete(fuse3.ENOENT)
		return
	}

	if info.attributes.Filetype() == fuseops.DirectoryFiletype {
		complete(fuse3.EISDIR)
		return
	}

	// Read-only.
	if flags&unix.O_ACCMODE != unix.O_RDONLY {
		complete(fuse3.EACCES)
		return
	}

	complete(0)
}

func (fs *HelloFS) Read(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	if _, ok := gEntryInfo[path]; !ok {
		complete(fuse3.ENOENT)
		return
	}

	// Let io.ReaderAt deal with the semantics.
	reader := strings.NewReader(contents)

	p := make([]byte, length)
	n, err := reader.ReadAt(p, offset)

	// Special case: FUSE doesn't expect us to return io.EOF.
	if err != nil && err != io.EOF {
		complete(fuse3.EINVAL)
		return
	}

	buf.WriteAt(p[:n], 0)
	complete(n)
}
