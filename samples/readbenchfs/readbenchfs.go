// Copyright 2021 Vitaliy Filippov
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

// Package readbenchfs serves one huge read-only file for measuring read
// throughput through the bridge.
package readbenchfs

import (
	"math/rand"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

// 1 TB
const FileSize = 1024 * 1024 * 1024 * 1024

// Create a handler exposing a single file named "test" of FileSize bytes. Its
// contents are patternSize bytes of random data repeated over and over; use a
// pattern larger than the CPU cache to keep the benchmark honest.
func NewReadBenchFS(patternSize int, seed int64) fuse3.Ops {
	fs := &readBenchFS{
		pattern: make([]byte, patternSize),
	}

	rand.New(rand.NewSource(seed)).Read(fs.pattern)

	return fuse3.Ops{
		fuseops.OpGetattr.String(): fs.getattr,
		fuseops.OpReaddir.String(): fs.readdir,
		fuseops.OpOpen.String():    fs.open,
		fuseops.OpRead.String():    fs.read,
		fuseops.OpRelease.String(): fs.release,
	}
}

type readBenchFS struct {
	// Never modified after construction.
	pattern []byte
}

func (fs *readBenchFS) getattr(path string, complete fuseops.Completion) {
	switch path {
	case "/":
		complete(0, fuseops.Attributes{
			Nlink: 2,
			Mode:  unix.S_IFDIR | 0755,
		})

	case "/test":
		complete(0, fuseops.Attributes{
			Size:  FileSize,
			Nlink: 1,
			Mode:  unix.S_IFREG | 0444,
		})

	default:
		complete(fuse3.ENOENT)
	}
}

func (fs *readBenchFS) readdir(path string, complete fuseops.Completion) {
	if path != "/" {
		complete(fuse3.ENOENT)
		return
	}

	complete(0, []string{"test"})
}

func (fs *readBenchFS) open(path string, flags uint32, complete fuseops.Completion) {
	// Allow opening any file.
	complete(0)
}

// Byte i of the file is pattern[i % len(pattern)].
func (fs *readBenchFS) read(
	path string,
	fh uint64,
	buf *buffer.Envelope,
	length int,
	offset int64,
	complete fuseops.Completion) {
	if offset >= FileSize {
		complete(0)
		return
	}

	end := offset + int64(length)
	if end > FileSize {
		end = FileSize
	}

	plen := int64(len(fs.pattern))
	for pos := offset; pos < end; {
		s := pos % plen
		e := plen
		if e-s > end-pos {
			e = s + end - pos
		}

		buf.WriteAt(fs.pattern[s:e], pos-offset)
		pos += e - s
	}

	complete(int(end - offset))
}

func (fs *readBenchFS) release(path string, fh uint64, complete fuseops.Completion) {
	complete(0)
}
