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

package fuseops

import (
	"fmt"
	"time"

	"github.com/juergengeck/one.fuse3/buffer"
)

// Finishes an operation. A handler must call it exactly once, either before
// returning or later from any goroutine.
//
// status is zero or a non-negative count on success, and a negated errno on
// failure. getattr and readdir must supply exactly one payload on success;
// read, open and create may supply one. All other kinds take none.
type Completion func(status int, payload ...interface{})

// A single file system operation on its way to a handler. Only the fields
// relevant to Kind are set. A Request is not modified after it has been
// submitted, apart from the contents of Buffer for reads.
type Request struct {
	Kind Kind

	// The absolute path within the mount that the operation concerns, e.g.
	// "/" or "/foo/bar".
	Path string

	// The destination path for rename.
	NewPath string

	// For create, mkdir and chmod.
	Mode uint32

	// For chown.
	Uid uint32
	Gid uint32

	// The new size for truncate.
	Size int64

	// The byte range for read and write.
	Offset int64
	Length int

	// Open flags, as in open(2).
	Flags uint32

	// The access(2) mask.
	Mask uint32

	// For fsync: only the data, not the metadata, needs to reach storage.
	Datasync bool

	// The handle previously returned by open or create, or zero.
	Handle uint64

	// For utimens.
	Atime time.Time
	Mtime time.Time

	// For read, an envelope of exactly Length bytes owned by the operation,
	// into which the handler places the data read. For write, a read-only
	// envelope holding a private copy of the data to write.
	Buffer *buffer.Envelope
}

func (r *Request) String() string {
	switch r.Kind {
	case OpRename:
		return fmt.Sprintf("%s %q -> %q", r.Kind, r.Path, r.NewPath)

	case OpRead, OpWrite:
		return fmt.Sprintf(
			"%s %q (fh %d, %d bytes at %d)",
			r.Kind,
			r.Path,
			r.Handle,
			r.Length,
			r.Offset)

	default:
		return fmt.Sprintf("%s %q", r.Kind, r.Path)
	}
}

// Attributes of a file or directory, as reported by getattr. Fields a handler
// doesn't supply are zero.
type Attributes struct {
	Size  uint64
	Nlink uint32

	// File type and permission bits, e.g. unix.S_IFREG | 0644.
	Mode uint32

	Atime time.Time
	Mtime time.Time
	Ctime time.Time

	// Ownership information.
	Uid uint32
	Gid uint32
}

func (a Attributes) Filetype() Filetype {
	return FiletypeOf(a.Mode)
}

// File system statistics, as reported by statfs.
type Statfs struct {
	BlockSize uint32
	Blocks    uint64
	Bfree     uint64
	Bavail    uint64
}

// The values reported for every statfs call.
var SyntheticStatfs = Statfs{
	BlockSize: 4096,
	Blocks:    1000000,
	Bfree:     500000,
	Bavail:    500000,
}

////////////////////////////////////////////////////////////////////////
// Handler methods
////////////////////////////////////////////////////////////////////////

// A handler serves an operation kind by having an exported method named
// Kind.MethodName(). The interfaces below document the argument lists the
// bridge passes; a handler may implement any subset of them. Methods may
// additionally return an error, which is treated as a failed handler call.

type Getattrer interface {
	Getattr(path string, complete Completion)
}

type Readdirer interface {
	Readdir(path string, complete Completion)
}

type Opener interface {
	Open(path string, flags uint32, complete Completion)
}

// The handler fills buf (for example with buf.WriteAt) and completes with the
// number of bytes read, or completes with its own []byte or envelope.
type Reader interface {
	Read(
		path string,
		fh uint64,
		buf *buffer.Envelope,
		length int,
		offset int64,
		complete Completion)
}

// buf is read-only and remains valid after completion.
type Writer interface {
	Write(
		path string,
		fh uint64,
		buf *buffer.Envelope,
		length int,
		offset int64,
		complete Completion)
}

type Creater interface {
	Create(path string, mode uint32, complete Completion)
}

type Unlinker interface {
	Unlink(path string, complete Completion)
}

type Mkdirer interface {
	Mkdir(path string, mode uint32, complete Completion)
}

type Rmdirer interface {
	Rmdir(path string, complete Completion)
}

type Renamer interface {
	Rename(from string, to string, complete Completion)
}

type Chmoder interface {
	Chmod(path string, mode uint32, complete Completion)
}

type Chowner interface {
	Chown(path string, uid uint32, gid uint32, complete Completion)
}

type Truncater interface {
	Truncate(path string, size int64, complete Completion)
}

type Utimenser interface {
	Utimens(path string, atime time.Time, mtime time.Time, complete Completion)
}

type Releaser interface {
	Release(path string, fh uint64, complete Completion)
}

type Fsyncer interface {
	Fsync(path string, datasync bool, fh uint64, complete Completion)
}

type Flusher interface {
	Flush(path string, fh uint64, complete Completion)
}

type Accesser interface {
	Access(path string, mask uint32, complete Completion)
}
