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

package memfs

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3/fuseops"
	"golang.org/x/sys/unix"
)

// Common attributes for files and directories.
//
// External synchronization is required.
type inode struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	// The current attributes of this inode.
	//
	// INVARIANT: isDir() != isFile()
	// INVARIANT: attrs.Mode &^ (S_IFMT | 0777) == 0
	// INVARIANT: attrs.Size == len(contents)
	attrs fuseops.Attributes

	// For directories, the names of the children, sorted.
	//
	// INVARIANT: If !isDir(), len(entries) == 0
	// INVARIANT: Sorted, with no duplicates.
	entries []string

	// For files, the current contents of the file.
	//
	// INVARIANT: If !isFile(), len(contents) == 0
	contents []byte
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Create a new inode with the supplied attributes, which need not contain
// time-related information (the inode object will take care of that).
func newInode(
	clock timeutil.Clock,
	attrs fuseops.Attributes) (in *inode) {
	// Update time info.
	now := clock.Now()
	attrs.Atime = now
	attrs.Mtime = now
	attrs.Ctime = now

	// Create the object.
	in = &inode{
		clock: clock,
		attrs: attrs,
	}

	return
}

func (in *inode) checkInvariants() {
	// INVARIANT: isDir() != isFile()
	if in.isDir() == in.isFile() {
		panic(fmt.Sprintf("Unexpected mode: %o", in.attrs.Mode))
	}

	// INVARIANT: attrs.Mode &^ (S_IFMT | 0777) == 0
	if in.attrs.Mode&^(unix.S_IFMT|0777) != 0 {
		panic(fmt.Sprintf("Unexpected mode: %o", in.attrs.Mode))
	}

	// INVARIANT: attrs.Size == len(contents)
	if in.attrs.Size != uint64(len(in.contents)) {
		panic(fmt.Sprintf(
			"Size mismatch: %d vs. %d",
			in.attrs.Size,
			len(in.contents)))
	}

	// INVARIANT: If !isDir(), len(entries) == 0
	if !in.isDir() && len(in.entries) != 0 {
		panic(fmt.Sprintf("Unexpected entries length: %d", len(in.entries)))
	}

	// INVARIANT: Sorted, with no duplicates.
	for i := 1; i < len(in.entries); i++ {
		if !(in.entries[i-1] < in.entries[i]) {
			panic(fmt.Sprintf(
				"Entries out of order: %q, %q",
				in.entries[i-1],
				in.entries[i]))
		}
	}

	// INVARIANT: If !isFile(), len(contents) == 0
	if !in.isFile() && len(in.contents) != 0 {
		panic(fmt.Sprintf("Unexpected length: %d", len(in.contents)))
	}
}

func (in *inode) isDir() bool {
	return in.attrs.Filetype() == fuseops.DirectoryFiletype
}

func (in *inode) isFile() bool {
	return in.attrs.Filetype() == fuseops.RegularFiletype
}

// Record a change to the inode's metadata.
func (in *inode) touchCtime() {
	in.attrs.Ctime = in.clock.Now()
}

// Record a change to the inode's contents.
func (in *inode) touchMtime() {
	now := in.clock.Now()
	in.attrs.Mtime = now
	in.attrs.Ctime = now
}

////////////////////////////////////////////////////////////////////////
// Public methods
////////////////////////////////////////////////////////////////////////

// Return the number of children of the directory.
//
// REQUIRES: in.isDir()
func (in *inode) Len() int {
	return len(in.entries)
}

// Return a copy of the names of the children of the directory.
//
// REQUIRES: in.isDir()
func (in *inode) Entries() []string {
	return append([]string{}, in.entries...)
}

// Add an entry for a child.
//
// REQUIRES: in.isDir()
// REQUIRES: No entry for the given name exists.
func (in *inode) AddChild(name string) {
	if !in.isDir() {
		panic("AddChild called on non-directory.")
	}

	i := sort.SearchStrings(in.entries, name)
	if i < len(in.entries) && in.entries[i] == name {
		panic(fmt.Sprintf("Duplicate child: %s", name))
	}

	in.entries = append(in.entries, "")
	copy(in.entries[i+1:], in.entries[i:])
	in.entries[i] = name

	in.touchMtime()
}

// Remove the entry for a child.
//
// REQUIRES: in.isDir()
// REQUIRES: An entry for the given name exists.
func (in *inode) RemoveChild(name string) {
	i := sort.SearchStrings(in.entries, name)
	if i == len(in.entries) || in.entries[i] != name {
		panic(fmt.Sprintf("Unknown child: %s", name))
	}

	in.entries = append(in.entries[:i], in.entries[i+1:]...)
	in.touchMtime()
}

// Read from the file's contents. See documentation for io.ReaderAt.
//
// REQUIRES: in.isFile()
func (in *inode) ReadAt(p []byte, off int64) (n int, err error) {
	if !in.isFile() {
		panic("ReadAt called on non-file.")
	}

	// Ensure the offset is in range.
	if off > int64(len(in.contents)) {
		err = io.EOF
		return
	}

	// Read what we can.
	n = copy(p, in.contents[off:])
	if n < len(p) {
		err = io.EOF
	}

	return
}

// Write to the file's contents. See documentation for io.WriterAt.
//
// REQUIRES: in.isFile()
func (in *inode) WriteAt(p []byte, off int64) (n int, err error) {
	if !in.isFile() {
		panic("WriteAt called on non-file.")
	}

	// Update the modification time.
	in.touchMtime()

	// Ensure that the contents slice is long enough.
	newLen := int(off) + len(p)
	if len(in.contents) < newLen {
		padding := make([]byte, newLen-len(in.contents))
		in.contents = append(in.contents, padding...)
		in.attrs.Size = uint64(newLen)
	}

	// Copy in the data.
	n = copy(in.contents[off:], p)

	// Sanity check.
	if n != len(p) {
		panic(fmt.Sprintf("Unexpected short copy: %v", n))
	}

	return
}

// Change the size of the file, zero-filling if it grows.
//
// REQUIRES: in.isFile()
func (in *inode) Truncate(size int64) {
	in.touchMtime()

	if int(size) <= len(in.contents) {
		in.contents = in.contents[:size]
	} else {
		padding := make([]byte, int(size)-len(in.contents))
		in.contents = append(in.contents, padding...)
	}

	in.attrs.Size = uint64(size)
}

// Update the permission bits, leaving the file type alone.
func (in *inode) Chmod(mode uint32) {
	in.attrs.Mode = in.attrs.Mode&unix.S_IFMT | mode&0777
	in.touchCtime()
}

// Update the owner. An ID of ^uint32(0) is left alone.
func (in *inode) Chown(uid uint32, gid uint32) {
	if uid != ^uint32(0) {
		in.attrs.Uid = uid
	}

	if gid != ^uint32(0) {
		in.attrs.Gid = gid
	}

	in.touchCtime()
}

// Update the access and modification times. Zero times are left alone.
func (in *inode) SetTimes(atime time.Time, mtime time.Time) {
	if !atime.IsZero() {
		in.attrs.Atime = atime
	}

	if !mtime.IsZero() {
		in.attrs.Mtime = mtime
	}

	in.touchCtime()
}
