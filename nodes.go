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

package fuse3

import (
	"context"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/juergengeck/one.fuse3/fuseops"
)

// A node in the kernel's view of the file system. Nodes carry no state of
// their own: every operation is forwarded by path to the driver of the
// session that created them.
type node struct {
	fs.Inode
	driver *Driver
}

var _ fs.InodeEmbedder = (*node)(nil)
var _ fs.NodeGetattrer = (*node)(nil)
var _ fs.NodeLookuper = (*node)(nil)
var _ fs.NodeReaddirer = (*node)(nil)
var _ fs.NodeOpener = (*node)(nil)
var _ fs.NodeReader = (*node)(nil)
var _ fs.NodeWriter = (*node)(nil)
var _ fs.NodeCreater = (*node)(nil)
var _ fs.NodeUnlinker = (*node)(nil)
var _ fs.NodeMkdirer = (*node)(nil)
var _ fs.NodeRmdirer = (*node)(nil)
var _ fs.NodeRenamer = (*node)(nil)
var _ fs.NodeSetattrer = (*node)(nil)
var _ fs.NodeReleaser = (*node)(nil)
var _ fs.NodeFsyncer = (*node)(nil)
var _ fs.NodeFlusher = (*node)(nil)
var _ fs.NodeAccesser = (*node)(nil)
var _ fs.NodeStatfser = (*node)(nil)

// The file handle handed to the kernel for an open file.
type fileHandle struct {
	fh uint64
}

func handleOf(f fs.FileHandle) uint64 {
	if h, ok := f.(*fileHandle); ok {
		return h.fh
	}

	return 0
}

// The absolute path of n within the mount.
func (n *node) path() string {
	return "/" + n.Path(nil)
}

func (n *node) child(name string) string {
	return path.Join(n.path(), name)
}

// Create an inode for a child described by attrs.
func (n *node) newChild(
	ctx context.Context,
	attrs fuseops.Attributes,
	out *fuse.EntryOut) *fs.Inode {
	fuseops.ConvertAttributes(attrs, &out.Attr)

	return n.NewInode(
		ctx,
		&node{driver: n.driver},
		fs.StableAttr{Mode: attrs.Mode & syscall.S_IFMT})
}

// Fill in the entry for a child that was just created. If the handler can't
// describe it, fall back to what we asked for.
func (n *node) entryFor(
	ctx context.Context,
	p string,
	fallback fuseops.Attributes,
	out *fuse.EntryOut) *fs.Inode {
	attrs, status := n.driver.Getattr(ctx, p)
	if status < 0 || attrs.Mode&syscall.S_IFMT != fallback.Mode&syscall.S_IFMT {
		attrs = fallback
	}

	return n.newChild(ctx, attrs, out)
}

func (n *node) Getattr(
	ctx context.Context,
	f fs.FileHandle,
	out *fuse.AttrOut) syscall.Errno {
	attrs, status := n.driver.Getattr(ctx, n.path())
	if status < 0 {
		return errnoOf(status)
	}

	fuseops.ConvertAttributes(attrs, &out.Attr)
	return 0
}

func (n *node) Lookup(
	ctx context.Context,
	name string,
	out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	attrs, status := n.driver.Getattr(ctx, n.child(name))
	if status < 0 {
		return nil, errnoOf(status)
	}

	return n.newChild(ctx, attrs, out), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, status := n.driver.Readdir(ctx, n.path())
	if status < 0 {
		return nil, errnoOf(status)
	}

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{Name: name})
	}

	return fs.NewListDirStream(entries), 0
}

func (n *node) Open(
	ctx context.Context,
	flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fh, status := n.driver.Open(ctx, n.path(), flags)
	if status < 0 {
		return nil, 0, errnoOf(status)
	}

	return &fileHandle{fh: fh}, n.driver.OpenFlags(), 0
}

func (n *node) Read(
	ctx context.Context,
	f fs.FileHandle,
	dest []byte,
	off int64) (fuse.ReadResult, syscall.Errno) {
	status := n.driver.Read(ctx, n.path(), handleOf(f), dest, off)
	if status < 0 {
		return nil, errnoOf(status)
	}

	return fuse.ReadResultData(dest[:status]), 0
}

func (n *node) Write(
	ctx context.Context,
	f fs.FileHandle,
	data []byte,
	off int64) (uint32, syscall.Errno) {
	status := n.driver.Write(ctx, n.path(), handleOf(f), data, off)
	if status < 0 {
		return 0, errnoOf(status)
	}

	return uint32(status), 0
}

func (n *node) Create(
	ctx context.Context,
	name string,
	flags uint32,
	mode uint32,
	out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := n.child(name)
	fh, status := n.driver.Create(ctx, p, mode)
	if status < 0 {
		return nil, nil, 0, errnoOf(status)
	}

	fallback := fuseops.Attributes{Mode: syscall.S_IFREG | mode&07777, Nlink: 1}
	child := n.entryFor(ctx, p, fallback, out)

	return child, &fileHandle{fh: fh}, n.driver.OpenFlags(), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.driver.Unlink(ctx, n.child(name)))
}

func (n *node) Mkdir(
	ctx context.Context,
	name string,
	mode uint32,
	out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	if status := n.driver.Mkdir(ctx, p, mode); status < 0 {
		return nil, errnoOf(status)
	}

	fallback := fuseops.Attributes{Mode: syscall.S_IFDIR | mode&07777, Nlink: 2}
	return n.entryFor(ctx, p, fallback, out), 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.driver.Rmdir(ctx, n.child(name)))
}

// Rename flags (RENAME_NOREPLACE, RENAME_EXCHANGE) can't be expressed to a
// handler, so they are refused.
func (n *node) Rename(
	ctx context.Context,
	name string,
	newParent fs.InodeEmbedder,
	newName string,
	flags uint32) syscall.Errno {
	if flags != 0 {
		return syscall.EINVAL
	}

	to := path.Join("/"+newParent.EmbeddedInode().Path(nil), newName)
	return errnoOf(n.driver.Rename(ctx, n.child(name), to))
}

// A setattr becomes a sequence of chmod, chown, truncate and utimens calls,
// stopping at the first failure.
func (n *node) Setattr(
	ctx context.Context,
	f fs.FileHandle,
	in *fuse.SetAttrIn,
	out *fuse.AttrOut) syscall.Errno {
	p := n.path()

	if mode, ok := in.GetMode(); ok {
		if status := n.driver.Chmod(ctx, p, mode&07777); status < 0 {
			return errnoOf(status)
		}
	}

	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		if !uok {
			uid = ^uint32(0)
		}

		if !gok {
			gid = ^uint32(0)
		}

		if status := n.driver.Chown(ctx, p, uid, gid); status < 0 {
			return errnoOf(status)
		}
	}

	if size, ok := in.GetSize(); ok {
		if status := n.driver.Truncate(ctx, p, int64(size)); status < 0 {
			return errnoOf(status)
		}
	}

	atime, aok := in.GetATime()
	mtime, mok := in.GetMTime()
	if aok || mok {
		if status := n.driver.Utimens(ctx, p, atime, mtime); status < 0 {
			return errnoOf(status)
		}
	}

	return n.Getattr(ctx, f, out)
}

func (n *node) Release(ctx context.Context, f fs.FileHandle) syscall.Errno {
	return errnoOf(n.driver.Release(ctx, n.path(), handleOf(f)))
}

func (n *node) Fsync(
	ctx context.Context,
	f fs.FileHandle,
	flags uint32) syscall.Errno {
	datasync := flags&1 != 0
	return errnoOf(n.driver.Fsync(ctx, n.path(), datasync, handleOf(f)))
}

func (n *node) Flush(ctx context.Context, f fs.FileHandle) syscall.Errno {
	return errnoOf(n.driver.Flush(ctx, n.path(), handleOf(f)))
}

func (n *node) Access(ctx context.Context, mask uint32) syscall.Errno {
	return errnoOf(n.driver.Access(ctx, n.path(), mask))
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	fuseops.ConvertStatfs(n.driver.Statfs(ctx), out)
	return 0
}
