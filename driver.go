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
	"log"
	"sync"
	"time"

	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
	"github.com/juergengeck/one.fuse3/internal/completion"
	"github.com/juergengeck/one.fuse3/internal/dispatch"
)

// The entry points through which the kernel side of a mounted session
// reaches its handler. Every method may be called from any number of
// goroutines at once; each blocks until the handler has completed the
// operation, and returns a status that is zero or a byte count on success and
// a negated errno on failure.
//
// Drivers are created by Session.Mount and handed to the session's
// Transport.
type Driver struct {
	queue       *dispatch.Queue[*call]
	openFlags   uint32
	debugLogger *log.Logger
	metrics     *metrics
	clock       timeutil.Clock

	// Calls that have been accepted and not yet answered.
	inFlight sync.WaitGroup

	mu sync.Mutex

	// Set when the session starts tearing down. No call is accepted
	// afterward.
	closed bool // GUARDED_BY(mu)
}

func newDriver(
	q *dispatch.Queue[*call],
	config *MountConfig,
	m *metrics) *Driver {
	return &Driver{
		queue:       q,
		openFlags:   config.openFlags(),
		debugLogger: config.debugLogger(),
		metrics:     m,
		clock:       config.clock(),
	}
}

// Flags to return to the kernel from open and create.
func (d *Driver) OpenFlags() uint32 {
	return d.openFlags
}

// Register a call as in flight, unless the driver has been shut down.
//
// LOCKS_EXCLUDED(d.mu)
func (d *Driver) begin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	d.inFlight.Add(1)
	return true
}

// Refuse new calls and wait for those in flight to be answered.
//
// LOCKS_EXCLUDED(d.mu)
func (d *Driver) shutdown() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.inFlight.Wait()
}

// Hand req to the handler goroutine and wait for the outcome.
func (d *Driver) submit(
	ctx context.Context,
	req *fuseops.Request) (status int, v interface{}) {
	if !d.begin() {
		d.debugLogger.Println("Rejected after shutdown:", req)
		status = EIO
		return
	}

	defer d.inFlight.Done()

	_, report := reqtrace.StartSpan(ctx, req.Kind.String())
	d.debugLogger.Println("Received:", req)
	start := d.clock.Now()

	c := &call{
		req:  req,
		slot: completion.New(),
	}

	// Counted before the push so that the invoker's decrement can never run
	// first.
	d.metrics.queueDepth.Inc()
	if d.queue.Push(c) {
		status, v = c.slot.Wait()
	} else {
		d.metrics.queueDepth.Dec()
		status = EIO
	}

	report(statusError(status))
	d.metrics.observe(req.Kind.String(), status, d.clock.Now().Sub(start))
	d.debugLogger.Printf("Responding: %v: %s", req, describeStatus(status))

	return
}

////////////////////////////////////////////////////////////////////////
// Entry points
////////////////////////////////////////////////////////////////////////

func (d *Driver) Getattr(
	ctx context.Context,
	path string) (attrs fuseops.Attributes, status int) {
	status, v := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpGetattr,
		Path: path,
	})

	if status >= 0 {
		attrs = v.(fuseops.Attributes)
	}

	return
}

// The listing always starts with "." and "..".
func (d *Driver) Readdir(
	ctx context.Context,
	path string) (names []string, status int) {
	status, v := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpReaddir,
		Path: path,
	})

	if status < 0 {
		return
	}

	names = []string{".", ".."}
	for _, name := range v.([]string) {
		if name == "." || name == ".." {
			continue
		}

		names = append(names, name)
	}

	return
}

// Return the handle the handler chose, or zero.
func (d *Driver) Open(
	ctx context.Context,
	path string,
	flags uint32) (fh uint64, status int) {
	status, v := d.submit(ctx, &fuseops.Request{
		Kind:  fuseops.OpOpen,
		Path:  path,
		Flags: flags,
	})

	if status >= 0 {
		fh = v.(uint64)
	}

	return
}

// Read up to len(dest) bytes at the given offset into dest, returning the
// number of bytes read. Nothing beyond that count is written to dest.
func (d *Driver) Read(
	ctx context.Context,
	path string,
	fh uint64,
	dest []byte,
	offset int64) int {
	status, v := d.submit(ctx, &fuseops.Request{
		Kind:   fuseops.OpRead,
		Path:   path,
		Handle: fh,
		Offset: offset,
		Length: len(dest),
		Buffer: buffer.New(len(dest)),
	})

	if status < 0 {
		return status
	}

	return v.(readResult).copyTo(dest, status)
}

// The handler sees a private copy of data, so the caller may reuse data as
// soon as this returns.
func (d *Driver) Write(
	ctx context.Context,
	path string,
	fh uint64,
	data []byte,
	offset int64) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind:   fuseops.OpWrite,
		Path:   path,
		Handle: fh,
		Offset: offset,
		Length: len(data),
		Buffer: buffer.Copy(data),
	})

	return status
}

func (d *Driver) Create(
	ctx context.Context,
	path string,
	mode uint32) (fh uint64, status int) {
	status, v := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpCreate,
		Path: path,
		Mode: mode,
	})

	if status >= 0 {
		fh = v.(uint64)
	}

	return
}

func (d *Driver) Unlink(ctx context.Context, path string) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpUnlink,
		Path: path,
	})

	return status
}

func (d *Driver) Mkdir(ctx context.Context, path string, mode uint32) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpMkdir,
		Path: path,
		Mode: mode,
	})

	return status
}

func (d *Driver) Rmdir(ctx context.Context, path string) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpRmdir,
		Path: path,
	})

	return status
}

func (d *Driver) Rename(ctx context.Context, from string, to string) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind:    fuseops.OpRename,
		Path:    from,
		NewPath: to,
	})

	return status
}

func (d *Driver) Chmod(ctx context.Context, path string, mode uint32) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpChmod,
		Path: path,
		Mode: mode,
	})

	return status
}

// As with chown(2), an ID of ^uint32(0) leaves that ID unchanged.
func (d *Driver) Chown(
	ctx context.Context,
	path string,
	uid uint32,
	gid uint32) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpChown,
		Path: path,
		Uid:  uid,
		Gid:  gid,
	})

	return status
}

func (d *Driver) Truncate(ctx context.Context, path string, size int64) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpTruncate,
		Path: path,
		Size: size,
	})

	return status
}

// A zero time leaves the corresponding timestamp unchanged.
func (d *Driver) Utimens(
	ctx context.Context,
	path string,
	atime time.Time,
	mtime time.Time) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind:  fuseops.OpUtimens,
		Path:  path,
		Atime: atime,
		Mtime: mtime,
	})

	return status
}

func (d *Driver) Release(ctx context.Context, path string, fh uint64) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind:   fuseops.OpRelease,
		Path:   path,
		Handle: fh,
	})

	return status
}

func (d *Driver) Fsync(
	ctx context.Context,
	path string,
	datasync bool,
	fh uint64) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind:     fuseops.OpFsync,
		Path:     path,
		Datasync: datasync,
		Handle:   fh,
	})

	return status
}

func (d *Driver) Flush(ctx context.Context, path string, fh uint64) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind:   fuseops.OpFlush,
		Path:   path,
		Handle: fh,
	})

	return status
}

func (d *Driver) Access(ctx context.Context, path string, mask uint32) int {
	status, _ := d.submit(ctx, &fuseops.Request{
		Kind: fuseops.OpAccess,
		Path: path,
		Mask: mask,
	})

	return status
}

// File system statistics. These are fixed and never involve the handler.
func (d *Driver) Statfs(ctx context.Context) fuseops.Statfs {
	d.debugLogger.Println("Received: statfs; answering with fixed values")
	return fuseops.SyntheticStatfs
}
