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

package flushfs_test

import (
	"sync"
	"testing"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/fusetesting"
	"github.com/juergengeck/one.fuse3/samples"
	"github.com/juergengeck/one.fuse3/samples/flushfs"
	"golang.org/x/sys/unix"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestFlushFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type FlushFSTest struct {
	samples.SampleTest

	mu sync.Mutex

	// GUARDED_BY(mu)
	flushes []string
	flushErr int

	// GUARDED_BY(mu)
	fsyncs   []string
	fsyncErr int
}

func init() { RegisterTestSuite(&FlushFSTest{}) }

func (t *FlushFSTest) SetUp(ti *TestInfo) {
	// Set up a file system.
	reportTo := func(slice *[]string, status *int) func(string) int {
		return func(s string) int {
			t.mu.Lock()
			defer t.mu.Unlock()

			*slice = append(*slice, s)
			return *status
		}
	}

	t.Handler = flushfs.NewFileSystem(
		reportTo(&t.flushes, &t.flushErr),
		reportTo(&t.fsyncs, &t.fsyncErr))

	// Mount it.
	t.SampleTest.SetUp(ti)
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Return a copy of the current contents of t.flushes.
//
// LOCKS_EXCLUDED(t.mu)
func (t *FlushFSTest) getFlushes() (p []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p = make([]string, len(t.flushes))
	copy(p, t.flushes)
	return
}

// Return a copy of the current contents of t.fsyncs.
//
// LOCKS_EXCLUDED(t.mu)
func (t *FlushFSTest) getFsyncs() (p []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p = make([]string, len(t.fsyncs))
	copy(p, t.fsyncs)
	return
}

// LOCKS_EXCLUDED(t.mu)
func (t *FlushFSTest) setErrors(flushErr int, fsyncErr int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushErr = flushErr
	t.fsyncErr = fsyncErr
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *FlushFSTest) CloseReports_ReadWrite() {
	// Open the file.
	fh, status := t.Driver.Open(t.Ctx, "/foo", unix.O_RDWR)
	AssertEq(0, status)

	// Write some contents to the file.
	n := t.Driver.Write(t.Ctx, "/foo", fh, []byte("taco"), 0)
	AssertEq(4, n)

	// Read them back.
	contents, err := fusetesting.ReadAll(t.Ctx, t.Driver, "/foo", fh, 1024)
	AssertEq(nil, err)
	AssertEq("taco", string(contents))

	// At this point, no flushes or fsyncs should have happened.
	AssertThat(t.getFlushes(), ElementsAre())
	AssertThat(t.getFsyncs(), ElementsAre())

	// Close the file.
	AssertEq(0, t.Driver.Flush(t.Ctx, "/foo", fh))
	AssertEq(0, t.Driver.Release(t.Ctx, "/foo", fh))

	// Now we should have received the flush operation (but still no fsync).
	ExpectThat(t.getFlushes(), ElementsAre("taco"))
	ExpectThat(t.getFsyncs(), ElementsAre())
}

func (t *FlushFSTest) CloseReports_MultipleTimes() {
	fh, status := t.Driver.Open(t.Ctx, "/foo", unix.O_WRONLY)
	AssertEq(0, status)

	AssertEq(4, t.Driver.Write(t.Ctx, "/foo", fh, []byte("taco"), 0))
	AssertEq(0, t.Driver.Flush(t.Ctx, "/foo", fh))

	AssertEq(7, t.Driver.Write(t.Ctx, "/foo", fh, []byte("burrito"), 4))
	AssertEq(0, t.Driver.Flush(t.Ctx, "/foo", fh))

	ExpectThat(t.getFlushes(), ElementsAre("taco", "tacoburrito"))
}

func (t *FlushFSTest) OpenWithTruncate() {
	fh, status := t.Driver.Open(t.Ctx, "/foo", unix.O_WRONLY)
	AssertEq(0, status)
	AssertEq(4, t.Driver.Write(t.Ctx, "/foo", fh, []byte("taco"), 0))

	fh, status = t.Driver.Open(t.Ctx, "/foo", unix.O_WRONLY|unix.O_TRUNC)
	AssertEq(0, status)
	AssertEq(0, t.Driver.Flush(t.Ctx, "/foo", fh))

	ExpectThat(t.getFlushes(), ElementsAre(""))
}

func (t *FlushFSTest) CloseError() {
	t.setErrors(fuse3.ENOSPC, 0)

	fh, status := t.Driver.Open(t.Ctx, "/foo", unix.O_RDWR)
	AssertEq(0, status)

	ExpectEq(fuse3.ENOSPC, t.Driver.Flush(t.Ctx, "/foo", fh))
	ExpectThat(t.getFlushes(), ElementsAre(""))
}

func (t *FlushFSTest) FsyncReports() {
	fh, status := t.Driver.Open(t.Ctx, "/foo", unix.O_RDWR)
	AssertEq(0, status)

	AssertEq(4, t.Driver.Write(t.Ctx, "/foo", fh, []byte("taco"), 0))
	AssertEq(0, t.Driver.Fsync(t.Ctx, "/foo", false, fh))

	AssertEq(1, t.Driver.Write(t.Ctx, "/foo", fh, []byte("s"), 4))
	AssertEq(0, t.Driver.Fsync(t.Ctx, "/foo", true, fh))

	ExpectThat(t.getFsyncs(), ElementsAre("taco", "tacos"))
	ExpectThat(t.getFlushes(), ElementsAre())
}

func (t *FlushFSTest) FsyncError() {
	t.setErrors(0, fuse3.EIO)

	fh, status := t.Driver.Open(t.Ctx, "/foo", unix.O_RDWR)
	AssertEq(0, status)

	ExpectEq(fuse3.EIO, t.Driver.Fsync(t.Ctx, "/foo", false, fh))
	ExpectThat(t.getFsyncs(), ElementsAre(""))
}

func (t *FlushFSTest) OnlyFooExists() {
	names, err := fusetesting.ReadDirSorted(t.Ctx, t.Driver, "/")
	AssertEq(nil, err)
	ExpectThat(names, ElementsAre("foo"))

	_, status := t.Driver.Getattr(t.Ctx, "/bar")
	ExpectEq(fuse3.ENOENT, status)
}
