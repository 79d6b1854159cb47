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

package dynamicfs_test

import (
	"testing"
	"time"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/fusetesting"
	"github.com/juergengeck/one.fuse3/samples"
	"github.com/juergengeck/one.fuse3/samples/dynamicfs"
	"golang.org/x/sys/unix"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestDynamicFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type DynamicFSTest struct {
	samples.SampleTest
}

func init() { RegisterTestSuite(&DynamicFSTest{}) }

func (t *DynamicFSTest) SetUp(ti *TestInfo) {
	// SampleTest.SetUp sets this same time; the handler needs it earlier.
	t.Clock.SetTime(time.Date(2015, 8, 15, 7, 0, 0, 0, time.Local))
	t.Handler = dynamicfs.NewDynamicFS(&t.Clock)

	t.SampleTest.SetUp(ti)
}

func (t *DynamicFSTest) readFile(path string) string {
	fh, status := t.Driver.Open(t.Ctx, path, unix.O_RDONLY)
	AssertEq(0, status)

	contents, err := fusetesting.ReadAll(t.Ctx, t.Driver, path, fh, 7)
	AssertEq(nil, err)

	AssertEq(0, t.Driver.Release(t.Ctx, path, fh))
	return string(contents)
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *DynamicFSTest) ListRoot() {
	names, err := fusetesting.ReadDirSorted(t.Ctx, t.Driver, "/")
	AssertEq(nil, err)
	ExpectThat(names, ElementsAre("age", "weekday"))
}

func (t *DynamicFSTest) SizesAreUnknown() {
	attrs, status := t.Driver.Getattr(t.Ctx, "/age")
	AssertEq(0, status)
	ExpectEq(0, attrs.Size)
	ExpectEq(unix.S_IFREG|0444, attrs.Mode)
}

func (t *DynamicFSTest) AgeIsComputedAtOpen() {
	ExpectEq("This filesystem is 0 seconds old.", t.readFile("/age"))

	t.Clock.AdvanceTime(90 * time.Second)
	ExpectEq("This filesystem is 90 seconds old.", t.readFile("/age"))
}

func (t *DynamicFSTest) OpenHandleKeepsItsSnapshot() {
	fh, status := t.Driver.Open(t.Ctx, "/age", unix.O_RDONLY)
	AssertEq(0, status)

	t.Clock.AdvanceTime(time.Hour)

	contents, err := fusetesting.ReadAll(t.Ctx, t.Driver, "/age", fh, 64)
	AssertEq(nil, err)
	ExpectEq("This filesystem is 0 seconds old.", string(contents))
}

func (t *DynamicFSTest) Weekday() {
	ExpectEq("Today is Saturday.", t.readFile("/weekday"))

	t.Clock.AdvanceTime(24 * time.Hour)
	ExpectEq("Today is Sunday.", t.readFile("/weekday"))
}

func (t *DynamicFSTest) UnknownPaths() {
	_, status := t.Driver.Getattr(t.Ctx, "/nope")
	ExpectEq(fuse3.ENOENT, status)

	_, status = t.Driver.Open(t.Ctx, "/nope", unix.O_RDONLY)
	ExpectEq(fuse3.EINVAL, status)

	_, status = t.Driver.Readdir(t.Ctx, "/age")
	ExpectEq(fuse3.ENOTDIR, status)
}

func (t *DynamicFSTest) BadHandles() {
	buf := make([]byte, 4)
	ExpectEq(fuse3.EIO, t.Driver.Read(t.Ctx, "/age", 17, buf, 0))
	ExpectEq(fuse3.EIO, t.Driver.Release(t.Ctx, "/age", 17))
}
