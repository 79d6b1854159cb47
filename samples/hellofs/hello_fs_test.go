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

package hellofs_test

import (
	"testing"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/fuseops"
	"github.com/juergengeck/one.fuse3/fusetesting"
	"github.com/juergengeck/one.fuse3/samples"
	"github.com/juergengeck/one.fuse3/samples/hellofs"
	"golang.org/x/sys/unix"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestHelloFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type HelloFSTest struct {
	samples.SampleTest
}

func init() { RegisterTestSuite(&HelloFSTest{}) }

func (t *HelloFSTest) SetUp(ti *TestInfo) {
	t.Handler = &hellofs.HelloFS{
		Clock: &t.Clock,
	}

	t.SampleTest.SetUp(ti)
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *HelloFSTest) ReadDir_Root() {
	names, err := fusetesting.ReadDirSorted(t.Ctx, t.Driver, "/")
	AssertEq(nil, err)
	ExpectThat(names, ElementsAre("dir", "hello"))

	all, status := t.Driver.Readdir(t.Ctx, "/")
	AssertEq(0, status)
	ExpectThat(all, ElementsAre(".", "..", "hello", "dir"))
}

func (t *HelloFSTest) ReadDir_Dir() {
	names, err := fusetesting.ReadDirSorted(t.Ctx, t.Driver, "/dir")
	AssertEq(nil, err)
	ExpectThat(names, ElementsAre("world"))
}

func (t *HelloFSTest) ReadDir_NonExistent() {
	_, err := fusetesting.ReadDirSorted(t.Ctx, t.Driver, "/foobar")
	ExpectEq(unix.ENOENT, err)
}

func (t *HelloFSTest) ReadDir_File() {
	_, err := fusetesting.ReadDirSorted(t.Ctx, t.Driver, "/hello")
	ExpectEq(unix.ENOTDIR, err)
}

func (t *HelloFSTest) Stat_Root() {
	attrs, status := t.Driver.Getattr(t.Ctx, "/")
	AssertEq(0, status)

	ExpectThat(attrs, fusetesting.FiletypeIs(fuseops.DirectoryFiletype))
	ExpectEq(0555, attrs.Mode&0777)
	ExpectThat(attrs, fusetesting.MtimeIs(t.Clock.Now()))
}

func (t *HelloFSTest) Stat_Hello() {
	attrs, status := t.Driver.Getattr(t.Ctx, "/hello")
	AssertEq(0, status)

	ExpectThat(attrs, fusetesting.FiletypeIs(fuseops.RegularFiletype))
	ExpectEq(len("Hello, world!"), attrs.Size)
	ExpectEq(0444, attrs.Mode&0777)
	ExpectEq(1, attrs.Nlink)
	ExpectThat(attrs, fusetesting.MtimeIs(t.Clock.Now()))
}

func (t *HelloFSTest) Stat_NonExistent() {
	_, status := t.Driver.Getattr(t.Ctx, "/foobar")
	ExpectEq(fuse3.ENOENT, status)
}

func (t *HelloFSTest) Open_ReadOnly() {
	_, status := t.Driver.Open(t.Ctx, "/hello", unix.O_RDONLY)
	ExpectEq(0, status)

	_, status = t.Driver.Open(t.Ctx, "/hello", unix.O_RDWR)
	ExpectEq(fuse3.EACCES, status)

	_, status = t.Driver.Open(t.Ctx, "/dir", unix.O_RDONLY)
	ExpectEq(fuse3.EISDIR, status)
}

func (t *HelloFSTest) ReadFile_Hello() {
	contents, err := fusetesting.ReadAll(t.Ctx, t.Driver, "/hello", 0, 4)
	AssertEq(nil, err)
	ExpectEq("Hello, world!", string(contents))
}

func (t *HelloFSTest) ReadFile_World() {
	contents, err := fusetesting.ReadAll(t.Ctx, t.Driver, "/dir/world", 0, 100)
	AssertEq(nil, err)
	ExpectEq("Hello, world!", string(contents))
}

func (t *HelloFSTest) ReadFile_Range() {
	dest := make([]byte, 5)
	n := t.Driver.Read(t.Ctx, "/hello", 0, dest, 7)
	AssertEq(5, n)
	ExpectEq("world", string(dest))

	n = t.Driver.Read(t.Ctx, "/hello", 0, dest, 100)
	ExpectEq(0, n)
}

func (t *HelloFSTest) WriteIsNotImplemented() {
	n := t.Driver.Write(t.Ctx, "/hello", 0, []byte("taco"), 0)
	ExpectEq(fuse3.ENOSYS, n)

	ExpectEq(fuse3.ENOSYS, t.Driver.Unlink(t.Ctx, "/hello"))
}
