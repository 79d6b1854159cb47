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

package fuse3_test

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/fusetesting"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"golang.org/x/net/context"
)

func TestSession(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// A handler whose getattr calls are finished by the test.
type parkingHandler struct {
	getattrs chan fuse3Completion
}

type fuse3Completion = func(status int, payload ...interface{})

func (h *parkingHandler) Getattr(path string, complete fuse3Completion) {
	h.getattrs <- complete
}

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type SessionTest struct {
	ctx       context.Context
	dir       string
	transport *fusetesting.Transport
	config    fuse3.MountConfig
	handler   *parkingHandler
	session   *fuse3.Session
}

var _ SetUpInterface = &SessionTest{}
var _ TearDownInterface = &SessionTest{}

func init() { RegisterTestSuite(&SessionTest{}) }

func (t *SessionTest) SetUp(ti *TestInfo) {
	var err error

	t.ctx = context.Background()
	t.dir, err = os.MkdirTemp("", "session_test")
	AssertEq(nil, err)

	t.transport = &fusetesting.Transport{}
	t.config = fuse3.MountConfig{
		Transport:           t.transport,
		UnmountRetryTimeout: 5 * time.Second,
	}

	t.handler = &parkingHandler{getattrs: make(chan fuse3Completion, 1)}
	t.session = fuse3.NewSession(t.dir, t.handler, &t.config)
}

func (t *SessionTest) TearDown() {
	if t.session.IsMounted() {
		ExpectEq(nil, t.session.Unmount())
	}

	os.RemoveAll(t.dir)
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *SessionTest) StartsUnmounted() {
	ExpectEq(fuse3.Unmounted, t.session.State())
	ExpectFalse(t.session.IsMounted())
	ExpectFalse(fuse3.IsMounted(t.dir))
	ExpectEq(t.dir, t.session.Dir())

	// Joining a session that was never mounted returns at once.
	ExpectEq(nil, t.session.Join(t.ctx))
}

func (t *SessionTest) MountThenUnmount() {
	AssertEq(nil, t.session.Mount())

	ExpectEq(fuse3.Mounted, t.session.State())
	ExpectTrue(fuse3.IsMounted(t.dir))
	ExpectEq(1, t.transport.Binds())
	ExpectEq(t.dir, t.transport.Conn().Dir())

	AssertEq(nil, t.session.Unmount())

	ExpectEq(fuse3.Unmounted, t.session.State())
	ExpectFalse(fuse3.IsMounted(t.dir))
	ExpectEq(nil, t.session.Join(t.ctx))
}

func (t *SessionTest) RemountSameSession() {
	for i := 0; i < 3; i++ {
		AssertEq(nil, t.session.Mount())

		// Each mount is served by its own driver.
		d := t.transport.Driver()
		go func() { (<-t.handler.getattrs)(0, regularFile(0644)) }()

		_, status := d.Getattr(t.ctx, "/foo")
		ExpectEq(0, status)

		AssertEq(nil, t.session.Unmount())
	}

	ExpectEq(3, t.transport.Binds())
}

func (t *SessionTest) MountTwice() {
	AssertEq(nil, t.session.Mount())

	err := t.session.Mount()
	ExpectEq(fuse3.ErrAlreadyMounted, err)
	ExpectEq(fuse3.Mounted, t.session.State())
	ExpectEq(1, t.transport.Binds())
}

func (t *SessionTest) SecondSessionOnSameDirectory() {
	AssertEq(nil, t.session.Mount())

	other := fuse3.NewSession(t.dir, t.handler, &t.config)
	ExpectEq(fuse3.ErrAlreadyMounted, other.Mount())
	ExpectEq(fuse3.Unmounted, other.State())

	// Once the first lets go, the second may have it.
	AssertEq(nil, t.session.Unmount())
	AssertEq(nil, other.Mount())
	ExpectTrue(fuse3.IsMounted(t.dir))
	ExpectEq(nil, other.Unmount())
}

func (t *SessionTest) UnmountWhenNotMounted() {
	ExpectEq(fuse3.ErrNotMounted, t.session.Unmount())

	AssertEq(nil, t.session.Mount())
	AssertEq(nil, t.session.Unmount())
	ExpectEq(fuse3.ErrNotMounted, t.session.Unmount())
}

func (t *SessionTest) BindFailure() {
	t.transport.BindErr = errors.New("taco")

	err := t.session.Mount()
	ExpectThat(err, Error(HasSubstr("Bind")))
	ExpectThat(err, Error(HasSubstr("taco")))
	ExpectEq(fuse3.Unmounted, t.session.State())
	ExpectFalse(fuse3.IsMounted(t.dir))

	// Only that attempt failed.
	t.transport.BindErr = nil
	AssertEq(nil, t.session.Mount())
	ExpectTrue(t.session.IsMounted())
}

func (t *SessionTest) OpsWithUnknownKeyIsRefused() {
	ops := fuse3.Ops{
		"getattr":  func(path string, complete fuse3Completion) {},
		"readlink": func(path string, complete fuse3Completion) {},
	}

	s := fuse3.NewSession(t.dir, ops, &t.config)
	err := s.Mount()
	ExpectThat(err, Error(HasSubstr("readlink")))
	ExpectEq(fuse3.Unmounted, s.State())
	ExpectEq(0, t.transport.Binds())
	ExpectFalse(fuse3.IsMounted(t.dir))

	// Plain maps are checked the same way.
	s = fuse3.NewSession(t.dir, map[string]interface{}{"Getattr": nil}, &t.config)
	ExpectThat(s.Mount(), Error(HasSubstr("Getattr")))
}

func (t *SessionTest) WaitMountFailure() {
	t.transport.WaitMountErr = errors.New("burrito")

	err := t.session.Mount()
	ExpectThat(err, Error(HasSubstr("WaitMount")))
	ExpectThat(err, Error(HasSubstr("burrito")))
	ExpectEq(fuse3.Unmounted, t.session.State())
	ExpectFalse(fuse3.IsMounted(t.dir))

	// The failure is also what Join reports.
	ExpectThat(t.session.Join(t.ctx), Error(HasSubstr("burrito")))
}

func (t *SessionTest) ExternalUnmount() {
	AssertEq(nil, t.session.Mount())

	t.transport.Conn().Detach()
	AssertEq(nil, t.session.Join(t.ctx))

	ExpectEq(fuse3.Unmounted, t.session.State())
	ExpectFalse(fuse3.IsMounted(t.dir))
	ExpectEq(fuse3.ErrNotMounted, t.session.Unmount())

	// The session is still usable.
	AssertEq(nil, t.session.Mount())
	ExpectTrue(t.session.IsMounted())
}

func (t *SessionTest) BusyUnmountIsRetried() {
	t.transport.BusyUnmounts = 2
	AssertEq(nil, t.session.Mount())

	AssertEq(nil, t.session.Unmount())
	ExpectEq(3, t.transport.Conn().Unmounts())
	ExpectEq(fuse3.Unmounted, t.session.State())
}

func (t *SessionTest) BusyUnmountGivesUp() {
	t.transport.BusyUnmounts = 1 << 30
	t.config.UnmountRetryTimeout = 50 * time.Millisecond
	t.session = fuse3.NewSession(t.dir, t.handler, &t.config)
	AssertEq(nil, t.session.Mount())

	err := t.session.Unmount()
	ExpectThat(err, Error(HasSubstr(syscall.EBUSY.Error())))
	ExpectEq(fuse3.Mounted, t.session.State())

	// Let TearDown succeed.
	t.transport.Conn().Detach()
	AssertEq(nil, t.session.Join(t.ctx))
}

func (t *SessionTest) UnmountWaitsForOperationsInFlight() {
	AssertEq(nil, t.session.Mount())
	d := t.transport.Driver()

	// Start an operation and let the handler sit on it.
	statuses := make(chan int, 1)
	go func() {
		_, status := d.Getattr(t.ctx, "/foo")
		statuses <- status
	}()

	complete := <-t.handler.getattrs

	unmounted := make(chan error, 1)
	go func() { unmounted <- t.session.Unmount() }()

	select {
	case <-unmounted:
		AddFailure("Unmount returned while an operation was in flight")
		return
	case <-time.After(50 * time.Millisecond):
	}

	complete(fuse3.ENOENT)

	ExpectEq(fuse3.ENOENT, <-statuses)
	ExpectEq(nil, <-unmounted)
	ExpectEq(fuse3.Unmounted, t.session.State())
}

func (t *SessionTest) DriverRejectsCallsAfterUnmount() {
	AssertEq(nil, t.session.Mount())
	d := t.transport.Driver()
	AssertEq(nil, t.session.Unmount())

	_, status := d.Getattr(t.ctx, "/")
	ExpectEq(fuse3.EIO, status)
}

func (t *SessionTest) JoinHonorsContext() {
	AssertEq(nil, t.session.Mount())

	ctx, cancel := context.WithTimeout(t.ctx, 10*time.Millisecond)
	defer cancel()

	ExpectThat(t.session.Join(ctx), Error(HasSubstr("deadline")))
}

func (t *SessionTest) PackageLevelMount() {
	s, err := fuse3.Mount(t.dir, t.handler, &t.config)
	AssertEq(nil, err)
	ExpectTrue(fuse3.IsMounted(t.dir))

	_, err = fuse3.Mount(t.dir, t.handler, &t.config)
	ExpectEq(fuse3.ErrAlreadyMounted, err)

	ExpectEq(nil, s.Unmount())
	ExpectFalse(fuse3.IsMounted(t.dir))
}
