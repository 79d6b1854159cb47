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

package samples

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/fusetesting"
)

// A struct that implements common behavior needed by tests in the samples/
// directory. Use it as an embedded field in your test fixture, calling its
// SetUp method from your SetUp method after setting the Handler field.
type SampleTest struct {
	// The handler to be mounted. Must be set by the user of this type before
	// calling SetUp.
	Handler interface{}

	// The config to mount with. The Transport field is overwritten by SetUp.
	MountConfig fuse3.MountConfig

	// A context object that can be used for long-running operations.
	Ctx context.Context

	// A clock with a fixed initial time. The test's set up method may use this
	// to wire the handler with a clock, if desired.
	Clock timeutil.SimulatedClock

	// Initialized by SetUp. The directory the handler is mounted on, the fake
	// kernel side, and the driver through which the test issues operations.
	Dir       string
	Transport *fusetesting.Transport
	Driver    *fuse3.Driver

	session *fuse3.Session
}

// Mount t.Handler and initialize the other exported fields of the struct.
// Panics on error.
//
// REQUIRES: t.Handler has been set.
func (t *SampleTest) SetUp(ti *ogletest.TestInfo) {
	cfg := t.MountConfig
	err := t.initialize(context.Background(), t.Handler, &cfg)
	if err != nil {
		panic(err)
	}
}

// Like SetUp, but doesn't panic.
func (t *SampleTest) initialize(
	ctx context.Context,
	handler interface{},
	config *fuse3.MountConfig) (err error) {
	// Initialize the context used by the test.
	t.Ctx = ctx

	// Set up a fixed, non-zero time.
	t.Clock.SetTime(time.Date(2015, 8, 15, 7, 0, 0, 0, time.Local))

	// Set up a temporary directory.
	t.Dir, err = ioutil.TempDir("", "sample_test")
	if err != nil {
		err = fmt.Errorf("TempDir: %v", err)
		return
	}

	// Mount the handler on a transport that needs no kernel.
	t.Transport = &fusetesting.Transport{}
	config.Transport = t.Transport

	t.session, err = fuse3.Mount(t.Dir, handler, config)
	if err != nil {
		err = fmt.Errorf("Mount: %v", err)
		return
	}

	t.Driver = t.Transport.Driver()
	return
}

// Unmount the handler and clean up. Panics on error.
func (t *SampleTest) TearDown() {
	err := t.destroy()
	if err != nil {
		panic(err)
	}
}

// Like TearDown, but doesn't panic.
func (t *SampleTest) destroy() (err error) {
	// Was the handler mounted?
	if t.session == nil {
		return
	}

	if err = t.session.Unmount(); err != nil {
		err = fmt.Errorf("Unmount: %v", err)
		return
	}

	if err = t.session.Join(t.Ctx); err != nil {
		err = fmt.Errorf("Join: %v", err)
		return
	}

	// Unlink the mount point.
	if err = os.Remove(t.Dir); err != nil {
		err = fmt.Errorf("Unlinking mount point: %v", err)
		return
	}

	return
}
