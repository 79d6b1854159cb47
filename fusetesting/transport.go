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

// Package fusetesting contains helpers for testing handlers and the bridge
// without a kernel.
package fusetesting

import (
	"sync"
	"syscall"

	"github.com/juergengeck/one.fuse3"
)

// A fuse3.Transport that mounts nothing. Each Bind produces a Conn whose
// Serve blocks until Unmount or Detach, and records the Driver so that tests
// can issue operations the way the kernel would.
type Transport struct {
	// If non-nil, Bind fails with this error.
	BindErr error

	// If non-nil, every Conn's WaitMount fails with this error.
	WaitMountErr error

	// The number of times each Conn's Unmount reports EBUSY before
	// succeeding.
	BusyUnmounts int

	mu     sync.Mutex
	conns  []*Conn       // GUARDED_BY(mu)
	driver *fuse3.Driver // GUARDED_BY(mu)
}

var _ fuse3.Transport = &Transport{}

func (t *Transport) Bind(
	dir string,
	d *fuse3.Driver,
	config *fuse3.MountConfig) (fuse3.Conn, error) {
	if t.BindErr != nil {
		return nil, t.BindErr
	}

	c := &Conn{
		dir:       dir,
		waitErr:   t.WaitMountErr,
		busy:      t.BusyUnmounts,
		unmounted: make(chan struct{}),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns = append(t.conns, c)
	t.driver = d

	return c, nil
}

// The driver of the most recent successful Bind, or nil.
func (t *Transport) Driver() *fuse3.Driver {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.driver
}

// The Conn produced by the most recent successful Bind, or nil.
func (t *Transport) Conn() *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.conns) == 0 {
		return nil
	}

	return t.conns[len(t.conns)-1]
}

// The number of successful Binds so far.
func (t *Transport) Binds() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.conns)
}

// A pretend mount produced by Transport.
type Conn struct {
	dir       string
	waitErr   error
	unmounted chan struct{}
	once      sync.Once

	mu       sync.Mutex
	busy     int // GUARDED_BY(mu)
	unmounts int // GUARDED_BY(mu)
}

var _ fuse3.Conn = &Conn{}

func (c *Conn) Dir() string {
	return c.dir
}

func (c *Conn) Serve() {
	<-c.unmounted
}

func (c *Conn) WaitMount() error {
	return c.waitErr
}

func (c *Conn) Unmount() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unmounts++
	if c.busy > 0 {
		c.busy--
		return syscall.EBUSY
	}

	c.Detach()
	return nil
}

// Make Serve return as if the file system had been unmounted from outside
// the process.
func (c *Conn) Detach() {
	c.once.Do(func() { close(c.unmounted) })
}

// The number of calls to Unmount so far, including failed ones.
func (c *Conn) Unmounts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.unmounts
}
