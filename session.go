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
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/juergengeck/one.fuse3/internal/dispatch"
	"golang.org/x/net/context"
)

// The lifecycle of a session:
//
//     Unmounted -> Mounting -> Mounted -> Unmounting -> Unmounted
//
// A failed mount goes straight from Mounting back to Unmounted, as does an
// unmount performed from outside the process.
type State int

const (
	Unmounted State = iota
	Mounting
	Mounted
	Unmounting
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Mounted:
		return "mounted"
	case Unmounting:
		return "unmounting"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// A handler together with the directory it is mounted on. A session may be
// mounted and unmounted any number of times, though only once at a time.
//
// Must be created with NewSession.
type Session struct {
	dir     string
	handler interface{}
	config  MountConfig

	// Serializes Mount and Unmount.
	opMu sync.Mutex

	mu syncutil.InvariantMutex

	// INVARIANT: state is one of the declared states
	state State // GUARDED_BY(mu)

	// The bound mount, once the transport has produced it.
	//
	// INVARIANT: If state == Unmounted, conn == nil
	conn Conn // GUARDED_BY(mu)

	// Closed when the most recently started driver goroutine has exited. nil
	// before the first Mount.
	exited chan struct{} // GUARDED_BY(mu)

	// What ended the most recent mount. Valid once exited has been closed.
	joinStatus error // GUARDED_BY(mu)
}

// Create an unmounted session for the given handler and directory. config
// may be nil.
func NewSession(
	dir string,
	handler interface{},
	config *MountConfig) (s *Session) {
	s = &Session{
		dir:     canonicalDir(dir),
		handler: handler,
		state:   Unmounted,
	}

	if config != nil {
		s.config = *config
	}

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return
}

func (s *Session) checkInvariants() {
	// INVARIANT: state is one of the declared states
	if s.state < Unmounted || s.state > Unmounting {
		panic(fmt.Sprintf("Illegal state: %v", s.state))
	}

	// INVARIANT: If state == Unmounted, conn == nil
	if s.state == Unmounted && s.conn != nil {
		panic("Unmounted session has a connection")
	}
}

// Mount handler on dir and return a session for it. This is NewSession
// followed by Mount.
func Mount(
	dir string,
	handler interface{},
	config *MountConfig) (s *Session, err error) {
	s = NewSession(dir, handler, config)
	if err = s.Mount(); err != nil {
		s = nil
		return
	}

	return
}

// Return the directory on which the session is mounted (or where we
// attempted to mount it).
func (s *Session) Dir() string {
	return s.dir
}

// LOCKS_EXCLUDED(s.mu)
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// LOCKS_EXCLUDED(s.mu)
func (s *Session) IsMounted() bool {
	return s.State() == Mounted
}

// Mount the handler. Do not return until the kernel has finished mounting,
// or the attempt has failed and everything it started has been torn down.
//
// Return ErrAlreadyMounted if the session is not unmounted, or if another
// session of this process holds the directory.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Session) Mount() (err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()

	if s.state != Unmounted {
		s.mu.Unlock()
		err = ErrAlreadyMounted
		return
	}

	if err = checkHandler(s.handler); err != nil {
		s.mu.Unlock()
		err = fmt.Errorf("checkHandler: %v", err)
		return
	}

	m, err := newMetrics(s.config.Registerer)
	if err != nil {
		s.mu.Unlock()
		err = fmt.Errorf("newMetrics: %v", err)
		return
	}

	if err = gRegistry.add(s.dir, s); err != nil {
		s.mu.Unlock()
		return
	}

	exited := make(chan struct{})
	s.state = Mounting
	s.exited = exited
	s.joinStatus = nil
	s.mu.Unlock()

	s.config.debugLogger().Printf("Mounting %s; handler serves %v", s.dir, servedKinds(s.handler))

	// Every mount gets a fresh queue and handler goroutine.
	q := dispatch.NewQueue[*call]()
	inv := startInvoker(s.handler, q, &s.config, m)
	d := newDriver(q, &s.config, m)

	ready := make(chan error, 1)
	go s.drive(d, q, inv, ready, exited)

	if err = <-ready; err != nil {
		<-exited
		err = fmt.Errorf("Mount: %v", err)
		return
	}

	return
}

// The driver goroutine: bind, serve until unmounted, then tear down. Exactly
// one value is sent on ready.
func (s *Session) drive(
	d *Driver,
	q *dispatch.Queue[*call],
	inv *invoker,
	ready chan<- error,
	exited chan struct{}) {
	conn, err := s.config.transport().Bind(s.dir, d, &s.config)
	if err != nil {
		err = fmt.Errorf("Bind: %v", err)
		ready <- err
		s.teardown(d, q, inv, err, exited)
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// Mounting completes only once requests are being served, so wait for it
	// in the background.
	waited := make(chan error, 1)
	go func() {
		err := conn.WaitMount()
		if err != nil {
			err = fmt.Errorf("WaitMount: %v", err)
			ready <- err
			waited <- err
			conn.Unmount()
			return
		}

		s.mu.Lock()
		if s.state == Mounting {
			s.state = Mounted
		}
		s.mu.Unlock()

		ready <- nil
		waited <- nil
	}()

	conn.Serve()
	s.teardown(d, q, inv, <-waited, exited)
}

// Wait for in-flight operations, stop the handler goroutine and release the
// directory.
func (s *Session) teardown(
	d *Driver,
	q *dispatch.Queue[*call],
	inv *invoker,
	status error,
	exited chan struct{}) {
	d.shutdown()
	q.Close()
	inv.join()

	gRegistry.remove(s.dir, s)

	s.mu.Lock()
	s.state = Unmounted
	s.conn = nil
	s.joinStatus = status
	s.mu.Unlock()

	close(exited)
}

// Unmount the handler. Do not return until every operation in flight has
// been answered and the handler goroutine has exited.
//
// Return ErrNotMounted if the session is not mounted.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Session) Unmount() (err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()

	if s.state != Mounted {
		s.mu.Unlock()
		err = ErrNotMounted
		return
	}

	s.state = Unmounting
	conn := s.conn
	exited := s.exited
	s.mu.Unlock()

	err = unmountWithRetry(conn, s.config.unmountRetryTimeout())
	if err != nil {
		select {
		case <-exited:
			// Unmounted from outside in the meantime.
			err = nil
			return

		default:
		}

		s.mu.Lock()
		if s.state == Unmounting {
			s.state = Mounted
		}
		s.mu.Unlock()

		err = fmt.Errorf("Unmount: %v", err)
		return
	}

	<-exited
	return
}

// Block until the current mount has ended, by Unmount or from outside the
// process, and every operation it received has been answered. Return
// immediately if the session has never been mounted.
//
// The return value is non-nil if mounting failed. May be called multiple
// times.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Session) Join(ctx context.Context) (err error) {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()

	if exited == nil {
		return
	}

	select {
	case <-exited:
		s.mu.Lock()
		err = s.joinStatus
		s.mu.Unlock()

	case <-ctx.Done():
		err = ctx.Err()
	}

	return
}
