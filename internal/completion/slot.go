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

// Package completion provides a one-shot result channel between the
// goroutine that blocks on an operation and whoever finishes it.
package completion

import (
	"fmt"

	"github.com/jacobsa/syncutil"
)

// A Slot starts out pending and is resolved at most once. Any number of
// goroutines may try to resolve it; the first one wins and the rest are
// told so.
//
// Must be created with New.
type Slot struct {
	mu syncutil.InvariantMutex

	// INVARIANT: resolved iff done has been closed
	resolved bool // GUARDED_BY(mu)

	// Valid once done is closed. Never modified afterward.
	status  int
	payload interface{}

	done chan struct{}
}

// Create a pending slot.
func New() (s *Slot) {
	s = &Slot{
		done: make(chan struct{}),
	}

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return
}

func (s *Slot) checkInvariants() {
	closed := false
	select {
	case <-s.done:
		closed = true
	default:
	}

	if s.resolved != closed {
		panic(fmt.Sprintf("resolved is %v but done closed is %v", s.resolved, closed))
	}
}

// Resolve the slot with the given result. Return false, changing nothing, if
// the slot was already resolved.
func (s *Slot) Resolve(status int, payload interface{}) bool {
	return s.ResolveWith(func() (int, interface{}) { return status, payload })
}

// Like Resolve, but the result is computed by f. f runs only if this call
// wins, and it runs before any waiter is released, so f may finish touching
// state that the waiter will read afterward. f must not call back into the
// slot.
func (s *Slot) ResolveWith(f func() (int, interface{})) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return false
	}

	s.status, s.payload = f()
	s.resolved = true
	close(s.done)

	return true
}

// Has the slot been resolved?
func (s *Slot) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolved
}

// Return a channel that is closed once the slot is resolved.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Block until the slot is resolved, then return its result. May be called
// any number of times from any goroutine.
func (s *Slot) Wait() (status int, payload interface{}) {
	<-s.done

	status = s.status
	payload = s.payload
	return
}
