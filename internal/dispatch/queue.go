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

// Package dispatch moves work from many submitting goroutines onto a single
// consuming goroutine.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"
)

// An unbounded FIFO queue with any number of producers and a single
// consumer. Items pushed by one goroutine are popped in the order that
// goroutine pushed them; there is no ordering between producers beyond
// whatever order they happen to take the lock in.
//
// Must be created with NewQueue.
type Queue[T any] struct {
	mu syncutil.InvariantMutex

	// Signalled when items becomes non-empty or the queue is closed.
	nonEmptyOrClosed sync.Cond

	// Items waiting to be popped, oldest first.
	items []T // GUARDED_BY(mu)

	// INVARIANT: If closed, no item is ever appended to items again.
	closed bool // GUARDED_BY(mu)

	// The number of items ever pushed and popped.
	//
	// INVARIANT: popped <= pushed
	// INVARIANT: pushed - popped == len(items)
	pushed uint64 // GUARDED_BY(mu)
	popped uint64 // GUARDED_BY(mu)
}

func NewQueue[T any]() (q *Queue[T]) {
	q = &Queue[T]{}
	q.mu = syncutil.NewInvariantMutex(q.checkInvariants)
	q.nonEmptyOrClosed.L = &q.mu

	return
}

func (q *Queue[T]) checkInvariants() {
	// INVARIANT: popped <= pushed
	if !(q.popped <= q.pushed) {
		panic(fmt.Sprintf("popped %d > pushed %d", q.popped, q.pushed))
	}

	// INVARIANT: pushed - popped == len(items)
	if q.pushed-q.popped != uint64(len(q.items)) {
		panic(fmt.Sprintf(
			"pushed - popped == %d, but %d items queued",
			q.pushed-q.popped,
			len(q.items)))
	}
}

// Append x to the queue without waiting for the consumer. Return false if
// the queue has been closed, in which case x is dropped.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue[T]) Push(x T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, x)
	q.pushed++
	q.nonEmptyOrClosed.Signal()

	return true
}

// Block until an item is available and remove it from the head of the
// queue. Once the queue has been closed and drained, return ok == false.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue[T]) Pop() (x T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.nonEmptyOrClosed.Wait()
	}

	if len(q.items) == 0 {
		return
	}

	x = q.items[0]

	// Let the popped item be collected.
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	q.popped++

	ok = true
	return
}

// Refuse further pushes. Items already queued are still handed out by Pop.
// Idempotent.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.nonEmptyOrClosed.Broadcast()
}

// Return the number of items currently queued.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
