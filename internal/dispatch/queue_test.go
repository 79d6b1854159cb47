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

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/juergengeck/one.fuse3/internal/dispatch"
	. "github.com/jacobsa/ogletest"
)

func TestQueue(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type QueueTest struct {
	q *dispatch.Queue[int]
}

var _ SetUpInterface = &QueueTest{}

func init() { RegisterTestSuite(&QueueTest{}) }

func (t *QueueTest) SetUp(ti *TestInfo) {
	t.q = dispatch.NewQueue[int]()
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *QueueTest) FIFO() {
	for i := 0; i < 5; i++ {
		AssertTrue(t.q.Push(i))
	}

	ExpectEq(5, t.q.Len())

	for i := 0; i < 5; i++ {
		x, ok := t.q.Pop()
		AssertTrue(ok)
		ExpectEq(i, x)
	}

	ExpectEq(0, t.q.Len())
}

func (t *QueueTest) PopBlocksUntilPush() {
	popped := make(chan int, 1)
	go func() {
		x, _ := t.q.Pop()
		popped <- x
	}()

	select {
	case <-popped:
		AddFailure("Pop returned on an empty queue")
		return
	case <-time.After(20 * time.Millisecond):
	}

	t.q.Push(7)

	select {
	case x := <-popped:
		ExpectEq(7, x)
	case <-time.After(5 * time.Second):
		AddFailure("Pop did not return after Push")
	}
}

func (t *QueueTest) CloseDrainsThenStops() {
	t.q.Push(1)
	t.q.Push(2)
	t.q.Close()
	t.q.Close()

	ExpectFalse(t.q.Push(3))

	x, ok := t.q.Pop()
	AssertTrue(ok)
	ExpectEq(1, x)

	x, ok = t.q.Pop()
	AssertTrue(ok)
	ExpectEq(2, x)

	_, ok = t.q.Pop()
	ExpectFalse(ok)
}

func (t *QueueTest) CloseWakesBlockedConsumer() {
	done := make(chan bool, 1)
	go func() {
		_, ok := t.q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	t.q.Close()

	select {
	case ok := <-done:
		ExpectFalse(ok)
	case <-time.After(5 * time.Second):
		AddFailure("Pop did not return after Close")
	}
}

func (t *QueueTest) PerProducerOrderIsPreserved() {
	const numProducers = 8
	const perProducer = 500

	// Encode the producer in the high digits and the sequence number in the
	// low ones.
	b := syncutil.NewBundle(context.Background())
	for p := 0; p < numProducers; p++ {
		p := p
		b.Add(func(ctx context.Context) error {
			for i := 0; i < perProducer; i++ {
				t.q.Push(p*perProducer + i)
			}

			return nil
		})
	}

	AssertEq(nil, b.Join())
	t.q.Close()

	next := make([]int, numProducers)
	count := 0
	for {
		x, ok := t.q.Pop()
		if !ok {
			break
		}

		p, i := x/perProducer, x%perProducer
		ExpectEq(next[p], i, "producer %d", p)
		next[p] = i + 1
		count++
	}

	ExpectEq(numProducers*perProducer, count)
}
