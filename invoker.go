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
	"log"
	"reflect"
	"runtime"

	"github.com/juergengeck/one.fuse3/fuseops"
	"github.com/juergengeck/one.fuse3/internal/completion"
	"github.com/juergengeck/one.fuse3/internal/dispatch"
	"golang.org/x/sys/unix"
)

// An operation waiting for, or being served by, the handler.
type call struct {
	req  *fuseops.Request
	slot *completion.Slot
}

// What getattr reports for the root when the handler has no Getattr.
var rootAttributes = fuseops.Attributes{
	Mode:  unix.S_IFDIR | 0755,
	Nlink: 2,
}

// The invoker owns the only goroutine that ever calls into the handler.
type invoker struct {
	handler      interface{}
	queue        *dispatch.Queue[*call]
	lockOSThread bool
	debugLogger  *log.Logger
	errorLogger  *log.Logger
	metrics      *metrics

	// Closed when the goroutine has exited.
	done chan struct{}
}

// Start serving calls from q. The goroutine exits once q has been closed and
// drained.
func startInvoker(
	handler interface{},
	q *dispatch.Queue[*call],
	config *MountConfig,
	m *metrics) (inv *invoker) {
	inv = &invoker{
		handler:      handler,
		queue:        q,
		lockOSThread: config.LockOSThread,
		debugLogger:  config.debugLogger(),
		errorLogger:  config.errorLogger(),
		metrics:      m,
		done:         make(chan struct{}),
	}

	go inv.loop()
	return
}

func (inv *invoker) loop() {
	defer close(inv.done)

	if inv.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	for {
		c, ok := inv.queue.Pop()
		if !ok {
			return
		}

		inv.metrics.queueDepth.Dec()
		inv.invoke(c)
	}
}

// Block until the goroutine has exited.
func (inv *invoker) join() {
	<-inv.done
}

func (inv *invoker) invoke(c *call) {
	fn, ok := lookupHandler(inv.handler, c.req.Kind)
	if !ok {
		inv.answerMissing(c)
		return
	}

	in, err := bindArgs(fn, marshalArgs(c.req), inv.completionFor(c))
	if err != nil {
		inv.errorLogger.Printf("%v: unusable %s handler: %v", c.req, c.req.Kind, err)
		inv.finish(c, EIO, nil)
		return
	}

	inv.callHandler(c, fn, in)
}

// Call fn, turning a panic or a returned error into EIO. Neither affects
// later calls.
func (inv *invoker) callHandler(c *call, fn reflect.Value, in []reflect.Value) {
	defer func() {
		if r := recover(); r != nil {
			inv.errorLogger.Printf("%v: handler panicked: %v", c.req, r)
			inv.finish(c, EIO, nil)
		}
	}()

	out := fn.Call(in)
	if err := returnedError(out); err != nil {
		inv.errorLogger.Printf("%v: handler returned error: %v", c.req, err)
		inv.finish(c, EIO, nil)
	}
}

func (inv *invoker) answerMissing(c *call) {
	if c.req.Kind == fuseops.OpGetattr {
		if c.req.Path == "/" {
			inv.finish(c, 0, []interface{}{rootAttributes})
		} else {
			inv.finish(c, ENOENT, nil)
		}

		return
	}

	inv.debugLogger.Printf("%v: no handler", c.req)
	inv.finish(c, ENOSYS, nil)
}

// The completion handed to the handler for c.
func (inv *invoker) completionFor(c *call) fuseops.Completion {
	return func(status int, payload ...interface{}) {
		if inv.finish(c, status, payload) {
			return
		}

		inv.errorLogger.Printf(
			"%v: completed more than once; ignoring status %d",
			c.req,
			status)

		inv.metrics.doubleCompletions.WithLabelValues(c.req.Kind.String()).Inc()
	}
}

// Resolve c's slot from a completion, unless it has already been resolved.
// Return true if this call resolved it.
//
// May be called from any goroutine.
func (inv *invoker) finish(c *call, status int, payload []interface{}) bool {
	var malformed error
	won := c.slot.ResolveWith(func() (int, interface{}) {
		s, v, err := decodeCompletion(c.req, status, payload)
		malformed = err
		return s, v
	})

	if malformed != nil {
		inv.errorLogger.Printf("%v: malformed completion: %v", c.req, malformed)
	}

	return won
}
