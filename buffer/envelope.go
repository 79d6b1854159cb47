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

// Package buffer contains the owned, bounds-checked byte regions that carry
// read and write payloads between driver goroutines and the handler.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// Returned by mutating methods once the envelope has been sealed, i.e.
	// after the operation it belongs to has completed.
	ErrSealed = errors.New("buffer: envelope is sealed")

	// Returned by mutating methods on envelopes created with Copy.
	ErrReadOnly = errors.New("buffer: envelope is read-only")

	// Returned for negative offsets.
	ErrNegativeOffset = errors.New("buffer: negative offset")
)

// Envelope is a fixed-size byte region owned by a single operation. Writes
// never grow it: anything past the end is dropped and reported as a short
// write.
//
// An envelope may be read and written from any goroutine, but it is only
// meaningful to do so while its operation is in flight. Once the operation
// completes the envelope is sealed and every further mutation fails with
// ErrSealed.
type Envelope struct {
	mu sync.Mutex

	// INVARIANT: len(data) is fixed at creation
	data []byte // GUARDED_BY(mu)

	// The high-water mark of bytes written.
	//
	// INVARIANT: 0 <= filled <= len(data)
	filled int // GUARDED_BY(mu)

	readOnly bool
	sealed   bool // GUARDED_BY(mu)
}

// Create a zeroed, writable envelope of exactly size bytes.
func New(size int) *Envelope {
	if size < 0 {
		panic(fmt.Sprintf("buffer.New: negative size %d", size))
	}

	return &Envelope{data: make([]byte, size)}
}

// Create a read-only envelope holding a private copy of p. Later changes to p
// are not visible through the envelope.
func Copy(p []byte) *Envelope {
	data := make([]byte, len(p))
	copy(data, p)

	return &Envelope{
		data:     data,
		filled:   len(data),
		readOnly: true,
	}
}

// Return the fixed size of the envelope.
func (e *Envelope) Len() int {
	return len(e.data)
}

// Return the number of leading bytes that have been written (for envelopes
// created with Copy, all of them).
func (e *Envelope) Filled() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.filled
}

// Is this envelope read-only?
func (e *Envelope) ReadOnly() bool {
	return e.readOnly
}

// ReadAt implements io.ReaderAt over the whole fixed region.
func (e *Envelope) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = ErrNegativeOffset
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if off >= int64(len(e.data)) {
		err = io.EOF
		return
	}

	n = copy(p, e.data[off:])
	if n < len(p) {
		err = io.EOF
	}

	return
}

// WriteAt implements io.WriterAt. Bytes that would land past the end of the
// envelope are discarded and io.ErrShortWrite is returned.
func (e *Envelope) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = ErrNegativeOffset
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n, err = e.writeAtLocked(p, off)
	return
}

// LOCKS_REQUIRED(e.mu)
func (e *Envelope) writeAtLocked(p []byte, off int64) (n int, err error) {
	if err = e.checkWritable(); err != nil {
		return
	}

	if off < int64(len(e.data)) {
		n = copy(e.data[off:], p)
	}

	if end := int(off) + n; n > 0 && end > e.filled {
		e.filled = end
	}

	if n < len(p) {
		err = io.ErrShortWrite
	}

	return
}

// Write appends p after the bytes written so far, subject to the same
// truncation rule as WriteAt.
func (e *Envelope) Write(p []byte) (n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.writeAtLocked(p, int64(e.filled))
}

// Copy up to len(dst) bytes from the start of the envelope into dst,
// returning the number copied.
func (e *Envelope) CopyTo(dst []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return copy(dst, e.data)
}

// Return a private copy of the filled prefix of the envelope.
func (e *Envelope) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := make([]byte, e.filled)
	copy(b, e.data)
	return b
}

// Forbid all further mutation. Idempotent.
func (e *Envelope) Seal() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sealed = true
}

// Has Seal been called?
func (e *Envelope) Sealed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sealed
}

func (e *Envelope) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fmt.Sprintf(
		"Envelope{len: %d, filled: %d, read-only: %v, sealed: %v}",
		len(e.data),
		e.filled,
		e.readOnly,
		e.sealed)
}

// LOCKS_REQUIRED(e.mu)
func (e *Envelope) checkWritable() error {
	switch {
	case e.sealed:
		return ErrSealed

	case e.readOnly:
		return ErrReadOnly
	}

	return nil
}
