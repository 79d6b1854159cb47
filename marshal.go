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

	"github.com/juergengeck/one.fuse3/buffer"
	"github.com/juergengeck/one.fuse3/fuseops"
)

// The handler arguments for req, not counting the completion.
func marshalArgs(req *fuseops.Request) []interface{} {
	switch req.Kind {
	case fuseops.OpGetattr, fuseops.OpReaddir, fuseops.OpUnlink, fuseops.OpRmdir:
		return []interface{}{req.Path}

	case fuseops.OpOpen:
		return []interface{}{req.Path, req.Flags}

	case fuseops.OpRead, fuseops.OpWrite:
		return []interface{}{req.Path, req.Handle, req.Buffer, req.Length, req.Offset}

	case fuseops.OpCreate, fuseops.OpMkdir, fuseops.OpChmod:
		return []interface{}{req.Path, req.Mode}

	case fuseops.OpRename:
		return []interface{}{req.Path, req.NewPath}

	case fuseops.OpChown:
		return []interface{}{req.Path, req.Uid, req.Gid}

	case fuseops.OpTruncate:
		return []interface{}{req.Path, req.Size}

	case fuseops.OpUtimens:
		return []interface{}{req.Path, req.Atime, req.Mtime}

	case fuseops.OpRelease, fuseops.OpFlush:
		return []interface{}{req.Path, req.Handle}

	case fuseops.OpFsync:
		return []interface{}{req.Path, req.Datasync, req.Handle}

	case fuseops.OpAccess:
		return []interface{}{req.Path, req.Mask}
	}

	panic(fmt.Sprintf("marshalArgs: unexpected kind %v", req.Kind))
}

// Where the data for a successful read lives.
type readResult struct {
	// A private copy of data supplied by the handler, or nil.
	data []byte

	// Otherwise, a sealed envelope.
	env *buffer.Envelope
}

// Copy n bytes of the result into dst, which must be able to hold them.
func (r readResult) copyTo(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}

	if r.env != nil {
		return r.env.CopyTo(dst[:n])
	}

	return copy(dst, r.data[:n])
}

// Turn what a handler passed to its completion into the result the waiting
// driver goroutine sees: a status and, depending on the kind, Attributes,
// []string, a uint64 file handle or a readResult.
//
// err is non-nil if the completion was malformed, in which case the status
// is EINVAL.
func decodeCompletion(
	req *fuseops.Request,
	status int,
	payload []interface{}) (s int, v interface{}, err error) {
	// The handler may not touch a read buffer once it has completed.
	if req.Kind == fuseops.OpRead {
		defer req.Buffer.Seal()
	}

	if len(payload) > 1 {
		s = EINVAL
		err = fmt.Errorf("%d payloads supplied", len(payload))
		return
	}

	if status < 0 {
		s = status
		return
	}

	var p interface{}
	if len(payload) == 1 {
		p = payload[0]
	}

	switch req.Kind {
	case fuseops.OpGetattr:
		var attrs fuseops.Attributes
		if p == nil {
			err = fmt.Errorf("missing attributes")
		} else {
			attrs, err = fuseops.DecodeAttributes(p)
		}

		v = attrs

	case fuseops.OpReaddir:
		var names []string
		if p == nil {
			err = fmt.Errorf("missing entry list")
		} else {
			names, err = fuseops.DecodeNames(p)
		}

		v = names

	case fuseops.OpOpen, fuseops.OpCreate:
		var fh uint64
		if p != nil {
			fh, err = fuseops.DecodeHandle(p)
		}

		v = fh

	case fuseops.OpRead:
		s, v, err = decodeRead(req, status, p)
		if err != nil {
			s = EINVAL
		}

		return

	case fuseops.OpWrite:
		s = status
		if s > req.Length {
			s = req.Length
		}

		return
	}

	// All other kinds report success as zero.
	if err != nil {
		s = EINVAL
		v = nil
	}

	return
}

// The number of bytes read is the smallest of the status, the requested
// length and the length of the data supplied.
func decodeRead(
	req *fuseops.Request,
	status int,
	p interface{}) (n int, r readResult, err error) {
	n = status
	if n > req.Length {
		n = req.Length
	}

	switch typed := p.(type) {
	case nil:
		r.env = req.Buffer

	case []byte:
		if n > len(typed) {
			n = len(typed)
		}

		r.data = append([]byte{}, typed[:n]...)
		return

	case *buffer.Envelope:
		if typed == nil {
			err = fmt.Errorf("nil envelope")
			return
		}

		if typed == req.Buffer {
			r.env = typed
			break
		}

		// Not ours, so take a copy now.
		if n > typed.Len() {
			n = typed.Len()
		}

		r.data = make([]byte, n)
		typed.CopyTo(r.data)
		return

	default:
		err = fmt.Errorf("unexpected read payload type %T", p)
		return
	}

	if n > r.env.Len() {
		n = r.env.Len()
	}

	return
}
