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

package fuseops

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Decode a getattr payload. Accepted forms are Attributes, a non-nil
// *Attributes, and a map with any of the keys "mode", "size", "uid", "gid",
// "nlink", "atime", "mtime" and "ctime". Times in a map may be time.Time or
// numeric seconds since the epoch. Unknown keys are ignored.
func DecodeAttributes(payload interface{}) (a Attributes, err error) {
	switch typed := payload.(type) {
	case Attributes:
		a = typed
		return

	case *Attributes:
		if typed == nil {
			err = fmt.Errorf("nil *Attributes")
			return
		}

		a = *typed
		return

	case map[string]interface{}:
		err = decodeAttributeMap(typed, &a)
		return

	default:
		err = fmt.Errorf("unexpected attributes type %T", payload)
		return
	}
}

func decodeAttributeMap(m map[string]interface{}, a *Attributes) (err error) {
	ints := []struct {
		key string
		f   func(uint64) bool
	}{
		{"mode", func(v uint64) bool { a.Mode = uint32(v); return v <= math.MaxUint32 }},
		{"size", func(v uint64) bool { a.Size = v; return true }},
		{"uid", func(v uint64) bool { a.Uid = uint32(v); return v <= math.MaxUint32 }},
		{"gid", func(v uint64) bool { a.Gid = uint32(v); return v <= math.MaxUint32 }},
		{"nlink", func(v uint64) bool { a.Nlink = uint32(v); return v <= math.MaxUint32 }},
	}

	for _, f := range ints {
		v, ok := m[f.key]
		if !ok {
			continue
		}

		n, ok := toUint64(v)
		if !ok || !f.f(n) {
			err = fmt.Errorf("attribute %q: unusable value %v (%T)", f.key, v, v)
			return
		}
	}

	times := []struct {
		key string
		dst *time.Time
	}{
		{"atime", &a.Atime},
		{"mtime", &a.Mtime},
		{"ctime", &a.Ctime},
	}

	for _, f := range times {
		v, ok := m[f.key]
		if !ok {
			continue
		}

		var t time.Time
		t, ok = toTime(v)
		if !ok {
			err = fmt.Errorf("attribute %q: unusable value %v (%T)", f.key, v, v)
			return
		}

		*f.dst = t
	}

	return
}

// Decode a readdir payload: a []string, or a []interface{} whose elements
// are all strings. Every name must be non-empty and free of '/', since the
// kernel rejects the whole listing otherwise.
func DecodeNames(payload interface{}) (names []string, err error) {
	switch typed := payload.(type) {
	case []string:
		names = append(names, typed...)

	case []interface{}:
		for i, v := range typed {
			s, ok := v.(string)
			if !ok {
				err = fmt.Errorf("entry %d: unexpected type %T", i, v)
				return
			}

			names = append(names, s)
		}

	default:
		err = fmt.Errorf("unexpected entry list type %T", payload)
		return
	}

	for i, name := range names {
		if err = checkName(name); err != nil {
			err = fmt.Errorf("entry %d: %v", i, err)
			names = nil
			return
		}
	}

	return
}

func checkName(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")

	case strings.ContainsRune(name, '/'):
		return fmt.Errorf("name %q contains '/'", name)
	}

	return nil
}

// Decode a file handle returned by open or create. Any non-negative integer
// is accepted.
func DecodeHandle(payload interface{}) (fh uint64, err error) {
	var ok bool
	switch payload.(type) {
	case float32, float64:
		// Integral floats only.
		f := reflect.ValueOf(payload).Float()
		ok = f == math.Trunc(f)
		if ok {
			fh, ok = toUint64(payload)
		}

	default:
		fh, ok = toUint64(payload)
	}

	if !ok {
		err = fmt.Errorf("unusable file handle %v (%T)", payload, payload)
	}

	return
}

// Accept any non-negative integer or finite non-negative float.
func toUint64(v interface{}) (n uint64, ok bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return
		}

		n, ok = uint64(i), true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok = rv.Uint(), true

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxUint64 {
			return
		}

		n, ok = uint64(f), true
	}

	return
}

func toTime(v interface{}) (t time.Time, ok bool) {
	if tt, isTime := v.(time.Time); isTime {
		t, ok = tt, true
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		t, ok = time.Unix(rv.Int(), 0), true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return
		}

		t, ok = time.Unix(int64(rv.Uint()), 0), true

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}

		sec, frac := math.Modf(f)
		t, ok = time.Unix(int64(sec), int64(frac*1e9)), true
	}

	return
}

// Fill in the kernel's attribute struct. Zero times are left at zero.
func ConvertAttributes(in Attributes, out *fuse.Attr) {
	out.Mode = in.Mode
	out.Size = in.Size
	out.Nlink = in.Nlink
	out.Uid = in.Uid
	out.Gid = in.Gid
	out.Blocks = (in.Size + 511) / 512

	out.Atime, out.Atimensec = convertTime(in.Atime)
	out.Mtime, out.Mtimensec = convertTime(in.Mtime)
	out.Ctime, out.Ctimensec = convertTime(in.Ctime)
}

// Times before the epoch are reported as the epoch.
func convertTime(t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() || t.Unix() < 0 {
		return
	}

	sec = uint64(t.Unix())
	nsec = uint32(t.Nanosecond())
	return
}

func ConvertStatfs(in Statfs, out *fuse.StatfsOut) {
	out.Bsize = in.BlockSize
	out.Frsize = in.BlockSize
	out.Blocks = in.Blocks
	out.Bfree = in.Bfree
	out.Bavail = in.Bavail
}
