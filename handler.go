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
	"reflect"

	"github.com/juergengeck/one.fuse3/fuseops"
)

// A handler built from functions rather than methods. Keys are operation
// names as returned by fuseops.Kind.String, e.g. "getattr"; values are
// functions taking the same arguments as the corresponding method would.
//
// A plain map[string]interface{} is treated the same way.
type Ops map[string]interface{}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Find the function that serves kind k on handler h. ok is false if h has no
// such function, in which case the operation gets a default answer.
func lookupHandler(h interface{}, k fuseops.Kind) (fn reflect.Value, ok bool) {
	switch typed := h.(type) {
	case nil:
		return

	case Ops:
		return lookupOp(typed, k)

	case map[string]interface{}:
		return lookupOp(typed, k)
	}

	fn = reflect.ValueOf(h).MethodByName(k.MethodName())
	ok = fn.IsValid()
	return
}

// Reject map handlers with keys that name no operation, which would
// otherwise be silently ignored.
func checkHandler(h interface{}) error {
	var m map[string]interface{}
	switch typed := h.(type) {
	case Ops:
		m = typed
	case map[string]interface{}:
		m = typed
	default:
		return nil
	}

	for key := range m {
		if _, err := fuseops.ParseKind(key); err != nil {
			return err
		}
	}

	return nil
}

// The kinds that h serves itself, in declaration order.
func servedKinds(h interface{}) (kinds []fuseops.Kind) {
	for _, k := range fuseops.AllKinds() {
		if _, ok := lookupHandler(h, k); ok {
			kinds = append(kinds, k)
		}
	}

	return
}

func lookupOp(m map[string]interface{}, k fuseops.Kind) (fn reflect.Value, ok bool) {
	v := m[k.String()]
	if v == nil {
		return
	}

	fn = reflect.ValueOf(v)
	ok = fn.Kind() == reflect.Func && !fn.IsNil()
	return
}

// Prepare the argument list for a call to fn. Fail if fn can't accept the
// arguments, so that the call is never attempted.
func bindArgs(
	fn reflect.Value,
	args []interface{},
	complete fuseops.Completion) (in []reflect.Value, err error) {
	t := fn.Type()
	args = append(args, complete)

	if t.IsVariadic() || t.NumIn() != len(args) {
		err = fmt.Errorf("handler takes %d arguments, want %d", t.NumIn(), len(args))
		return
	}

	for i, a := range args {
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(t.In(i)) {
			err = fmt.Errorf(
				"argument %d: %v is not assignable to %v",
				i,
				v.Type(),
				t.In(i))
			return
		}

		in = append(in, v)
	}

	return
}

// Return the first non-nil error among the results of a handler call.
func returnedError(out []reflect.Value) error {
	for _, v := range out {
		if v.Kind() != reflect.Interface || !v.Type().Implements(errorType) {
			continue
		}

		if !v.IsNil() {
			return v.Interface().(error)
		}
	}

	return nil
}
