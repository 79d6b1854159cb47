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
	"fmt"
	"strings"
)

// The kind of a file system operation. The set of kinds is closed.
type Kind int

const (
	OpGetattr Kind = iota
	OpReaddir
	OpOpen
	OpRead
	OpWrite
	OpCreate
	OpUnlink
	OpMkdir
	OpRmdir
	OpRename
	OpChmod
	OpChown
	OpTruncate
	OpUtimens
	OpRelease
	OpFsync
	OpFlush
	OpAccess

	// Answered by the driver with fixed values. Never handed to a handler.
	OpStatfs

	numKinds int = iota
)

var kindNames = [numKinds]string{
	OpGetattr:  "getattr",
	OpReaddir:  "readdir",
	OpOpen:     "open",
	OpRead:     "read",
	OpWrite:    "write",
	OpCreate:   "create",
	OpUnlink:   "unlink",
	OpMkdir:    "mkdir",
	OpRmdir:    "rmdir",
	OpRename:   "rename",
	OpChmod:    "chmod",
	OpChown:    "chown",
	OpTruncate: "truncate",
	OpUtimens:  "utimens",
	OpRelease:  "release",
	OpFsync:    "fsync",
	OpFlush:    "flush",
	OpAccess:   "access",
	OpStatfs:   "statfs",
}

// Return every kind, in declaration order.
func AllKinds() (kinds []Kind) {
	for k := 0; k < numKinds; k++ {
		kinds = append(kinds, Kind(k))
	}

	return
}

// Is k one of the declared kinds?
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < numKinds
}

// The lower-case operation name, e.g. "getattr". This is also the key used
// to look the operation up in a map of handler functions.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// The name of the handler method that serves this kind, e.g. "Getattr".
func (k Kind) MethodName() string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// The inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}

	return 0, fmt.Errorf("Unknown operation kind %q", s)
}
