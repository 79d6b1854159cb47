// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuseops

import (
	"golang.org/x/sys/unix"
)

type Filetype int

const (
	NoFiletype Filetype = iota
	RegularFiletype
	DirectoryFiletype
	SymlinkFiletype
)

const (
	NoFiletypeString        = "none"
	RegularFiletypeString   = "file"
	DirectoryFiletypeString = "directory"
	SymlinkFiletypeString   = "symlink"
)

// Classify the file type bits of a mode as returned by getattr.
func FiletypeOf(mode uint32) Filetype {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return RegularFiletype
	case unix.S_IFDIR:
		return DirectoryFiletype
	case unix.S_IFLNK:
		return SymlinkFiletype
	}

	return NoFiletype
}

// The file type bits for this type, or zero for NoFiletype.
func (filetype Filetype) Mode() uint32 {
	switch filetype {
	case RegularFiletype:
		return unix.S_IFREG
	case DirectoryFiletype:
		return unix.S_IFDIR
	case SymlinkFiletype:
		return unix.S_IFLNK
	}

	return 0
}

func (filetype Filetype) String() string {
	switch filetype {
	case RegularFiletype:
		return RegularFiletypeString
	case DirectoryFiletype:
		return DirectoryFiletypeString
	case SymlinkFiletype:
		return SymlinkFiletypeString
	}
	return NoFiletypeString
}
