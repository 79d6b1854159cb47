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

package fusetesting

import (
	"context"
	"sort"
	"syscall"

	"github.com/juergengeck/one.fuse3"
)

// List the directory at path through the driver, returning the entry names
// other than "." and "..", sorted. A failure is returned as a syscall.Errno.
func ReadDirSorted(
	ctx context.Context,
	d *fuse3.Driver,
	path string) (names []string, err error) {
	all, status := d.Readdir(ctx, path)
	if status < 0 {
		err = errnoError(status)
		return
	}

	for _, name := range all {
		if name == "." || name == ".." {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)
	return
}

// Read the whole file at path through the driver, using reads of at most
// chunk bytes.
func ReadAll(
	ctx context.Context,
	d *fuse3.Driver,
	path string,
	fh uint64,
	chunk int) (contents []byte, err error) {
	buf := make([]byte, chunk)
	for {
		n := d.Read(ctx, path, fh, buf, int64(len(contents)))
		if n < 0 {
			err = errnoError(n)
			return
		}

		if n == 0 {
			return
		}

		contents = append(contents, buf[:n]...)
	}
}

// Convert a negative status into the error it stands for.
func errnoError(status int) error {
	return syscall.Errno(-status)
}
