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
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Statuses for handlers to complete with, corresponding to kernel error
// numbers.
const (
	EPERM     = -int(unix.EPERM)
	ENOENT    = -int(unix.ENOENT)
	EIO       = -int(unix.EIO)
	EACCES    = -int(unix.EACCES)
	EEXIST    = -int(unix.EEXIST)
	ENOTDIR   = -int(unix.ENOTDIR)
	EISDIR    = -int(unix.EISDIR)
	EINVAL    = -int(unix.EINVAL)
	ENOSPC    = -int(unix.ENOSPC)
	EROFS     = -int(unix.EROFS)
	EBUSY     = -int(unix.EBUSY)
	ENOTEMPTY = -int(unix.ENOTEMPTY)
	ENOSYS    = -int(unix.ENOSYS)
	EINTR     = -int(unix.EINTR)
	EBADF     = -int(unix.EBADF)
)

var (
	// Returned by Mount when the session is already mounted, or when another
	// session in this process is mounted on the same directory.
	ErrAlreadyMounted = errors.New("fuse3: already mounted")

	// Returned by Unmount when the session is not mounted.
	ErrNotMounted = errors.New("fuse3: not mounted")
)

// Convert a status to the errno the kernel expects. Non-negative statuses
// are success.
func errnoOf(status int) syscall.Errno {
	if status >= 0 {
		return 0
	}

	return syscall.Errno(-status)
}

// A short description of a status for logs and metric labels, e.g. "ok" or
// "ENOENT".
func describeStatus(status int) string {
	if status >= 0 {
		return "ok"
	}

	if name := unix.ErrnoName(errnoOf(status)); name != "" {
		return name
	}

	return fmt.Sprintf("errno %d", -status)
}

// An error for reqtrace reports, or nil on success.
func statusError(status int) error {
	if status >= 0 {
		return nil
	}

	return errnoOf(status)
}
