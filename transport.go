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
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Connects a session's Driver to the kernel. The default transport performs
// a real FUSE mount; tests may substitute one that doesn't need a kernel.
type Transport interface {
	// Create the kernel-facing handle for d and attach it to dir. The returned
	// Conn has not started serving yet.
	Bind(dir string, d *Driver, config *MountConfig) (Conn, error)
}

// A bound mount.
type Conn interface {
	// Serve requests until the file system is unmounted, by Unmount or from
	// outside the process. Called once.
	Serve()

	// Block until the kernel has finished mounting. Called while Serve is
	// running.
	WaitMount() error

	// Ask the kernel to unmount. Serve returns once this succeeds.
	Unmount() error
}

type kernelTransport struct{}

func (kernelTransport) Bind(
	dir string,
	d *Driver,
	config *MountConfig) (Conn, error) {
	opts := config.nodeOptions()
	raw := fs.NewNodeFS(&node{driver: d}, opts)

	server, err := fuse.NewServer(raw, dir, &opts.MountOptions)
	if err != nil {
		return nil, fmt.Errorf("NewServer: %v", err)
	}

	return server, nil
}

// Does err say that the mount is still in use?
func isBusy(err error) bool {
	if errors.Is(err, syscall.EBUSY) {
		return true
	}

	// fusermount reports this only as text.
	return strings.Contains(err.Error(), "resource busy")
}

// Unmount c, retrying for up to the given time while the mount is busy.
func unmountWithRetry(c Conn, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout

	return backoff.Retry(
		func() error {
			err := c.Unmount()
			if err != nil && !isBusy(err) {
				return backoff.Permanent(err)
			}

			return err
		},
		b)
}
