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
	"log"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/jacobsa/timeutil"
	"github.com/prometheus/client_golang/prometheus"
)

// How the kernel may cache the contents of opened files.
type OpenCachePolicy int

const (
	// Every read and write reaches the handler. This is the default, and is
	// what a handler whose contents change behind the kernel's back needs.
	CacheDirect OpenCachePolicy = iota

	// The kernel may keep cached pages across opens.
	CacheKernel
)

func (p OpenCachePolicy) String() string {
	switch p {
	case CacheDirect:
		return "direct"
	case CacheKernel:
		return "kernel"
	}

	return fmt.Sprintf("OpenCachePolicy(%d)", int(p))
}

func parseOpenCachePolicy(s string) (p OpenCachePolicy, err error) {
	switch s {
	case "", "direct":
		p = CacheDirect
	case "kernel":
		p = CacheKernel
	default:
		err = fmt.Errorf("Unknown open cache policy %q", s)
	}

	return
}

// Optional configuration accepted by Mount.
type MountConfig struct {
	// The name shown as the source of the mount in /proc/mounts, and the file
	// system subtype. Defaults to "fuse3" for both.
	FSName  string
	Subtype string

	// Mount the file system read-only.
	ReadOnly bool

	// Let users other than the mounting one access the file system. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Controls the flags returned for open and create.
	OpenCache OpenCachePolicy

	// How long the kernel may cache names, attributes and failed lookups.
	// Zero means no caching.
	EntryTimeout    time.Duration
	AttrTimeout     time.Duration
	NegativeTimeout time.Duration

	// A logger to use for logging errors, in particular misbehaving handlers.
	// If nil, errors are written to stderr.
	ErrorLogger *log.Logger

	// A logger to use for debug messages: every operation received and the
	// status it is answered with. If nil, the --fuse3.debug flag decides
	// whether these go to stderr.
	DebugLogger *log.Logger

	// If non-nil, operation metrics are registered here. Sessions sharing a
	// registerer share their metrics.
	Registerer prometheus.Registerer

	// The clock used to time handler calls. Defaults to the real clock.
	Clock timeutil.Clock

	// Pin the handler goroutine to a single OS thread for its lifetime.
	LockOSThread bool

	// How long Unmount keeps retrying while the kernel reports the mount
	// busy. Defaults to five seconds.
	UnmountRetryTimeout time.Duration

	// How the session reaches the kernel. Defaults to a real FUSE mount.
	Transport Transport
}

func (c *MountConfig) fsName() string {
	if c.FSName == "" {
		return "fuse3"
	}

	return c.FSName
}

func (c *MountConfig) subtype() string {
	if c.Subtype == "" {
		return "fuse3"
	}

	return c.Subtype
}

func (c *MountConfig) errorLogger() *log.Logger {
	if c.ErrorLogger == nil {
		return defaultErrorLogger()
	}

	return c.ErrorLogger
}

func (c *MountConfig) debugLogger() *log.Logger {
	if c.DebugLogger == nil {
		return getLogger()
	}

	return c.DebugLogger
}

func (c *MountConfig) clock() timeutil.Clock {
	if c.Clock == nil {
		return timeutil.RealClock()
	}

	return c.Clock
}

func (c *MountConfig) unmountRetryTimeout() time.Duration {
	if c.UnmountRetryTimeout <= 0 {
		return 5 * time.Second
	}

	return c.UnmountRetryTimeout
}

func (c *MountConfig) transport() Transport {
	if c.Transport == nil {
		return kernelTransport{}
	}

	return c.Transport
}

// The fuse flags returned from open and create.
func (c *MountConfig) openFlags() uint32 {
	if c.OpenCache == CacheKernel {
		return fuse.FOPEN_KEEP_CACHE
	}

	return fuse.FOPEN_DIRECT_IO
}

func (c *MountConfig) nodeOptions() *fs.Options {
	entryTimeout := c.EntryTimeout
	attrTimeout := c.AttrTimeout
	negativeTimeout := c.NegativeTimeout

	opts := &fs.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     c.fsName(),
			Name:       c.subtype(),
			AllowOther: c.AllowOther,
		},
	}

	if negativeTimeout > 0 {
		opts.NegativeTimeout = &negativeTimeout
	}

	if c.ReadOnly {
		opts.MountOptions.Options = append(opts.MountOptions.Options, "ro")
	}

	return opts
}
