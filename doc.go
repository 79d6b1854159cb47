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

// Package fuse3 exposes a handler as a FUSE file system.
//
// The kernel issues blocking operations on many goroutines at once. The
// handler, by contrast, is only ever called from a single goroutine, and may
// finish each operation whenever it likes by calling the completion function
// it was handed. This package connects the two: every operation is queued for
// the handler goroutine, the kernel's goroutine waits for the completion, and
// the result is copied back exactly once.
//
// The primary elements of interest are:
//
//  *  The handler, an arbitrary value with one exported method per operation
//     kind (see the interfaces in package fuseops), or an Ops map.
//
//  *  Session, which mounts a handler on a directory and unmounts it again.
//
//  *  MountConfig, which controls caching, logging and metrics.
//
// Handlers never need to be safe for concurrent use.
package fuse3
