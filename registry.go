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
	"path/filepath"
	"sync"
)

// The sessions of this process, by mount directory.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session // GUARDED_BY(mu)
}

var gRegistry = &sessionRegistry{
	sessions: make(map[string]*Session),
}

// The key under which a mount directory is registered.
func canonicalDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}

	return abs
}

// Claim dir for s. Fail if another session holds it.
//
// LOCKS_EXCLUDED(r.mu)
func (r *sessionRegistry) add(dir string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[dir]; ok && existing != s {
		return ErrAlreadyMounted
	}

	r.sessions[dir] = s
	return nil
}

// Release dir, if s holds it.
//
// LOCKS_EXCLUDED(r.mu)
func (r *sessionRegistry) remove(dir string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[dir] == s {
		delete(r.sessions, dir)
	}
}

// LOCKS_EXCLUDED(r.mu)
func (r *sessionRegistry) lookup(dir string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[dir]
}

// Is some session of this process mounted on dir?
func IsMounted(dir string) bool {
	s := gRegistry.lookup(canonicalDir(dir))
	return s != nil && s.IsMounted()
}
