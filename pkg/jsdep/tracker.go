// Copyright 2025 Chainguard, Inc.
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

package jsdep

import "sync"

// Tracker records the paths this system creates so the host orchestrator
// knows what to clean up on a later run.
type Tracker interface {
	Created(path string)
	Paths() []string
}

// PathTracker is the default in-memory Tracker. Safe for concurrent use,
// since installs may record paths in parallel.
type PathTracker struct {
	mu    sync.Mutex
	paths []string
}

func (t *PathTracker) Created(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

func (t *PathTracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}
