//
// See the file COPYRIGHT for copyright information.
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
//

// Package cache holds a single lazily built value that expires after a TTL
// or when its owner says the source data changed.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// InMemory caches the result of a build function. Readers never block each
// other; at most one build runs at a time.
type InMemory[T any] struct {
	current atomic.Pointer[entry[T]]
	epoch   atomic.Uint64
	ttl     time.Duration
	build   func(context.Context) (T, error)
	buildMu sync.Mutex
}

type entry[T any] struct {
	value   T
	builtAt time.Time
	epoch   uint64
	ok      bool
}

// New returns an empty cache. A ttl of zero or less means the value only goes
// stale through Invalidate.
func New[T any](ttl time.Duration, build func(context.Context) (T, error)) *InMemory[T] {
	im := &InMemory[T]{ttl: ttl, build: build}
	im.current.Store(&entry[T]{})
	return im
}

// Get returns the cached value, building it first if there is none or it has
// gone stale.
func (im *InMemory[T]) Get(ctx context.Context) (*T, error) {
	if e := im.current.Load(); im.fresh(e) {
		return &e.value, nil
	}
	im.buildMu.Lock()
	defer im.buildMu.Unlock()
	if e := im.current.Load(); im.fresh(e) {
		return &e.value, nil
	}
	epoch := im.epoch.Load()
	v, err := im.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("[build]: %w", err)
	}
	// a build that raced with Invalidate is handed back but not kept
	if epoch == im.epoch.Load() {
		im.current.Store(&entry[T]{value: v, builtAt: time.Now(), epoch: epoch, ok: true})
	}
	return &v, nil
}

// Invalidate discards the cached value, along with the result of any build
// already in flight.
func (im *InMemory[T]) Invalidate() {
	im.epoch.Add(1)
	im.current.Store(&entry[T]{})
}

func (im *InMemory[T]) fresh(e *entry[T]) bool {
	switch {
	case !e.ok || e.epoch != im.epoch.Load():
		return false
	case im.ttl <= 0:
		return true
	default:
		return time.Since(e.builtAt) < im.ttl
	}
}
