// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package conc wraps a goroutine pool behind typed futures for the IO-bound
// fan-out work of planning (footer reads, projection scans).
package conc

import (
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// Pool is a bounded goroutine pool producing futures of T.
type Pool[T any] struct {
	inner *ants.Pool
}

// NewPool returns a pool with the given worker cap.
func NewPool[T any](cap int) *Pool[T] {
	if cap <= 0 {
		cap = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(cap)
	if err != nil {
		panic(err)
	}
	return &Pool[T]{inner: pool}
}

// NewDefaultPool returns a pool capped at the logical CPU count.
func NewDefaultPool[T any]() *Pool[T] {
	return NewPool[T](runtime.GOMAXPROCS(0))
}

// Submit schedules method on the pool. It blocks while all workers are busy.
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		defer func() {
			if x := recover(); x != nil {
				future.err = fmt.Errorf("panicked with error: %v", x)
			}
		}()
		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}
	return future
}

// Release stops the pool workers.
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

// Future is the handle of one submitted task.
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan struct{})}
}

// Await blocks until the task finishes and returns its result.
func (future *Future[T]) Await() (T, error) {
	<-future.ch
	return future.value, future.err
}

// AwaitAll waits for all futures, returning the first error observed.
func AwaitAll[T any](futures []*Future[T]) error {
	var first error
	for _, f := range futures {
		if _, err := f.Await(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
