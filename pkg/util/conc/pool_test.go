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

package conc

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestPoolSubmit(t *testing.T) {
	pool := NewPool[int](4)
	defer pool.Release()

	futures := make([]*Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * 2, nil
		}))
	}

	sum := 0
	for _, f := range futures {
		v, err := f.Await()
		assert.NoError(t, err)
		sum += v
	}
	assert.Equal(t, 240, sum)
}

func TestPoolError(t *testing.T) {
	pool := NewDefaultPool[struct{}]()
	defer pool.Release()

	boom := errors.New("boom")
	futures := []*Future[struct{}]{
		pool.Submit(func() (struct{}, error) { return struct{}{}, nil }),
		pool.Submit(func() (struct{}, error) { return struct{}{}, boom }),
	}
	assert.ErrorIs(t, AwaitAll(futures), boom)
}

func TestPoolPanicRecovered(t *testing.T) {
	pool := NewPool[int](1)
	defer pool.Release()

	f := pool.Submit(func() (int, error) { panic("kaboom") })
	_, err := f.Await()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
