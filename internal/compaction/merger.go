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

package compaction

import (
	"context"
	"os"

	"github.com/petrel-io/petrel/internal/storage"
)

// Merge strategy names used as metric labels and in logs.
const (
	RowResultMergerName   = "RowResultMerger"
	SortedSpillMergerName = "SortedSpillMerger"
)

// MergeStrategy is one of the two external row processors that physically
// write the output segment: the plain concatenate-and-write RowResultMerger,
// or the external sort-merge SortedSpillMerger.
type MergeStrategy interface {
	Name() string
	// Execute drives the merge to completion and returns the new segment id.
	Execute(ctx context.Context, groups *storage.IteratorGroups, target *MergeTargetSchema) (string, error)
}

// QueryExecutor is the per-task handle on the query engine that turns blocks
// plus an optional filter into row iterators. Close releases the engine-side
// resources after the iterators themselves are closed.
type QueryExecutor interface {
	OpenIterators(ctx context.Context) (*storage.IteratorGroups, error)
	Close() error
}

// QueryExecutorFactory opens a query executor over a task's blocks, applying
// the task's range filter when present.
type QueryExecutorFactory interface {
	Open(ctx context.Context, blocks []*storage.Block, filter storage.Predicate) (QueryExecutor, error)
}

// TempStore is the task-local temporary storage used by spill merges.
// Cleanup is idempotent.
type TempStore interface {
	Path() string
	Cleanup() error
}

type localTempStore struct {
	dir string
}

// NewTaskTempStore creates the scratch directory of one task.
func NewTaskTempStore(taskID string) (TempStore, error) {
	dir, err := os.MkdirTemp("", "petrel-compact-"+taskID+"-")
	if err != nil {
		return nil, err
	}
	return &localTempStore{dir: dir}, nil
}

func (s *localTempStore) Path() string { return s.dir }

func (s *localTempStore) Cleanup() error {
	// RemoveAll on an already-removed dir returns nil, keeping this safe to
	// invoke twice.
	return os.RemoveAll(s.dir)
}
