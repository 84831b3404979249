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

package metastore

import (
	"fmt"

	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

// PartitionRegistry is the bidirectional lookup between partitions of a table
// and their synthesized compaction task ids. It is built once during planning
// and never mutated afterwards, so no locking is required.
type PartitionRegistry struct {
	taskByPartition map[string]string
	partitionByTask map[string]string
}

// NewPartitionRegistry builds the registry from the table's current partition
// set. Task ids are stable: they derive only from the partition id, so any
// block can rediscover its task through the partition recorded in its storage
// path.
func NewPartitionRegistry(partitionIDs []string) *PartitionRegistry {
	r := &PartitionRegistry{
		taskByPartition: make(map[string]string, len(partitionIDs)),
		partitionByTask: make(map[string]string, len(partitionIDs)),
	}
	for _, pid := range partitionIDs {
		taskID := fmt.Sprintf("part_%s", pid)
		r.taskByPartition[pid] = taskID
		r.partitionByTask[taskID] = pid
	}
	return r
}

// Contains reports whether the partition is present in the current set.
func (r *PartitionRegistry) Contains(partitionID string) bool {
	_, ok := r.taskByPartition[partitionID]
	return ok
}

// TaskIDForBlock resolves the task id owning a block of a partitioned table.
// A block pointing at a partition outside the current set means the partition
// was dropped while compaction was being requested.
func (r *PartitionRegistry) TaskIDForBlock(block *storage.Block) (string, error) {
	taskID, ok := r.taskByPartition[block.PartitionID]
	if !ok {
		return "", perr.WrapErrPartitionDropped(block.PartitionID)
	}
	return taskID, nil
}

// TaskIDFor resolves the task id of a partition.
func (r *PartitionRegistry) TaskIDFor(partitionID string) (string, error) {
	taskID, ok := r.taskByPartition[partitionID]
	if !ok {
		return "", perr.WrapErrPartitionDropped(partitionID)
	}
	return taskID, nil
}

// PartitionForTask is the reverse lookup.
func (r *PartitionRegistry) PartitionForTask(taskID string) (string, bool) {
	pid, ok := r.partitionByTask[taskID]
	return pid, ok
}
