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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

func TestUpdateStatusSnapshot(t *testing.T) {
	snapshot := NewUpdateStatusSnapshot(map[string][]TimestampRange{
		"seg_1": {{Begin: 100, End: 200}, {Begin: 500, End: 600}},
	})

	assert.True(t, snapshot.IsBlockInvalidated(&storage.Block{SegmentID: "seg_1", UpdateTime: 100}))
	assert.True(t, snapshot.IsBlockInvalidated(&storage.Block{SegmentID: "seg_1", UpdateTime: 200}))
	assert.True(t, snapshot.IsBlockInvalidated(&storage.Block{SegmentID: "seg_1", UpdateTime: 550}))
	assert.False(t, snapshot.IsBlockInvalidated(&storage.Block{SegmentID: "seg_1", UpdateTime: 99}))
	assert.False(t, snapshot.IsBlockInvalidated(&storage.Block{SegmentID: "seg_1", UpdateTime: 300}))
	assert.False(t, snapshot.IsBlockInvalidated(&storage.Block{SegmentID: "seg_2", UpdateTime: 150}))

	var none *UpdateStatusSnapshot
	assert.False(t, none.IsBlockInvalidated(&storage.Block{SegmentID: "seg_1", UpdateTime: 150}))
}

func TestPartitionRegistry(t *testing.T) {
	registry := NewPartitionRegistry([]string{"p1", "p2"})

	assert.True(t, registry.Contains("p1"))
	assert.False(t, registry.Contains("p3"))

	taskID, err := registry.TaskIDFor("p2")
	require.NoError(t, err)
	assert.Equal(t, "part_p2", taskID)

	pid, ok := registry.PartitionForTask("part_p1")
	require.True(t, ok)
	assert.Equal(t, "p1", pid)

	taskID, err = registry.TaskIDForBlock(&storage.Block{PartitionID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "part_p1", taskID)

	_, err = registry.TaskIDForBlock(&storage.Block{PartitionID: "p_gone"})
	assert.ErrorIs(t, err, perr.ErrPartitionDropped)
}
