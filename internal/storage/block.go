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

package storage

import (
	"sort"
)

// Block is an immutable unit of stored, sorted columnar data. Blocks are
// owned by their segment and read-only to the compaction core.
type Block struct {
	SegmentID     string
	Path          string
	Offset        int64
	Length        int64
	FormatVersion string
	// UpdateTime is the write timestamp of the load or update that produced
	// this block; it drives both invalidation checks and schema precedence.
	UpdateTime int64
	// TaskID is the id of the task that originally produced the block.
	TaskID string
	// PartitionID names the owning partition, empty for unpartitioned tables.
	// It is derived from the block's storage path at load time.
	PartitionID  string
	Locations    []string
	DeleteDeltas []string
}

// ColumnStat is the footer min/max of one column in one block.
type ColumnStat struct {
	Min Scalar
	Max Scalar
}

// Footer is the per-block metadata read from the block file tail.
type Footer struct {
	Schema      []ColumnSchema
	Cardinality map[string]int64
	ColumnStats map[string]ColumnStat
}

// SortBlocksByUpdateTime orders blocks so the most-recently-updated block is
// last; ties break on path so the order is total. "Last after sort" therefore
// equals "latest update".
func SortBlocksByUpdateTime(blocks []*Block) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].UpdateTime != blocks[j].UpdateTime {
			return blocks[i].UpdateTime < blocks[j].UpdateTime
		}
		return blocks[i].Path < blocks[j].Path
	})
}
