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

// Package compaction plans and executes the merge of many small immutable
// columnar blocks into fewer, larger segments. Planning produces an immutable
// task list behind a single synchronization barrier; each task then executes
// independently on its assigned worker.
package compaction

import (
	"time"

	"github.com/petrel-io/petrel/internal/storage"
)

// CompactionType selects the planning semantics of one pass.
type CompactionType int8

const (
	TypeUndefined CompactionType = iota
	// TypeMerge folds blocks of several valid segments into new segments.
	TypeMerge
	// TypeUpdateDelta folds the update deltas of exactly one segment back
	// into it, adopting that segment's latest footer as the schema baseline.
	TypeUpdateDelta
)

func (t CompactionType) String() string {
	switch t {
	case TypeMerge:
		return "Merge"
	case TypeUpdateDelta:
		return "UpdateDelta"
	default:
		return "Undefined"
	}
}

// SortScope is the target sort requirement of the merged output.
type SortScope int8

const (
	SortNone SortScope = iota
	SortLocal
	SortGlobal
)

func (s SortScope) String() string {
	switch s {
	case SortLocal:
		return "LocalSort"
	case SortGlobal:
		return "GlobalSort"
	default:
		return "NoSort"
	}
}

// NoInterval marks tasks planned outside range-column mode.
const NoInterval = -1

// CompactionTask is one unit of parallel merge work. Tasks are created during
// planning, immutable afterwards, and consumed exactly once by a merge
// executor.
type CompactionTask struct {
	ID     string
	PlanID string
	Type   CompactionType

	Blocks []*storage.Block
	// PartitionID is set for partitioned tables.
	PartitionID string
	// Filter bounds this task's slice of the range column's value domain;
	// nil outside range mode and for single-range plans.
	Filter *RangeFilter
	// Interval is the range interval ordinal, NoInterval when absent.
	Interval int

	SortScope      SortScope
	SourceSegments []string
	TargetSchema   *MergeTargetSchema
	// Baseline carries the update-delta schema baseline from the catalog.
	Baseline *storage.Footer
}

// Plan is the immutable output of one planning pass.
type Plan struct {
	ID           string
	Type         CompactionType
	Tasks        []*CompactionTask
	TargetSchema *MergeTargetSchema
	Boundaries   *RangeBoundarySet
	Elapsed      time.Duration
}
