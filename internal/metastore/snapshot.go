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

// Package metastore holds the read-only planning-time views of segment
// bookkeeping: the update/delete status snapshot and the partition registry.
package metastore

import (
	"github.com/petrel-io/petrel/internal/storage"
)

// TimestampRange is a closed interval of write timestamps.
type TimestampRange struct {
	Begin int64
	End   int64
}

func (r TimestampRange) Contains(ts int64) bool {
	return ts >= r.Begin && ts <= r.End
}

// UpdateStatusSnapshot is the per-segment record of timestamp ranges
// invalidated by concurrent update/delete operations. It is built once per
// planning pass and never mutated afterwards, so concurrent readers need no
// locking.
type UpdateStatusSnapshot struct {
	invalid map[string][]TimestampRange
}

func NewUpdateStatusSnapshot(invalid map[string][]TimestampRange) *UpdateStatusSnapshot {
	copied := make(map[string][]TimestampRange, len(invalid))
	for seg, ranges := range invalid {
		copied[seg] = append([]TimestampRange(nil), ranges...)
	}
	return &UpdateStatusSnapshot{invalid: copied}
}

// IsBlockInvalidated reports whether the block's write timestamp falls inside
// an invalid range recorded for its segment.
func (s *UpdateStatusSnapshot) IsBlockInvalidated(block *storage.Block) bool {
	if s == nil {
		return false
	}
	for _, r := range s.invalid[block.SegmentID] {
		if r.Contains(block.UpdateTime) {
			return true
		}
	}
	return false
}
