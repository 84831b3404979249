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

// SegmentState is the validity status of a segment.
type SegmentState int8

const (
	SegmentSuccess SegmentState = iota
	SegmentPartialSuccess
	SegmentCompacted
	SegmentMarkedForDelete
)

func (s SegmentState) String() string {
	switch s {
	case SegmentSuccess:
		return "Success"
	case SegmentPartialSuccess:
		return "PartialSuccess"
	case SegmentCompacted:
		return "Compacted"
	case SegmentMarkedForDelete:
		return "MarkedForDelete"
	default:
		return "Unknown"
	}
}

// Segment is a named, versioned collection of blocks produced by one load or
// compaction.
type Segment struct {
	ID          string
	State       SegmentState
	Schema      []ColumnSchema
	Cardinality map[string]int64
	TotalBytes  int64
	// TaskCount records how many tasks produced this segment originally; it
	// keeps range granularity comparable across compaction generations.
	TaskCount int
}

// IsValid reports whether the segment may contribute blocks to compaction.
func (s *Segment) IsValid() bool {
	return s.State == SegmentSuccess || s.State == SegmentPartialSuccess
}
