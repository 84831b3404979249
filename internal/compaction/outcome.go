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

// MergeOutcome is the single value propagated back to the caller per task,
// immutable after creation.
type MergeOutcome struct {
	TaskID         string
	Success        bool
	NewSegmentID   string
	SourceSegments []string
}

func newMergeOutcome(task *CompactionTask, success bool, newSegmentID string) *MergeOutcome {
	return &MergeOutcome{
		TaskID:         task.ID,
		Success:        success,
		NewSegmentID:   newSegmentID,
		SourceSegments: append([]string(nil), task.SourceSegments...),
	}
}
