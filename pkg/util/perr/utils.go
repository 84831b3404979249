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

package perr

import (
	"github.com/cockroachdb/errors"
)

// WrapErrPlanningIO marks a footer or catalog read failure. Planning IO errors
// are fatal to the whole compaction pass.
func WrapErrPlanningIO(path string, err error) error {
	return errors.Wrapf(errors.Join(err, ErrPlanningIO), "planning IO failed on %s", path)
}

// WrapErrPartitionDropped reports a compaction attempt against a partition no
// longer present in the table's partition set.
func WrapErrPartitionDropped(partition string) error {
	return errors.Wrapf(ErrPartitionDropped, "partition=%s", partition)
}

// WrapErrIllegalPlan reports a plan that cannot be executed as constructed.
func WrapErrIllegalPlan(reason string) error {
	return errors.Wrap(ErrIllegalPlan, reason)
}

// WrapErrSegmentLack reports an unexpected source segment count.
func WrapErrSegmentLack(expected, actual int) error {
	return errors.Wrapf(ErrSegmentLack, "expected=%d actual=%d", expected, actual)
}

// WrapErrTaskFailed is the single user-visible execution failure surface:
// "compaction failed for task <id>" with the underlying cause attached.
func WrapErrTaskFailed(taskID string, err error) error {
	return errors.Wrapf(errors.Join(err, ErrTaskFailed), "compaction failed for task %s", taskID)
}

// WrapErrNodeLack reports that assignment found no active node.
func WrapErrNodeLack(msg string) error {
	return errors.Wrap(ErrNodeLack, msg)
}

// WrapErrBlockLegacyFormat reports a block in an unsupported storage format.
func WrapErrBlockLegacyFormat(path, version string) error {
	return errors.Wrapf(ErrBlockLegacyFormat, "block=%s version=%s", path, version)
}

// WrapErrFooterCorrupted reports a footer that decoded but fails validation.
func WrapErrFooterCorrupted(path string) error {
	return errors.Wrapf(ErrFooterCorrupted, "block=%s", path)
}
