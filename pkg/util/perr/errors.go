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

// Package perr defines the coded leaf errors shared across petrel components.
// Callers match with errors.Is against the sentinels below and attach detail
// through the Wrap helpers.
package perr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const retryableFlag = 1 << 16

// Leaf errors. Check whether an existing one fits before adding a new code.
var (
	// Planning related.
	ErrPlanningIO       = newPetrelError("planning IO failed", 100, false)
	ErrPartitionDropped = newPetrelError("partition dropped", 101, false)
	ErrIllegalPlan      = newPetrelError("compaction plan illegal", 102, false)
	ErrSegmentLack      = newPetrelError("segment lacks", 103, false)

	// Execution related.
	ErrTaskFailed   = newPetrelError("compaction task failed", 200, false)
	ErrTaskCanceled = newPetrelError("compaction task canceled", 201, true)

	// Cluster related.
	ErrNodeLack = newPetrelError("no active node available", 300, true)

	// Storage related.
	ErrBlockLegacyFormat = newPetrelError("block storage format unsupported", 400, false)
	ErrFooterCorrupted   = newPetrelError("block footer corrupted", 401, false)
)

type petrelError struct {
	msg     string
	errCode int32
}

func newPetrelError(msg string, code int32, retryable bool) petrelError {
	if retryable {
		code |= retryableFlag
	}
	return petrelError{
		msg:     msg,
		errCode: code,
	}
}

func (e petrelError) code() int32 {
	return e.errCode
}

func (e petrelError) Error() string {
	return e.msg
}

func (e petrelError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(petrelError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

// IsRetryable reports whether the error carries the retryable code flag. The
// innermost coded error in the chain decides.
func IsRetryable(err error) bool {
	var pe petrelError
	if errors.As(err, &pe) {
		return pe.code()&retryableFlag != 0
	}
	return false
}

// Combine folds non-nil errors into one value that satisfies errors.Is for
// every member.
func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}
