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
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/log"
	"github.com/petrel-io/petrel/pkg/metrics"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

// ExecState is one state of the per-task merge lifecycle.
type ExecState int32

const (
	StateInit ExecState = iota
	StateBlocksSorted
	StateFooterRead
	StateExecutorOpened
	StateIteratorsOpened
	StateStrategySelected
	StateMerging
	StateCompleted
	StateFailed
	StateClosed
)

func (s ExecState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateBlocksSorted:
		return "BlocksSorted"
	case StateFooterRead:
		return "FooterRead"
	case StateExecutorOpened:
		return "ExecutorOpened"
	case StateIteratorsOpened:
		return "IteratorsOpened"
	case StateStrategySelected:
		return "StrategySelected"
	case StateMerging:
		return "Merging"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// MergeExecutor drives one task's merge to a terminal state. Whatever state a
// run fails in, teardown happens exactly once through a single cleanup
// routine, also triggered by cancellation of the execution context or by an
// explicit Close from the host.
type MergeExecutor struct {
	task    *CompactionTask
	footers storage.FooterReader
	factory QueryExecutorFactory

	rowMerger   MergeStrategy
	spillMerger MergeStrategy
	// newTempStore is swapped by tests; defaults to NewTaskTempStore.
	newTempStore func(taskID string) (TempStore, error)

	state atomic.Int32

	// mu guards the closed flag and the resource fields below. Resources are
	// only stored while open; once teardown ran, a late acquisition is
	// released by the acquiring goroutine itself, so cancellation can never
	// strand an open executor or temp directory.
	mu     sync.Mutex
	closed bool
	groups *storage.IteratorGroups
	qe     QueryExecutor
	temp   TempStore

	// restructured records whether any assigned block's schema differs from
	// the merge target, forcing row reconstruction to handle missing or
	// extra columns.
	restructured bool

	durations map[string]time.Duration
}

func NewMergeExecutor(
	task *CompactionTask,
	footers storage.FooterReader,
	factory QueryExecutorFactory,
	rowMerger, spillMerger MergeStrategy,
) *MergeExecutor {
	return &MergeExecutor{
		task:         task,
		footers:      footers,
		factory:      factory,
		rowMerger:    rowMerger,
		spillMerger:  spillMerger,
		newTempStore: NewTaskTempStore,
		durations:    make(map[string]time.Duration),
	}
}

// State returns the executor's current lifecycle state.
func (e *MergeExecutor) State() ExecState {
	return ExecState(e.state.Load())
}

// IsClosed reports whether the cleanup routine has run.
func (e *MergeExecutor) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Restructured reports whether a restructured block was detected; valid after
// the FooterRead state.
func (e *MergeExecutor) Restructured() bool {
	return e.restructured
}

// Execute runs the task to completion. On failure the error is returned
// after cleanup, never swallowed; the returned outcome is always non-nil and
// records the task's terminal result.
func (e *MergeExecutor) Execute(ctx context.Context) (*MergeOutcome, error) {
	ctx, span := otel.Tracer("compaction").Start(ctx, "MergeExecutor.Execute")
	defer span.End()
	logger := log.Ctx(ctx).With(
		zap.String("taskID", e.task.ID), zap.String("planID", e.task.PlanID))
	start := time.Now()

	// Cancellation releases tracked resources immediately; the deferred close
	// is the backstop that makes Closed the terminal state of every run.
	stop := context.AfterFunc(ctx, func() { e.close(logger) })
	defer stop()
	defer e.close(logger)

	newSegmentID, err := e.run(ctx, logger)
	if err != nil {
		e.state.Store(int32(StateFailed))
		metrics.CompactionTaskTotal.WithLabelValues(terminalLabel(err)).Inc()
		logger.Warn("compaction task failed", zap.Error(err))
		return newMergeOutcome(e.task, false, ""), perr.WrapErrTaskFailed(e.task.ID, err)
	}

	e.state.Store(int32(StateCompleted))
	metrics.CompactionTaskTotal.WithLabelValues(metrics.CompactionCompletedLabel).Inc()
	logger.Info("compaction task completed",
		zap.String("newSegmentID", newSegmentID),
		zap.Bool("restructured", e.restructured),
		zap.Duration("elapsed", time.Since(start)),
		zap.Any("stateDurations", e.durations))
	return newMergeOutcome(e.task, true, newSegmentID), nil
}

func (e *MergeExecutor) run(ctx context.Context, logger *zap.Logger) (string, error) {
	var blocks []*storage.Block
	if err := e.step(ctx, StateInit, func() error {
		if e.task.Type == TypeUndefined {
			return perr.WrapErrIllegalPlan("compaction type undefined")
		}
		if len(e.task.Blocks) == 0 {
			return perr.WrapErrIllegalPlan("task holds no blocks")
		}
		if e.task.Type == TypeUpdateDelta && e.task.Baseline == nil {
			return perr.WrapErrIllegalPlan("update-delta task without schema baseline")
		}
		return nil
	}); err != nil {
		return "", err
	}

	if err := e.step(ctx, StateBlocksSorted, func() error {
		// Most-recently-updated blocks last: they win schema and cardinality
		// precedence downstream.
		blocks = append([]*storage.Block(nil), e.task.Blocks...)
		storage.SortBlocksByUpdateTime(blocks)
		return nil
	}); err != nil {
		return "", err
	}

	if err := e.step(ctx, StateFooterRead, func() error {
		footers := make([]*storage.Footer, 0, len(blocks))
		for _, block := range blocks {
			footer, err := e.footers.ReadFooter(ctx, block)
			if err != nil {
				return err
			}
			footers = append(footers, footer)
		}
		e.restructured = restructuredBlockExists(e.task.TargetSchema, footers)
		return nil
	}); err != nil {
		return "", err
	}

	var qe QueryExecutor
	if err := e.step(ctx, StateExecutorOpened, func() error {
		var filter storage.Predicate
		if e.task.Filter != nil {
			filter = e.task.Filter
		}
		opened, err := e.factory.Open(ctx, blocks, filter)
		if err != nil {
			return err
		}
		if !e.track(func() { e.qe = opened }) {
			releaseLate(logger, "query executor", opened.Close)
			return perr.Combine(ctx.Err(), perr.ErrTaskCanceled)
		}
		qe = opened

		temp, err := e.newTempStore(e.task.ID)
		if err != nil {
			return err
		}
		if !e.track(func() { e.temp = temp }) {
			releaseLate(logger, "temp store", temp.Cleanup)
			return perr.Combine(ctx.Err(), perr.ErrTaskCanceled)
		}
		return nil
	}); err != nil {
		return "", err
	}

	var groups *storage.IteratorGroups
	if err := e.step(ctx, StateIteratorsOpened, func() error {
		opened, err := qe.OpenIterators(ctx)
		if err != nil {
			return err
		}
		if !e.track(func() { e.groups = opened }) {
			releaseLate(logger, "iterator groups", opened.Close)
			return perr.Combine(ctx.Err(), perr.ErrTaskCanceled)
		}
		groups = opened
		return nil
	}); err != nil {
		return "", err
	}

	var strategy MergeStrategy
	if err := e.step(ctx, StateStrategySelected, func() error {
		strategy = e.selectStrategy(groups)
		logger.Info("merge strategy selected",
			zap.String("strategy", strategy.Name()),
			zap.Int("sortedIterators", len(groups.Sorted)),
			zap.Int("unsortedIterators", len(groups.Unsorted)))
		return nil
	}); err != nil {
		return "", err
	}

	var newSegmentID string
	if err := e.step(ctx, StateMerging, func() error {
		mergeStart := time.Now()
		segID, err := strategy.Execute(ctx, groups, e.task.TargetSchema)
		metrics.CompactionMergeLatency.WithLabelValues(strategy.Name()).
			Observe(float64(time.Since(mergeStart).Milliseconds()))
		if err != nil {
			return err
		}
		newSegmentID = segID
		return nil
	}); err != nil {
		return "", err
	}

	return newSegmentID, nil
}

// selectStrategy picks the plain concatenating merger when the target needs
// no sort or when one iterator group is empty, since the surviving group is
// already ordered appropriately; everything else pays for the external
// sort-merge.
func (e *MergeExecutor) selectStrategy(groups *storage.IteratorGroups) MergeStrategy {
	if e.task.SortScope == SortNone || len(groups.Sorted) == 0 || len(groups.Unsorted) == 0 {
		return e.rowMerger
	}
	return e.spillMerger
}

// step enters a state and runs its work, honoring cancellation between
// states.
func (e *MergeExecutor) step(ctx context.Context, state ExecState, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return perr.Combine(err, perr.ErrTaskCanceled)
	}
	e.state.Store(int32(state))
	start := time.Now()
	err := fn()
	e.durations[state.String()] = time.Since(start)
	return err
}

// track stores an acquired resource for teardown. It returns false when
// teardown already ran, in which case the caller must release the resource
// itself.
func (e *MergeExecutor) track(assign func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	assign()
	return true
}

func releaseLate(logger *zap.Logger, what string, release func() error) {
	if err := release(); err != nil {
		logger.Warn("late resource release error",
			zap.String("resource", what), zap.Error(err))
	}
}

// Close releases the task's resources; safe to call at any time and any
// number of times. Hosts use it to cancel a running task.
func (e *MergeExecutor) Close() {
	e.close(log.With(zap.String("taskID", e.task.ID)))
}

// close is the single cleanup routine behind every terminal transition. It
// releases the block-iterator groups, then the query-executor resources, then
// the task-local temporary storage. Cleanup failures are logged, never
// escalated: they must not mask the task's recorded outcome. Regardless of
// which caller gets to release, the executor always ends in Closed.
func (e *MergeExecutor) close(logger *zap.Logger) {
	defer e.state.Store(int32(StateClosed))

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	groups, qe, temp := e.groups, e.qe, e.temp
	e.groups, e.qe, e.temp = nil, nil, nil
	e.mu.Unlock()

	var err error
	if groups != nil {
		err = multierr.Append(err, groups.Close())
	}
	if qe != nil {
		err = multierr.Append(err, qe.Close())
	}
	if temp != nil {
		err = multierr.Append(err, temp.Cleanup())
	}
	if err != nil {
		logger.Warn("compaction task cleanup error", zap.Error(err))
	}
}

func terminalLabel(err error) string {
	if errors.Is(err, perr.ErrTaskCanceled) || errors.Is(err, context.Canceled) {
		return metrics.CompactionCanceledLabel
	}
	return metrics.CompactionFailedLabel
}
