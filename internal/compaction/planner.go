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
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/petrel-io/petrel/internal/metastore"
	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/log"
	"github.com/petrel-io/petrel/pkg/metrics"
	"github.com/petrel-io/petrel/pkg/util/paramtable"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

// PlanRequest describes one compaction to plan.
type PlanRequest struct {
	Segments     []*storage.Segment
	Type         CompactionType
	MasterSchema []storage.ColumnSchema
	SortScope    SortScope

	// RangeColumn enables range-mode planning; nil plans by producing task.
	RangeColumn *storage.ColumnSchema

	// Partitioned tables plan by partition-derived task ids and skip range
	// planning.
	Partitioned bool
	// TargetPartitions restricts a partitioned compaction; every entry must
	// exist in Registry or planning fails before any task executes.
	TargetPartitions []string
	Registry         *metastore.PartitionRegistry

	Snapshot *metastore.UpdateStatusSnapshot
}

// TaskPlanner converts the eligible block set, plus optional range
// boundaries, into the immutable compaction task list and the merge target
// schema. Planning is the single synchronization barrier of a pass: all tasks
// observe one consistent plan and nothing mutates it afterwards.
type TaskPlanner struct {
	catalog *BlockCatalog
	sampler *RangeSampler

	defaultParallelism int
	defaultCardinality int64
}

func NewTaskPlanner(catalog *BlockCatalog, sampler *RangeSampler) *TaskPlanner {
	cfg := &paramtable.Get().CompactionCfg
	return &TaskPlanner{
		catalog:            catalog,
		sampler:            sampler,
		defaultParallelism: cfg.DefaultParallelism.GetAsInt(),
		defaultCardinality: cfg.TableDefaultCardinality.GetAsInt64(),
	}
}

// Plan produces the full task list for a request. Planning errors are fatal
// to the whole compaction; no partial plan is ever returned.
func (p *TaskPlanner) Plan(ctx context.Context, req *PlanRequest) (*Plan, error) {
	ctx, span := otel.Tracer("compaction").Start(ctx, "TaskPlanner.Plan")
	defer span.End()
	start := time.Now()

	if req.Type == TypeUndefined {
		return nil, perr.WrapErrIllegalPlan("compaction type undefined")
	}
	if len(req.Segments) == 0 {
		return nil, perr.WrapErrIllegalPlan("no input segments")
	}
	if err := p.checkTargetPartitions(req); err != nil {
		return nil, err
	}

	planID := uuid.NewString()
	logger := log.Ctx(ctx).With(
		zap.String("planID", planID), zap.String("type", req.Type.String()))

	catalog, err := p.catalog.ListEligibleBlocks(ctx, req.Segments, req.Snapshot, req.Type)
	if err != nil {
		return nil, err
	}
	if len(catalog.Blocks) == 0 {
		return nil, perr.WrapErrIllegalPlan("no eligible blocks")
	}

	// Reconciliation folds every block touched during task construction, not
	// only the first per segment.
	target, err := p.reconcileSchema(ctx, req, catalog)
	if err != nil {
		return nil, err
	}

	plan := &Plan{ID: planID, Type: req.Type, TargetSchema: target}
	switch {
	case req.RangeColumn != nil && !req.Partitioned:
		plan.Boundaries, plan.Tasks, err = p.planRangeTasks(ctx, req, catalog.Blocks)
	default:
		plan.Tasks, err = p.planGroupedTasks(req, catalog.Blocks)
	}
	if err != nil {
		return nil, err
	}

	for _, task := range plan.Tasks {
		task.PlanID = planID
		task.Type = req.Type
		task.SortScope = req.SortScope
		task.TargetSchema = target
		task.Baseline = catalog.Baseline
		task.SourceSegments = lo.Uniq(lo.Map(task.Blocks,
			func(b *storage.Block, _ int) string { return b.SegmentID }))
		sort.Strings(task.SourceSegments)
	}

	plan.Elapsed = time.Since(start)
	metrics.CompactionPlanLatency.Observe(float64(plan.Elapsed.Milliseconds()))
	metrics.CompactionPlannedTasks.Observe(float64(len(plan.Tasks)))
	logger.Info("compaction plan built",
		zap.Int("tasks", len(plan.Tasks)),
		zap.Int("blocks", len(catalog.Blocks)),
		zap.Duration("elapsed", plan.Elapsed))
	return plan, nil
}

// checkTargetPartitions fails fast with a non-retryable error naming the
// offending partition when compaction targets a dropped partition.
func (p *TaskPlanner) checkTargetPartitions(req *PlanRequest) error {
	if !req.Partitioned {
		return nil
	}
	if req.Registry == nil {
		return perr.WrapErrIllegalPlan("partitioned compaction without partition registry")
	}
	for _, pid := range req.TargetPartitions {
		if !req.Registry.Contains(pid) {
			return perr.WrapErrPartitionDropped(pid)
		}
	}
	return nil
}

func (p *TaskPlanner) reconcileSchema(
	ctx context.Context, req *PlanRequest, catalog *CatalogResult,
) (*MergeTargetSchema, error) {
	master := req.MasterSchema
	if req.Type == TypeUpdateDelta && catalog.Baseline != nil {
		// Update-delta adopts the source segment's latest footer schema as
		// the baseline.
		master = catalog.Baseline.Schema
	}
	reconciler := newSchemaReconciler(master, p.defaultCardinality)
	for _, block := range catalog.Blocks {
		footer, err := p.catalog.Footer(ctx, block)
		if err != nil {
			return nil, err
		}
		reconciler.fold(footer)
	}
	return reconciler.build(), nil
}

// planGroupedTasks keys each block by its original producing task id, or by
// the partition-derived id for partitioned tables. Every eligible block lands
// in exactly one task.
func (p *TaskPlanner) planGroupedTasks(req *PlanRequest, blocks []*storage.Block) ([]*CompactionTask, error) {
	groups := make(map[string][]*storage.Block)
	partitionByKey := make(map[string]string)
	for _, block := range blocks {
		key := block.TaskID
		if req.Partitioned {
			taskID, err := req.Registry.TaskIDForBlock(block)
			if err != nil {
				return nil, err
			}
			key = taskID
			partitionByKey[key] = block.PartitionID
		}
		groups[key] = append(groups[key], block)
	}

	keys := lo.Keys(groups)
	sort.Strings(keys)
	tasks := make([]*CompactionTask, 0, len(keys))
	for _, key := range keys {
		tasks = append(tasks, &CompactionTask{
			ID:          key,
			Blocks:      groups[key],
			PartitionID: partitionByKey[key],
			Interval:    NoInterval,
		})
	}
	return tasks, nil
}

// planRangeTasks builds one task per boundary interval, assigning every block
// to every interval: a block's value range may straddle boundaries, so
// pruning is deferred entirely to per-task filter evaluation. Single-range
// domains fall back to round-robin load buckets.
func (p *TaskPlanner) planRangeTasks(
	ctx context.Context, req *PlanRequest, blocks []*storage.Block,
) (*RangeBoundarySet, []*CompactionTask, error) {
	set, err := p.sampler.EstimateBoundaries(ctx, *req.RangeColumn, blocks, req.Segments)
	if err != nil {
		return nil, nil, err
	}

	if set.SingleRange {
		return set, p.planSingleRangeBuckets(blocks), nil
	}

	filters := BuildIntervalFilters(set)
	tasks := make([]*CompactionTask, 0, len(filters))
	for i, filter := range filters {
		tasks = append(tasks, &CompactionTask{
			ID:       fmt.Sprintf("range_%d", i),
			Blocks:   blocks,
			Filter:   filter,
			Interval: i,
		})
	}
	return set, tasks, nil
}

// planSingleRangeBuckets spreads blocks round-robin across buckets of
// ceil(totalBlocks/defaultParallelism) size, purely to balance load: a single
// interval cannot be split by value, so no filter expressions are built.
func (p *TaskPlanner) planSingleRangeBuckets(blocks []*storage.Block) []*CompactionTask {
	bucketSize := (len(blocks) + p.defaultParallelism - 1) / p.defaultParallelism
	if bucketSize < 1 {
		bucketSize = 1
	}
	numBuckets := (len(blocks) + bucketSize - 1) / bucketSize

	tasks := make([]*CompactionTask, numBuckets)
	for i := range tasks {
		tasks[i] = &CompactionTask{
			ID:       fmt.Sprintf("bucket_%d", i),
			Interval: NoInterval,
		}
	}
	for i, block := range blocks {
		t := tasks[i%numBuckets]
		t.Blocks = append(t.Blocks, block)
	}
	return tasks
}
