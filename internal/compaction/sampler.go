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
	"sort"

	"go.uber.org/zap"

	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/log"
	"github.com/petrel-io/petrel/pkg/util/conc"
	"github.com/petrel-io/petrel/pkg/util/paramtable"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

// RangeBoundarySet partitions the range column's value domain into k+1
// half-open intervals. Interval 0 is open on the low end and matches nulls;
// interval k is open on the high end.
type RangeBoundarySet struct {
	Column     storage.ColumnSchema
	Boundaries []storage.Scalar
	// SingleRange marks a domain that cannot be split by value (global
	// min == max); filters are suppressed and load is spread round-robin.
	SingleRange bool
}

// IntervalCount is the number of tasks a range plan will carve out.
func (s *RangeBoundarySet) IntervalCount() int {
	if s.SingleRange || len(s.Boundaries) == 0 {
		return 1
	}
	return len(s.Boundaries) + 1
}

// RangeSampler estimates global order-statistics of the range column by
// sampling a lightweight projection of every eligible block.
type RangeSampler struct {
	scanner storage.ColumnScanner
	catalog *BlockCatalog

	minCores           int
	targetBytesPerTask int64
	sampleRowsPerBlock int64
}

func NewRangeSampler(scanner storage.ColumnScanner, catalog *BlockCatalog) *RangeSampler {
	cfg := &paramtable.Get().CompactionCfg
	return &RangeSampler{
		scanner:            scanner,
		catalog:            catalog,
		minCores:           cfg.MinCompactionCores.GetAsInt(),
		targetBytesPerTask: cfg.TargetBytesPerTask.GetAsInt64(),
		sampleRowsPerBlock: cfg.SampleRowsPerBlock.GetAsInt64(),
	}
}

// TargetParallelism returns max(minCores, min(avgPriorTaskCount,
// sizeBasedEstimate)). The prior-task average keeps range granularity
// comparable across compaction generations; the size estimate derives from
// total valid-segment bytes and the configured target bytes per task.
func (s *RangeSampler) TargetParallelism(segments []*storage.Segment) int {
	var totalBytes int64
	var taskCountSum, counted int
	for _, seg := range segments {
		totalBytes += seg.TotalBytes
		if seg.TaskCount > 0 {
			taskCountSum += seg.TaskCount
			counted++
		}
	}
	sizeEstimate := int(totalBytes / s.targetBytesPerTask)
	if totalBytes%s.targetBytesPerTask != 0 {
		sizeEstimate++
	}
	if sizeEstimate < 1 {
		sizeEstimate = 1
	}
	avgPrior := sizeEstimate
	if counted > 0 {
		avgPrior = taskCountSum / counted
		if avgPrior < 1 {
			avgPrior = 1
		}
	}
	parallelism := sizeEstimate
	if avgPrior < parallelism {
		parallelism = avgPrior
	}
	if parallelism < s.minCores {
		parallelism = s.minCores
	}
	return parallelism
}

// EstimateBoundaries samples the range column projection of all eligible
// blocks, sorts the pooled samples with the column's comparator and cuts
// approximate equi-depth boundaries sized to the target parallelism. Skewed
// domains degrade to the footer min/max fallback.
func (s *RangeSampler) EstimateBoundaries(
	ctx context.Context,
	column storage.ColumnSchema,
	blocks []*storage.Block,
	segments []*storage.Segment,
) (*RangeBoundarySet, error) {
	logger := log.Ctx(ctx).With(zap.String("rangeColumn", column.Name))
	parallelism := s.TargetParallelism(segments)

	samples, err := s.collectSamples(ctx, column, blocks, s.sampleRowsPerBlock)
	if err != nil {
		return nil, err
	}

	cmp := storage.ComparatorFor(column)
	sort.Slice(samples, func(i, j int) bool { return cmp(samples[i], samples[j]) < 0 })

	boundaries := cutBoundaries(samples, parallelism, cmp)
	if len(boundaries) >= 2 {
		logger.Info("range sampling produced boundaries",
			zap.Int("parallelism", parallelism),
			zap.Int("samples", len(samples)),
			zap.Int("boundaries", len(boundaries)))
		return &RangeBoundarySet{Column: column, Boundaries: boundaries}, nil
	}

	// Degenerate output, common when the column is heavily skewed toward
	// null or one value. Collapse to the footer-derived global min/max.
	logger.Info("range sampling degenerate, falling back to global min/max",
		zap.Int("samples", len(samples)), zap.Int("distinctBoundaries", len(boundaries)))
	return s.minMaxFallback(ctx, column, blocks, cmp)
}

// collectSamples scans only the range column's projection from every block,
// in parallel. limit <= 0 scans the full projection.
func (s *RangeSampler) collectSamples(
	ctx context.Context,
	column storage.ColumnSchema,
	blocks []*storage.Block,
	limit int64,
) ([]storage.Scalar, error) {
	pool := conc.NewDefaultPool[[]storage.Scalar]()
	defer pool.Release()

	futures := make([]*conc.Future[[]storage.Scalar], 0, len(blocks))
	for _, block := range blocks {
		block := block
		futures = append(futures, pool.Submit(func() ([]storage.Scalar, error) {
			return s.scanner.ScanColumn(ctx, block, column.Name, limit)
		}))
	}

	// Blocking barrier: every partial sample must land before cutting.
	samples := make([]storage.Scalar, 0)
	for i, future := range futures {
		values, err := future.Await()
		if err != nil {
			return nil, perr.WrapErrPlanningIO(blocks[i].Path, err)
		}
		for _, v := range values {
			if !v.IsNull() {
				samples = append(samples, v)
			}
		}
	}
	return samples, nil
}

// cutBoundaries picks k-1 equi-depth cut points from sorted samples,
// deduplicated.
func cutBoundaries(sorted []storage.Scalar, k int, cmp storage.Comparator) []storage.Scalar {
	if k <= 1 || len(sorted) == 0 {
		return nil
	}
	boundaries := make([]storage.Scalar, 0, k-1)
	for i := 1; i < k; i++ {
		idx := i * len(sorted) / k
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		candidate := sorted[idx]
		if len(boundaries) == 0 || cmp(boundaries[len(boundaries)-1], candidate) != 0 {
			boundaries = append(boundaries, candidate)
		}
	}
	return boundaries
}

// minMaxFallback computes the global min/max of the range column. When the
// column is a sort column the per-block footer min/max is exact; otherwise
// footer stats do not bound the column and a full projection scan is needed.
func (s *RangeSampler) minMaxFallback(
	ctx context.Context,
	column storage.ColumnSchema,
	blocks []*storage.Block,
	cmp storage.Comparator,
) (*RangeBoundarySet, error) {
	var minV, maxV storage.Scalar
	seen := false

	fold := func(v storage.Scalar) {
		if v.IsNull() {
			return
		}
		if !seen {
			minV, maxV = v, v
			seen = true
			return
		}
		if cmp(v, minV) < 0 {
			minV = v
		}
		if cmp(v, maxV) > 0 {
			maxV = v
		}
	}

	if column.IsSortColumn {
		for _, block := range blocks {
			footer, err := s.catalog.Footer(ctx, block)
			if err != nil {
				return nil, err
			}
			if stat, ok := footer.ColumnStats[column.Name]; ok {
				fold(stat.Min)
				fold(stat.Max)
			}
		}
	} else {
		values, err := s.collectSamples(ctx, column, blocks, 0)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			fold(v)
		}
	}

	set := &RangeBoundarySet{Column: column}
	if !seen || cmp(minV, maxV) == 0 {
		set.SingleRange = true
		if seen {
			set.Boundaries = []storage.Scalar{minV}
		}
		return set, nil
	}
	set.Boundaries = []storage.Scalar{minV, maxV}
	return set, nil
}
