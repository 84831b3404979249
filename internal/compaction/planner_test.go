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
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/petrel-io/petrel/internal/metastore"
	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/util/paramtable"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

type PlannerSuite struct {
	suite.Suite

	lister  *memLister
	footers *memFooterReader
	scanner *memScanner
	planner *TaskPlanner
}

func (s *PlannerSuite) SetupTest() {
	paramtable.Init()
	s.lister = &memLister{blocks: make(map[string][]*storage.Block), errs: make(map[string]error)}
	s.footers = newMemFooterReader()
	s.scanner = newMemScanner()
	catalog, err := NewBlockCatalog(s.lister, s.footers)
	s.Require().NoError(err)
	s.planner = NewTaskPlanner(catalog, NewRangeSampler(s.scanner, catalog))
}

func (s *PlannerSuite) addBlock(block *storage.Block, footer *storage.Footer) {
	s.lister.blocks[block.SegmentID] = append(s.lister.blocks[block.SegmentID], block)
	s.footers.footers[block.Path] = footer
}

// threeByThree seeds 3 valid segments holding 3 blocks each, spread over the
// original task ids t1, t2, t3.
func (s *PlannerSuite) threeByThree() []*storage.Segment {
	segments := make([]*storage.Segment, 0, 3)
	for i := 1; i <= 3; i++ {
		segID := fmt.Sprintf("seg_%d", i)
		segments = append(segments, &storage.Segment{
			ID: segID, State: storage.SegmentSuccess,
			TotalBytes: 2 << 30, TaskCount: 3,
		})
		for j := 0; j < 3; j++ {
			block := testBlock(segID, j, fmt.Sprintf("t%d", j+1), 100)
			s.addBlock(block, testFooter(testSchema("id", "val"), map[string]int64{"id": 10}))
		}
	}
	return segments
}

func (s *PlannerSuite) TestGroupedTasksPartitionBlocks() {
	segments := s.threeByThree()

	plan, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments:     segments,
		Type:         TypeMerge,
		MasterSchema: testSchema("id", "val"),
	})
	s.Require().NoError(err)
	s.Require().Len(plan.Tasks, 3)
	s.Nil(plan.Boundaries)

	// Every eligible block lands in exactly one task.
	seen := make(map[string]int)
	for _, task := range plan.Tasks {
		s.Equal(NoInterval, task.Interval)
		s.Nil(task.Filter)
		s.Len(task.Blocks, 3)
		s.Equal([]string{"seg_1", "seg_2", "seg_3"}, task.SourceSegments)
		for _, block := range task.Blocks {
			s.Equal(task.ID, block.TaskID)
			seen[block.Path]++
		}
	}
	s.Len(seen, 9)
	for path, n := range seen {
		s.Equalf(1, n, "block %s assigned more than once", path)
	}
}

func (s *PlannerSuite) TestRangeTasksAssignAllBlocksToEveryInterval() {
	segments := s.threeByThree()
	i := 0
	for _, blocks := range s.lister.blocks {
		for _, block := range blocks {
			for v := int64(i*10 + 1); v <= int64(i*10+10); v++ {
				s.scanner.values[block.Path] = append(s.scanner.values[block.Path], storage.Int64Scalar(v))
			}
			i++
		}
	}

	rangeCol := storage.ColumnSchema{Name: "id", Type: storage.ColumnInt64}
	plan, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments:     segments,
		Type:         TypeMerge,
		MasterSchema: testSchema("id", "val"),
		SortScope:    SortGlobal,
		RangeColumn:  &rangeCol,
	})
	s.Require().NoError(err)

	// Target parallelism 3 carves 2 boundaries into 3 interval tasks.
	s.Require().NotNil(plan.Boundaries)
	s.Require().Len(plan.Boundaries.Boundaries, 2)
	s.Require().Len(plan.Tasks, 3)
	for i, task := range plan.Tasks {
		s.Equal(fmt.Sprintf("range_%d", i), task.ID)
		s.Equal(i, task.Interval)
		s.Require().NotNil(task.Filter)
		s.Equal(SortGlobal, task.SortScope)
		// Value pruning is deferred to execution, so every task sees all
		// blocks.
		s.Len(task.Blocks, 9)
	}
}

func (s *PlannerSuite) TestSingleRangeFallsBackToBuckets() {
	segments := s.threeByThree()
	for _, blocks := range s.lister.blocks {
		for _, block := range blocks {
			s.scanner.values[block.Path] = []storage.Scalar{storage.Int64Scalar(7)}
		}
	}

	rangeCol := storage.ColumnSchema{Name: "id", Type: storage.ColumnInt64}
	plan, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments:     segments,
		Type:         TypeMerge,
		MasterSchema: testSchema("id", "val"),
		RangeColumn:  &rangeCol,
	})
	s.Require().NoError(err)

	s.Require().NotNil(plan.Boundaries)
	s.True(plan.Boundaries.SingleRange)

	// 9 blocks in buckets of ceil(9/4)=3, spread round-robin.
	s.Require().Len(plan.Tasks, 3)
	seen := make(map[string]int)
	for _, task := range plan.Tasks {
		s.Nil(task.Filter)
		s.Equal(NoInterval, task.Interval)
		s.Len(task.Blocks, 3)
		for _, block := range task.Blocks {
			seen[block.Path]++
		}
	}
	s.Len(seen, 9)
}

func (s *PlannerSuite) TestPartitionedGrouping() {
	seg := &storage.Segment{ID: "seg_1", State: storage.SegmentSuccess}
	for i, pid := range []string{"p1", "p2", "p1"} {
		block := testBlock("seg_1", i, "", 100)
		block.PartitionID = pid
		s.addBlock(block, testFooter(testSchema("id"), nil))
	}

	plan, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments:         []*storage.Segment{seg},
		Type:             TypeMerge,
		MasterSchema:     testSchema("id"),
		Partitioned:      true,
		TargetPartitions: []string{"p1", "p2"},
		Registry:         metastore.NewPartitionRegistry([]string{"p1", "p2"}),
	})
	s.Require().NoError(err)
	s.Require().Len(plan.Tasks, 2)
	s.Equal("part_p1", plan.Tasks[0].ID)
	s.Equal("p1", plan.Tasks[0].PartitionID)
	s.Len(plan.Tasks[0].Blocks, 2)
	s.Equal("part_p2", plan.Tasks[1].ID)
	s.Len(plan.Tasks[1].Blocks, 1)
}

func (s *PlannerSuite) TestDroppedPartitionFailsBeforePlanning() {
	s.threeByThree()

	_, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments:         []*storage.Segment{{ID: "seg_1", State: storage.SegmentSuccess}},
		Type:             TypeMerge,
		MasterSchema:     testSchema("id"),
		Partitioned:      true,
		TargetPartitions: []string{"p_gone"},
		Registry:         metastore.NewPartitionRegistry([]string{"p1"}),
	})
	s.ErrorIs(err, perr.ErrPartitionDropped)
	// Fail-fast: the block catalog was never consulted.
	s.Empty(s.footers.reads)
}

func (s *PlannerSuite) TestSchemaReconciledAcrossBlocks() {
	seg := &storage.Segment{ID: "seg_1", State: storage.SegmentSuccess}
	old := testBlock("seg_1", 0, "t1", 100)
	evolved := testBlock("seg_1", 1, "t1", 200)
	s.addBlock(old, testFooter(testSchema("id"), map[string]int64{"id": 10}))
	s.addBlock(evolved, testFooter(testSchema("id", "added"), map[string]int64{"id": 42, "added": 5}))

	plan, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments:     []*storage.Segment{seg},
		Type:         TypeMerge,
		MasterSchema: testSchema("id"),
	})
	s.Require().NoError(err)

	target := plan.TargetSchema
	s.Require().Len(target.Columns, 2)
	s.Equal("added", target.Columns[1].Name)
	s.Equal(int64(42), target.Cardinality["id"])
	s.Equal(int64(5), target.Cardinality["added"])
	for _, task := range plan.Tasks {
		s.Same(target, task.TargetSchema)
	}
}

func (s *PlannerSuite) TestUpdateDeltaAdoptsBaselineSchema() {
	seg := &storage.Segment{ID: "seg_1", State: storage.SegmentSuccess}
	old := testBlock("seg_1", 0, "t1", 100)
	latest := testBlock("seg_1", 1, "t1", 900)
	s.addBlock(old, testFooter(testSchema("id"), map[string]int64{"id": 10}))
	s.addBlock(latest, testFooter(testSchema("id", "val"), map[string]int64{"id": 42}))

	plan, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments: []*storage.Segment{seg},
		Type:     TypeUpdateDelta,
		// Master schema is ignored for update-delta.
		MasterSchema: testSchema("other"),
	})
	s.Require().NoError(err)

	s.Require().Len(plan.TargetSchema.Columns, 2)
	s.Equal("id", plan.TargetSchema.Columns[0].Name)
	s.Equal("val", plan.TargetSchema.Columns[1].Name)
	for _, task := range plan.Tasks {
		s.Require().NotNil(task.Baseline)
		s.Equal(TypeUpdateDelta, task.Type)
	}
}

func (s *PlannerSuite) TestIllegalRequests() {
	_, err := s.planner.Plan(context.Background(), &PlanRequest{
		Segments: []*storage.Segment{{ID: "seg_1", State: storage.SegmentSuccess}},
		Type:     TypeUndefined,
	})
	s.ErrorIs(err, perr.ErrIllegalPlan)

	_, err = s.planner.Plan(context.Background(), &PlanRequest{Type: TypeMerge})
	s.ErrorIs(err, perr.ErrIllegalPlan)

	// Valid segments with no eligible blocks cannot be planned either.
	_, err = s.planner.Plan(context.Background(), &PlanRequest{
		Segments: []*storage.Segment{{ID: "seg_empty", State: storage.SegmentSuccess}},
		Type:     TypeMerge,
	})
	s.ErrorIs(err, perr.ErrIllegalPlan)
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
