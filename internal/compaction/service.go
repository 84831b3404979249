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

	"github.com/petrel-io/petrel/internal/storage"
)

// Service is the surface the job driver consumes: one planning pass producing
// assigned tasks, then one Execute per task on the assigned worker. Results
// flow back to the caller as MergeOutcome values; sibling task failures are
// independent.
type Service struct {
	planner  *TaskPlanner
	assigner *LocalityAssigner

	footers     storage.FooterReader
	factory     QueryExecutorFactory
	rowMerger   MergeStrategy
	spillMerger MergeStrategy
}

func NewService(
	planner *TaskPlanner,
	assigner *LocalityAssigner,
	footers storage.FooterReader,
	factory QueryExecutorFactory,
	rowMerger, spillMerger MergeStrategy,
) *Service {
	return &Service{
		planner:     planner,
		assigner:    assigner,
		footers:     footers,
		factory:     factory,
		rowMerger:   rowMerger,
		spillMerger: spillMerger,
	}
}

// Plan builds the task list and maps it onto the active cluster.
func (s *Service) Plan(ctx context.Context, req *PlanRequest) (*Plan, []Assignment, error) {
	plan, err := s.planner.Plan(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	assignments, err := s.assigner.Assign(ctx, plan.Tasks)
	if err != nil {
		return nil, nil, err
	}
	return plan, assignments, nil
}

// Execute runs one task to its terminal state.
func (s *Service) Execute(ctx context.Context, task *CompactionTask) (*MergeOutcome, error) {
	executor := NewMergeExecutor(task, s.footers, s.factory, s.rowMerger, s.spillMerger)
	return executor.Execute(ctx)
}
