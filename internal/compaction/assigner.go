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

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/log"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

// Cluster reports the nodes currently active in the cluster.
type Cluster interface {
	ActiveNodes(ctx context.Context) ([]string, error)
}

// Assignment maps one task onto a worker node, carrying everything execution
// needs to reconstruct the task: its block list, locality hints and the
// partition identity or range-interval ordinal.
type Assignment struct {
	Task   *CompactionTask
	NodeID string
	// Locations is the union of the task's block locations, the locality
	// hints behind the choice of NodeID.
	Locations []string
}

// LocalityAssigner maps tasks onto active nodes, preferring nodes already
// hosting a task's blocks and balancing the rest round-robin. A cluster
// smaller than the desired parallelism never leaves a task unassigned.
type LocalityAssigner struct {
	cluster Cluster
}

func NewLocalityAssigner(cluster Cluster) *LocalityAssigner {
	return &LocalityAssigner{cluster: cluster}
}

// Assign distributes tasks across the currently active nodes.
func (a *LocalityAssigner) Assign(ctx context.Context, tasks []*CompactionTask) ([]Assignment, error) {
	nodes, err := a.cluster.ActiveNodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, perr.WrapErrNodeLack("cannot assign compaction tasks")
	}
	nodes = lo.Uniq(nodes)
	sort.Strings(nodes)
	active := lo.SliceToMap(nodes, func(n string) (string, struct{}) { return n, struct{}{} })

	assignments := make([]Assignment, 0, len(tasks))
	cursor := 0
	local, fallback := 0, 0
	for _, task := range tasks {
		locations := taskLocations(task)
		nodeID := pickLocalNode(task, active)
		if nodeID == "" {
			// No data-local active node: round-robin across the cluster.
			nodeID = nodes[cursor%len(nodes)]
			cursor++
			fallback++
		} else {
			local++
		}
		assignments = append(assignments, Assignment{
			Task:      task,
			NodeID:    nodeID,
			Locations: locations,
		})
	}

	log.Ctx(ctx).Info("compaction tasks assigned",
		zap.Int("tasks", len(tasks)),
		zap.Int("nodes", len(nodes)),
		zap.Int("dataLocal", local),
		zap.Int("roundRobin", fallback))
	return assignments, nil
}

// taskLocations is the sorted union of block locations of one task.
func taskLocations(task *CompactionTask) []string {
	locations := lo.Uniq(lo.FlatMap(task.Blocks,
		func(b *storage.Block, _ int) []string { return b.Locations }))
	sort.Strings(locations)
	return locations
}

// pickLocalNode returns the active node hosting the most of the task's
// blocks; ties break on node id so assignment is deterministic. Empty result
// means no data-local node is active.
func pickLocalNode(task *CompactionTask, active map[string]struct{}) string {
	counts := make(map[string]int)
	for _, block := range task.Blocks {
		for _, n := range block.Locations {
			if _, ok := active[n]; ok {
				counts[n]++
			}
		}
	}
	best := ""
	bestCount := 0
	candidates := lo.Keys(counts)
	sort.Strings(candidates)
	for _, n := range candidates {
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best
}
