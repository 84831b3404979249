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

// Package metrics exposes the prometheus collectors of the compaction core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "petrel"
	subsystem = "compaction"

	// Task terminal states used as label values.
	CompactionCompletedLabel = "completed"
	CompactionFailedLabel    = "failed"
	CompactionCanceledLabel  = "canceled"
)

var (
	CompactionPlanLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "plan_latency",
			Help:      "latency of one planning pass in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		})

	CompactionPlannedTasks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "planned_tasks",
			Help:      "tasks produced per planning pass",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		})

	CompactionMergeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "merge_latency",
			Help:      "per-task merge latency in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 20),
		}, []string{"strategy"})

	CompactionTaskTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_total",
			Help:      "finished compaction tasks by terminal state",
		}, []string{"state"})

	FooterCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "footer_cache_hits",
			Help:      "catalog footer cache hits",
		})

	FooterCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "footer_cache_misses",
			Help:      "catalog footer cache misses",
		})
)

var registerOnce sync.Once

// Register registers all compaction collectors on the given registry.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(CompactionPlanLatency)
		r.MustRegister(CompactionPlannedTasks)
		r.MustRegister(CompactionMergeLatency)
		r.MustRegister(CompactionTaskTotal)
		r.MustRegister(FooterCacheHits)
		r.MustRegister(FooterCacheMisses)
	})
}
