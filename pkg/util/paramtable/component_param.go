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

package paramtable

import (
	"sync"
)

var (
	globalParams ComponentParam
	once         sync.Once
)

// Init initializes the global param table once.
func Init() {
	once.Do(func() {
		globalParams.init(NewBaseTable())
	})
}

// Get returns the global param table, initializing it on first use.
func Get() *ComponentParam {
	Init()
	return &globalParams
}

// ComponentParam groups every component's configuration.
type ComponentParam struct {
	baseTable *BaseTable

	CompactionCfg compactionConfig
}

func (p *ComponentParam) init(bt *BaseTable) {
	p.baseTable = bt
	p.CompactionCfg.init(bt)
}

// BaseTable exposes the underlying table for test overrides.
func (p *ComponentParam) BaseTable() *BaseTable {
	return p.baseTable
}

type compactionConfig struct {
	// MinCompactionCores is the lower bound on planned range parallelism.
	MinCompactionCores ParamItem
	// TargetBytesPerTask sizes the byte-driven task count estimate.
	TargetBytesPerTask ParamItem
	// DefaultParallelism spreads single-range plans across load buckets.
	DefaultParallelism ParamItem
	// SampleRowsPerBlock bounds the range-column projection sample per block.
	SampleRowsPerBlock ParamItem
	// MinSupportedFormatVersion excludes legacy blocks from the catalog.
	MinSupportedFormatVersion ParamItem
	// FooterCacheSize is the LRU capacity of the catalog footer cache.
	FooterCacheSize ParamItem
	// FooterReadRetries bounds transient footer read retries before the
	// planning pass aborts.
	FooterReadRetries ParamItem
	// TableDefaultCardinality applies to columns absent from older blocks.
	TableDefaultCardinality ParamItem
}

func (c *compactionConfig) init(bt *BaseTable) {
	c.MinCompactionCores = ParamItem{
		Key:          "compaction.minCores",
		DefaultValue: "2",
		Doc:          "lower bound on range compaction parallelism",
	}
	c.MinCompactionCores.Init(bt)

	c.TargetBytesPerTask = ParamItem{
		Key:          "compaction.targetBytesPerTask",
		DefaultValue: "1073741824", // 1 GiB
		Doc:          "target input bytes per compaction task",
	}
	c.TargetBytesPerTask.Init(bt)

	c.DefaultParallelism = ParamItem{
		Key:          "compaction.defaultParallelism",
		DefaultValue: "4",
		Doc:          "bucket count divisor for single-range plans",
	}
	c.DefaultParallelism.Init(bt)

	c.SampleRowsPerBlock = ParamItem{
		Key:          "compaction.sampleRowsPerBlock",
		DefaultValue: "10000",
		Doc:          "max sampled range-column rows per block",
	}
	c.SampleRowsPerBlock.Init(bt)

	c.MinSupportedFormatVersion = ParamItem{
		Key:          "compaction.minSupportedFormatVersion",
		DefaultValue: "2.0.0",
		Doc:          "blocks below this storage format version are skipped",
	}
	c.MinSupportedFormatVersion.Init(bt)

	c.FooterCacheSize = ParamItem{
		Key:          "compaction.footerCacheSize",
		DefaultValue: "4096",
		Doc:          "catalog footer LRU capacity",
	}
	c.FooterCacheSize.Init(bt)

	c.FooterReadRetries = ParamItem{
		Key:          "compaction.footerReadRetries",
		DefaultValue: "3",
		Doc:          "transient footer read retries before aborting planning",
	}
	c.FooterReadRetries.Init(bt)

	c.TableDefaultCardinality = ParamItem{
		Key:          "compaction.tableDefaultCardinality",
		DefaultValue: "1",
		Doc:          "cardinality assumed for columns missing from old blocks",
	}
	c.TableDefaultCardinality.Init(bt)
}
