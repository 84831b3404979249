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
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/petrel-io/petrel/internal/storage"
)

const testFormatVersion = "2.1.0"

// memLister serves blocks per segment from memory.
type memLister struct {
	blocks map[string][]*storage.Block
	errs   map[string]error
}

func (l *memLister) ListBlocks(_ context.Context, segment *storage.Segment) ([]*storage.Block, error) {
	if err := l.errs[segment.ID]; err != nil {
		return nil, err
	}
	return l.blocks[segment.ID], nil
}

// memFooterReader serves footers by block path and counts reads.
type memFooterReader struct {
	mu      sync.Mutex
	footers map[string]*storage.Footer
	errs    map[string]error
	reads   map[string]int
}

func newMemFooterReader() *memFooterReader {
	return &memFooterReader{
		footers: make(map[string]*storage.Footer),
		errs:    make(map[string]error),
		reads:   make(map[string]int),
	}
}

func (r *memFooterReader) ReadFooter(_ context.Context, block *storage.Block) (*storage.Footer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads[block.Path]++
	if err := r.errs[block.Path]; err != nil {
		return nil, err
	}
	footer, ok := r.footers[block.Path]
	if !ok {
		return nil, errors.Newf("no footer for %s", block.Path)
	}
	return footer, nil
}

func (r *memFooterReader) readCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads[path]
}

// memScanner serves range column projections by block path.
type memScanner struct {
	mu     sync.Mutex
	values map[string][]storage.Scalar
	errs   map[string]error
	// scanLimits records the limit of each scan per path.
	scanLimits map[string][]int64
}

func newMemScanner() *memScanner {
	return &memScanner{
		values:     make(map[string][]storage.Scalar),
		errs:       make(map[string]error),
		scanLimits: make(map[string][]int64),
	}
}

func (s *memScanner) ScanColumn(_ context.Context, block *storage.Block, _ string, limit int64) ([]storage.Scalar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanLimits[block.Path] = append(s.scanLimits[block.Path], limit)
	if err := s.errs[block.Path]; err != nil {
		return nil, err
	}
	values := s.values[block.Path]
	if limit > 0 && int64(len(values)) > limit {
		values = values[:limit]
	}
	return values, nil
}

// stubCluster reports a fixed node list.
type stubCluster struct {
	nodes []string
	err   error
}

func (c *stubCluster) ActiveNodes(context.Context) ([]string, error) {
	return c.nodes, c.err
}

// countingIterator counts Close calls.
type countingIterator struct {
	closes atomic.Int32
}

func (it *countingIterator) HasNext() bool              { return false }
func (it *countingIterator) Next() (storage.Row, error) { return nil, nil }
func (it *countingIterator) Close() error               { it.closes.Inc(); return nil }

// stubQueryExecutor hands out a pre-built iterator group and counts closes.
type stubQueryExecutor struct {
	groups   *storage.IteratorGroups
	openErr  error
	closes   atomic.Int32
	closeErr error
}

func (qe *stubQueryExecutor) OpenIterators(context.Context) (*storage.IteratorGroups, error) {
	if qe.openErr != nil {
		return nil, qe.openErr
	}
	return qe.groups, nil
}

func (qe *stubQueryExecutor) Close() error {
	qe.closes.Inc()
	return qe.closeErr
}

type stubExecutorFactory struct {
	qe      *stubQueryExecutor
	openErr error
	// filter records the predicate passed at open.
	filter storage.Predicate
}

func (f *stubExecutorFactory) Open(_ context.Context, _ []*storage.Block, filter storage.Predicate) (QueryExecutor, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.filter = filter
	return f.qe, nil
}

// stubStrategy runs a configurable merge body.
type stubStrategy struct {
	name    string
	execute func(ctx context.Context) (string, error)
	calls   atomic.Int32
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Execute(ctx context.Context, _ *storage.IteratorGroups, _ *MergeTargetSchema) (string, error) {
	s.calls.Inc()
	if s.execute != nil {
		return s.execute(ctx)
	}
	return "seg_new", nil
}

// countingTempStore counts Cleanup calls.
type countingTempStore struct {
	cleanups atomic.Int32
}

func (t *countingTempStore) Path() string { return "/tmp/petrel-test" }

func (t *countingTempStore) Cleanup() error {
	t.cleanups.Inc()
	return nil
}

func testBlock(segID string, idx int, taskID string, updateTime int64) *storage.Block {
	return &storage.Block{
		SegmentID:     segID,
		Path:          fmt.Sprintf("/store/%s/part-%04d", segID, idx),
		Length:        64 << 20,
		FormatVersion: testFormatVersion,
		UpdateTime:    updateTime,
		TaskID:        taskID,
	}
}

func testFooter(schema []storage.ColumnSchema, cardinality map[string]int64) *storage.Footer {
	return &storage.Footer{
		Schema:      schema,
		Cardinality: cardinality,
		ColumnStats: make(map[string]storage.ColumnStat),
	}
}

func testSchema(names ...string) []storage.ColumnSchema {
	cols := make([]storage.ColumnSchema, 0, len(names))
	for _, name := range names {
		cols = append(cols, storage.ColumnSchema{Name: name, Type: storage.ColumnInt64})
	}
	return cols
}
