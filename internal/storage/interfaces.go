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

package storage

import (
	"context"

	"go.uber.org/multierr"
)

// BlockLister enumerates the blocks of one segment.
type BlockLister interface {
	ListBlocks(ctx context.Context, segment *Segment) ([]*Block, error)
}

// FooterReader reads a block's footer metadata. Implementations perform
// blocking IO.
type FooterReader interface {
	ReadFooter(ctx context.Context, block *Block) (*Footer, error)
}

// ColumnScanner reads a bounded projection of one column from a block, in the
// column encoding's comparison domain (surrogate codes for plain dictionary
// columns, typed values otherwise). limit <= 0 means the full projection.
type ColumnScanner interface {
	ScanColumn(ctx context.Context, block *Block, column string, limit int64) ([]Scalar, error)
}

// Predicate selects rows by their range-column value.
type Predicate interface {
	Column() string
	Matches(v Scalar) bool
	String() string
}

// Row is one materialized row keyed by column name.
type Row map[string]Scalar

// RowIterator streams rows out of a block scan.
type RowIterator interface {
	HasNext() bool
	Next() (Row, error)
	Close() error
}

// IteratorGroups splits a task's block iterators into the group already
// sorted on the merge order and the group that is not.
type IteratorGroups struct {
	Sorted   []RowIterator
	Unsorted []RowIterator
}

// Close releases every iterator in both groups, collecting all errors.
func (g *IteratorGroups) Close() error {
	if g == nil {
		return nil
	}
	var err error
	for _, it := range g.Sorted {
		err = multierr.Append(err, it.Close())
	}
	for _, it := range g.Unsorted {
		err = multierr.Append(err, it.Close())
	}
	g.Sorted = nil
	g.Unsorted = nil
	return err
}
