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
	"fmt"

	"github.com/petrel-io/petrel/internal/storage"
)

// RangeFilter is the predicate selecting one half-open interval of the range
// column's value domain. Bounds are (lower, upper]: lower is exclusive when
// set, upper inclusive when set. The lowest interval additionally matches
// nulls.
type RangeFilter struct {
	column      string
	lower       *storage.Scalar
	upper       *storage.Scalar
	includeNull bool
	cmp         storage.Comparator
}

var _ storage.Predicate = (*RangeFilter)(nil)

func (f *RangeFilter) Column() string { return f.column }

// Matches reports whether a range-column value falls inside this interval.
func (f *RangeFilter) Matches(v storage.Scalar) bool {
	if v.IsNull() {
		return f.includeNull
	}
	if f.lower != nil && f.cmp(v, *f.lower) <= 0 {
		return false
	}
	if f.upper != nil && f.cmp(v, *f.upper) > 0 {
		return false
	}
	return true
}

func (f *RangeFilter) String() string {
	switch {
	case f.lower == nil && f.upper == nil:
		return fmt.Sprintf("(%s IS NOT NULL OR %s IS NULL)", f.column, f.column)
	case f.lower == nil:
		return fmt.Sprintf("(%s <= %s OR %s IS NULL)", f.column, f.upper.Format(), f.column)
	case f.upper == nil:
		return fmt.Sprintf("(%s > %s)", f.column, f.lower.Format())
	default:
		return fmt.Sprintf("(%s < %s <= %s)", f.lower.Format(), f.column, f.upper.Format())
	}
}

// BuildIntervalFilters turns k boundaries into the k+1 interval filters:
// interval 0 is (col <= b0 OR col IS NULL), interval i is (b[i-1] < col <=
// b[i]), interval k is (col > b[k-1]). Single-range sets build no filters.
func BuildIntervalFilters(set *RangeBoundarySet) []*RangeFilter {
	if set == nil || set.SingleRange || len(set.Boundaries) == 0 {
		return nil
	}
	cmp := storage.ComparatorFor(set.Column)
	k := len(set.Boundaries)
	filters := make([]*RangeFilter, 0, k+1)

	filters = append(filters, &RangeFilter{
		column:      set.Column.Name,
		upper:       &set.Boundaries[0],
		includeNull: true,
		cmp:         cmp,
	})
	for i := 1; i < k; i++ {
		filters = append(filters, &RangeFilter{
			column: set.Column.Name,
			lower:  &set.Boundaries[i-1],
			upper:  &set.Boundaries[i],
			cmp:    cmp,
		})
	}
	filters = append(filters, &RangeFilter{
		column: set.Column.Name,
		lower:  &set.Boundaries[k-1],
		cmp:    cmp,
	})
	return filters
}
