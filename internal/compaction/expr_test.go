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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-io/petrel/internal/storage"
)

func int64Boundaries(values ...int64) *RangeBoundarySet {
	boundaries := make([]storage.Scalar, 0, len(values))
	for _, v := range values {
		boundaries = append(boundaries, storage.Int64Scalar(v))
	}
	return &RangeBoundarySet{
		Column:     storage.ColumnSchema{Name: "col", Type: storage.ColumnInt64},
		Boundaries: boundaries,
	}
}

func TestBuildIntervalFilters(t *testing.T) {
	filters := BuildIntervalFilters(int64Boundaries(10, 20))
	require.Len(t, filters, 3)

	assert.Equal(t, "(col <= 10 OR col IS NULL)", filters[0].String())
	assert.Equal(t, "(10 < col <= 20)", filters[1].String())
	assert.Equal(t, "(col > 20)", filters[2].String())
}

func TestIntervalFiltersExhaustiveAndDisjoint(t *testing.T) {
	filters := BuildIntervalFilters(int64Boundaries(10, 20))
	require.Len(t, filters, 3)

	probes := []storage.Scalar{
		storage.NullScalar(),
		storage.Int64Scalar(-5),
		storage.Int64Scalar(10),
		storage.Int64Scalar(11),
		storage.Int64Scalar(20),
		storage.Int64Scalar(21),
		storage.Int64Scalar(1000),
	}
	for _, v := range probes {
		matched := 0
		for _, f := range filters {
			if f.Matches(v) {
				matched++
			}
		}
		assert.Equalf(t, 1, matched, "value %s must match exactly one interval", v.Format())
	}

	// Upper bounds are inclusive, lower bounds exclusive.
	assert.True(t, filters[0].Matches(storage.Int64Scalar(10)))
	assert.False(t, filters[1].Matches(storage.Int64Scalar(10)))
	assert.True(t, filters[1].Matches(storage.Int64Scalar(20)))
	assert.False(t, filters[2].Matches(storage.Int64Scalar(20)))

	// Only the low interval is null-inclusive.
	assert.True(t, filters[0].Matches(storage.NullScalar()))
	assert.False(t, filters[1].Matches(storage.NullScalar()))
	assert.False(t, filters[2].Matches(storage.NullScalar()))
}

func TestSingleRangeBuildsNoFilters(t *testing.T) {
	set := int64Boundaries(7)
	set.SingleRange = true
	assert.Nil(t, BuildIntervalFilters(set))
	assert.Nil(t, BuildIntervalFilters(nil))
	assert.Equal(t, 1, set.IntervalCount())
}

func TestStringFilters(t *testing.T) {
	set := &RangeBoundarySet{
		Column: storage.ColumnSchema{Name: "city", Type: storage.ColumnString},
		Boundaries: []storage.Scalar{
			storage.StringScalar("m"),
		},
	}
	filters := BuildIntervalFilters(set)
	require.Len(t, filters, 2)
	assert.True(t, filters[0].Matches(storage.StringScalar("berlin")))
	assert.True(t, filters[1].Matches(storage.StringScalar("oslo")))
	assert.Equal(t, "(city <= 'm' OR city IS NULL)", filters[0].String())
}
