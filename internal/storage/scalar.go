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
	"fmt"
	"strings"
)

// ScalarKind enumerates the value kinds a range column can produce.
type ScalarKind uint8

const (
	KindNull ScalarKind = iota
	KindInt64
	KindFloat64
	KindString
)

// Scalar is one immutable column value. The zero value is the null scalar.
type Scalar struct {
	kind ScalarKind
	i64  int64
	f64  float64
	str  string
}

func NullScalar() Scalar {
	return Scalar{kind: KindNull}
}

func Int64Scalar(v int64) Scalar {
	return Scalar{kind: KindInt64, i64: v}
}

func Float64Scalar(v float64) Scalar {
	return Scalar{kind: KindFloat64, f64: v}
}

func StringScalar(v string) Scalar {
	return Scalar{kind: KindString, str: v}
}

func (s Scalar) Kind() ScalarKind { return s.kind }
func (s Scalar) IsNull() bool     { return s.kind == KindNull }
func (s Scalar) Int64() int64     { return s.i64 }
func (s Scalar) Float64() float64 { return s.f64 }
func (s Scalar) Str() string      { return s.str }

// Format renders the value the way filter expressions print it.
func (s Scalar) Format() string {
	switch s.kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return fmt.Sprintf("%d", s.i64)
	case KindFloat64:
		return fmt.Sprintf("%g", s.f64)
	default:
		return fmt.Sprintf("'%s'", s.str)
	}
}

// asFloat widens numeric kinds for cross-kind comparison.
func (s Scalar) asFloat() float64 {
	if s.kind == KindInt64 {
		return float64(s.i64)
	}
	return s.f64
}

// Compare orders two scalars. Nulls sort before everything; numeric kinds
// compare by value, strings lexicographically. Comparing a string against a
// numeric kind is a caller bug and orders by kind to stay total.
func (s Scalar) Compare(other Scalar) int {
	if s.kind == KindNull || other.kind == KindNull {
		return boolCmp(s.kind != KindNull, other.kind != KindNull)
	}
	if s.kind == KindString || other.kind == KindString {
		if s.kind != other.kind {
			return boolCmp(s.kind == KindString, other.kind == KindString)
		}
		return strings.Compare(s.str, other.str)
	}
	if s.kind == KindInt64 && other.kind == KindInt64 {
		return int64Cmp(s.i64, other.i64)
	}
	a, b := s.asFloat(), other.asFloat()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports value equality under Compare's ordering.
func (s Scalar) Equal(other Scalar) bool {
	return s.Compare(other) == 0
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func int64Cmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Comparator orders scalars sampled from one column.
type Comparator func(a, b Scalar) int

// ComparatorFor picks the comparator matching a column's type and encoding:
// numeric and date columns compare by value, dictionary columns compare by
// surrogate code unless direct-dictionary encoded (codes hold the typed
// value), free-text columns compare lexicographically. Nulls always order
// first.
func ComparatorFor(col ColumnSchema) Comparator {
	switch {
	case col.Encoding == EncodingDictionary:
		// ColumnScanner yields surrogate codes for plain dictionary columns.
		return func(a, b Scalar) int {
			if a.IsNull() || b.IsNull() {
				return boolCmp(!a.IsNull(), !b.IsNull())
			}
			return int64Cmp(a.i64, b.i64)
		}
	case col.Type == ColumnString || col.Type == ColumnText:
		return func(a, b Scalar) int {
			if a.IsNull() || b.IsNull() {
				return boolCmp(!a.IsNull(), !b.IsNull())
			}
			return strings.Compare(a.str, b.str)
		}
	default:
		return func(a, b Scalar) int { return a.Compare(b) }
	}
}
