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

// ColumnType is the declared type of a table column.
type ColumnType int8

const (
	ColumnInt64 ColumnType = iota
	ColumnDouble
	ColumnDate
	ColumnTimestamp
	ColumnString
	ColumnText
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInt64:
		return "int64"
	case ColumnDouble:
		return "double"
	case ColumnDate:
		return "date"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnString:
		return "string"
	case ColumnText:
		return "text"
	default:
		return "unknown"
	}
}

// ColumnEncoding is the physical encoding of a column inside a block.
type ColumnEncoding int8

const (
	EncodingPlain ColumnEncoding = iota
	// EncodingDictionary stores surrogate codes backed by a per-block
	// dictionary; code order is not value order.
	EncodingDictionary
	// EncodingDirectDictionary stores date/timestamp values as their own
	// codes, so code order equals value order.
	EncodingDirectDictionary
)

// ColumnSchema describes one column of the master table schema or of a block
// footer.
type ColumnSchema struct {
	Name         string
	Type         ColumnType
	Encoding     ColumnEncoding
	IsSortColumn bool
}

// SchemaEqual reports whether two column lists match by name, type and order.
func SchemaEqual(a, b []ColumnSchema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
