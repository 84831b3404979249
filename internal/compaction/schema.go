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
	"github.com/petrel-io/petrel/internal/storage"
)

// MergeTargetSchema is the reconciled column list and cardinality map used to
// lay out the output segment.
type MergeTargetSchema struct {
	Columns     []storage.ColumnSchema
	Cardinality map[string]int64
}

// schemaReconciler folds per-block footer schemas into one merge target.
// Master-table column order is preserved; per column the maximum observed
// cardinality wins, and columns never observed in any folded footer (schema
// evolution) receive the table's default cardinality.
type schemaReconciler struct {
	master      []storage.ColumnSchema
	known       map[string]struct{}
	maxCard     map[string]int64
	defaultCard int64
}

func newSchemaReconciler(master []storage.ColumnSchema, defaultCardinality int64) *schemaReconciler {
	known := make(map[string]struct{}, len(master))
	for _, col := range master {
		known[col.Name] = struct{}{}
	}
	return &schemaReconciler{
		master:      append([]storage.ColumnSchema(nil), master...),
		known:       known,
		maxCard:     make(map[string]int64, len(master)),
		defaultCard: defaultCardinality,
	}
}

// fold merges one block footer into the running reconciliation.
func (r *schemaReconciler) fold(footer *storage.Footer) {
	for _, col := range footer.Schema {
		if _, ok := r.known[col.Name]; !ok {
			// Column unknown to the master schema: a restructured block from
			// a newer table version, appended after the master list.
			r.master = append(r.master, col)
			r.known[col.Name] = struct{}{}
		}
	}
	for name, card := range footer.Cardinality {
		if card > r.maxCard[name] {
			r.maxCard[name] = card
		}
	}
}

func (r *schemaReconciler) build() *MergeTargetSchema {
	cardinality := make(map[string]int64, len(r.master))
	for _, col := range r.master {
		if card, ok := r.maxCard[col.Name]; ok && card > 0 {
			cardinality[col.Name] = card
		} else {
			cardinality[col.Name] = r.defaultCard
		}
	}
	return &MergeTargetSchema{
		Columns:     r.master,
		Cardinality: cardinality,
	}
}

// restructuredBlockExists reports whether any footer schema differs from the
// merge target's column list. Downstream row reconstruction must then handle
// missing and extra columns.
func restructuredBlockExists(target *MergeTargetSchema, footers []*storage.Footer) bool {
	for _, footer := range footers {
		if !storage.SchemaEqual(footer.Schema, target.Columns) {
			return true
		}
	}
	return false
}
