//
// See the file COPYRIGHT for copyright information.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package remote describes the narrow, row-oriented contract that guestdesk uses
// to talk to its backing relational store. Concrete backends live in the store
// package; an in-memory fake lives in remotetest.
package remote

import (
	"context"
	"maps"
)

// Row is one remote row, keyed by column name. Values are whatever the backend
// produced: driver values for SQL backends, decoded JSON values for HTTP ones.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// Valid reports whether op is one of the supported comparison operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func Gte(column string, value any) Filter {
	return Filter{Column: column, Op: OpGte, Value: value}
}

// Range is an inclusive window of row offsets: a page of n rows starting at
// offset o is Range{From: o, To: o+n-1}.
type Range struct {
	From int
	To   int
}

// Query is the select shape. A nil Range reads every matching row.
type Query struct {
	Columns []string
	OrderBy string
	// ThenBy breaks ties in OrderBy, in the same direction. Offset paging is
	// only stable when the two together are unique.
	ThenBy    string
	Ascending bool
	Filters   []Filter
	Range     *Range
}

// HasRange reports whether the query asks for a bounded window.
func (q Query) HasRange() bool {
	return q.Range != nil && q.Range.From >= 0 && q.Range.To >= q.Range.From
}

// Limit is the number of rows in the window, or 0 if unbounded.
func (q Query) Limit() int {
	if !q.HasRange() {
		return 0
	}
	return q.Range.To - q.Range.From + 1
}

// Offset is the first row of the window, or 0 if unbounded.
func (q Query) Offset() int {
	if !q.HasRange() {
		return 0
	}
	return q.Range.From
}

// Remote is the five-operation contract the guest store depends on. Every
// operation blocks until the round trip completes or fails; there is no
// store-level timeout beyond what the caller's context imposes.
type Remote interface {
	// Select returns the rows of table matching q.
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	// Insert writes rows and returns them as the remote stored them,
	// including any remote-assigned identity and timestamps.
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	// Update applies patch to the single row where matchColumn = matchValue
	// and returns the updated row.
	Update(ctx context.Context, table string, patch Row, matchColumn string, matchValue any) (Row, error)
	// Delete removes every row where matchColumn = matchValue.
	Delete(ctx context.Context, table string, matchColumn string, matchValue any) error
	// SelectIn returns the rows of table whose matchColumn is one of values.
	SelectIn(ctx context.Context, table string, columns []string, matchColumn string, values []any) ([]Row, error)
}
