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

// Package remotetest provides an in-memory remote.Remote for tests.
package remotetest

import (
	"cmp"
	"context"
	"fmt"
	"github.com/hopeservices/guestdesk/remote"
	"slices"
	"sync"
	"time"
)

const proxyTable = "guest_proxies"

// Call records one operation made against a Fake.
type Call struct {
	Op    string
	Table string
	Query remote.Query
	Rows  []remote.Row
	Patch remote.Row
	Match any
	Ins   []any
}

// FailFunc decides whether an operation should fail. Returning a non-nil error
// makes the Fake return it without touching its tables.
type FailFunc func(op, table string) error

// Fake is an in-memory Remote. Rows keep their insertion order, ids are
// assigned as "<table>-<n>" unless the caller supplies one, and timestamps
// come from Now.
type Fake struct {
	mu     sync.Mutex
	tables map[string][]remote.Row
	calls  []Call
	nextID int
	fail   FailFunc

	// MirrorProxies emulates the server-side trigger that keeps guest_proxies
	// symmetric.
	MirrorProxies bool
	Now           func() time.Time
}

var _ remote.Remote = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		tables: make(map[string][]remote.Row),
		Now:    time.Now,
	}
}

// Seed appends rows to a table without recording a call.
func (f *Fake) Seed(table string, rows ...remote.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		f.tables[table] = append(f.tables[table], f.fill(table, row.Clone()))
	}
}

// FailWith installs a failure hook. Pass nil to clear it.
func (f *Fake) FailWith(fn FailFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fn
}

// FailOp makes every op against table fail with err.
func (f *Fake) FailOp(op, table string, err error) {
	f.FailWith(func(o, t string) error {
		if o == op && t == table {
			return err
		}
		return nil
	})
}

// Rows returns a copy of a table's contents.
func (f *Fake) Rows(table string) []remote.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.Row, 0, len(f.tables[table]))
	for _, row := range f.tables[table] {
		out = append(out, row.Clone())
	}
	return out
}

// Calls returns the recorded calls, optionally limited to one op and table.
func (f *Fake) Calls(op, table string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if (op == "" || c.Op == op) && (table == "" || c.Table == table) {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Select(_ context.Context, table string, q remote.Query) ([]remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "select", Table: table, Query: q})
	if err := f.check("select", table); err != nil {
		return nil, err
	}
	var matched []remote.Row
	for _, row := range f.tables[table] {
		if matches(row, q.Filters) {
			matched = append(matched, row)
		}
	}
	if q.OrderBy != "" {
		slices.SortStableFunc(matched, func(a, b remote.Row) int {
			c := compare(a[q.OrderBy], b[q.OrderBy])
			if c == 0 && q.ThenBy != "" {
				c = compare(a[q.ThenBy], b[q.ThenBy])
			}
			if !q.Ascending {
				c = -c
			}
			return c
		})
	}
	if q.HasRange() {
		from := min(q.Range.From, len(matched))
		to := min(q.Range.To+1, len(matched))
		matched = matched[from:to]
	}
	return project(matched, q.Columns), nil
}

func (f *Fake) Insert(_ context.Context, table string, rows []remote.Row) ([]remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "insert", Table: table, Rows: cloneAll(rows)})
	if err := f.check("insert", table); err != nil {
		return nil, err
	}
	out := make([]remote.Row, 0, len(rows))
	for _, row := range rows {
		stored := f.fill(table, row.Clone())
		f.tables[table] = append(f.tables[table], stored)
		out = append(out, stored.Clone())
		if table == proxyTable && f.MirrorProxies {
			mirror := remote.Row{"guest_id": stored["proxy_id"], "proxy_id": stored["guest_id"]}
			if !f.hasProxy(mirror["guest_id"], mirror["proxy_id"]) {
				f.tables[table] = append(f.tables[table], f.fill(table, mirror))
			}
		}
	}
	return out, nil
}

func (f *Fake) Update(_ context.Context, table string, patch remote.Row, matchColumn string, matchValue any) (remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "update", Table: table, Patch: patch.Clone(), Match: matchValue})
	if err := f.check("update", table); err != nil {
		return nil, err
	}
	for _, row := range f.tables[table] {
		if compare(row[matchColumn], matchValue) != 0 {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		if _, ok := patch["updated_at"]; !ok {
			row["updated_at"] = f.Now().UTC()
		}
		return row.Clone(), nil
	}
	return nil, &remote.Error{
		Op:      "update",
		Table:   table,
		Code:    remote.CodeNoRows,
		Message: fmt.Sprintf("no row with %v = %v", matchColumn, matchValue),
	}
}

func (f *Fake) Delete(_ context.Context, table string, matchColumn string, matchValue any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "delete", Table: table, Match: matchValue})
	if err := f.check("delete", table); err != nil {
		return err
	}
	var kept, removed []remote.Row
	for _, row := range f.tables[table] {
		if compare(row[matchColumn], matchValue) == 0 {
			removed = append(removed, row)
			continue
		}
		kept = append(kept, row)
	}
	if table == proxyTable && f.MirrorProxies {
		kept = slices.DeleteFunc(kept, func(row remote.Row) bool {
			for _, r := range removed {
				if compare(row["guest_id"], r["proxy_id"]) == 0 && compare(row["proxy_id"], r["guest_id"]) == 0 {
					return true
				}
			}
			return false
		})
	}
	f.tables[table] = kept
	return nil
}

func (f *Fake) SelectIn(_ context.Context, table string, columns []string, matchColumn string, values []any) ([]remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "select_in", Table: table, Ins: slices.Clone(values)})
	if err := f.check("select_in", table); err != nil {
		return nil, err
	}
	var matched []remote.Row
	for _, row := range f.tables[table] {
		if slices.ContainsFunc(values, func(v any) bool { return compare(row[matchColumn], v) == 0 }) {
			matched = append(matched, row)
		}
	}
	return project(matched, columns), nil
}

func (f *Fake) check(op, table string) error {
	if f.fail == nil {
		return nil
	}
	return f.fail(op, table)
}

func (f *Fake) fill(table string, row remote.Row) remote.Row {
	if row["id"] == nil || row["id"] == "" {
		f.nextID++
		row["id"] = fmt.Sprintf("%v-%d", table, f.nextID)
	}
	now := f.Now().UTC()
	if row["created_at"] == nil {
		row["created_at"] = now
	}
	if table != proxyTable && row["updated_at"] == nil {
		row["updated_at"] = now
	}
	return row
}

func (f *Fake) hasProxy(guestID, proxyID any) bool {
	for _, row := range f.tables[proxyTable] {
		if compare(row["guest_id"], guestID) == 0 && compare(row["proxy_id"], proxyID) == 0 {
			return true
		}
	}
	return false
}

func matches(row remote.Row, filters []remote.Filter) bool {
	for _, fl := range filters {
		c := compare(row[fl.Column], fl.Value)
		ok := false
		switch fl.Op {
		case remote.OpEq:
			ok = c == 0
		case remote.OpNeq:
			ok = c != 0
		case remote.OpGt:
			ok = c > 0
		case remote.OpGte:
			ok = c >= 0
		case remote.OpLt:
			ok = c < 0
		case remote.OpLte:
			ok = c <= 0
		}
		if !ok {
			return false
		}
	}
	return true
}

func project(rows []remote.Row, columns []string) []remote.Row {
	out := make([]remote.Row, 0, len(rows))
	for _, row := range rows {
		if len(columns) == 0 || slices.Contains(columns, "*") {
			out = append(out, row.Clone())
			continue
		}
		p := make(remote.Row, len(columns))
		for _, c := range columns {
			if v, ok := row[c]; ok {
				p[c] = v
			}
		}
		out = append(out, p)
	}
	return out
}

func cloneAll(rows []remote.Row) []remote.Row {
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out
}

// compare orders nil first, then numbers, times, bools and strings. Values of
// different kinds compare by their formatted text.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
