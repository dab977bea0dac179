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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/hopeservices/guestdesk/lib/conv"
	"github.com/hopeservices/guestdesk/remote"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
)

type Dialect string

const (
	DialectMariaDB  Dialect = "mariadb"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) Validate() error {
	switch d {
	case DialectMariaDB, DialectPostgres, DialectSQLite:
		return nil
	default:
		return fmt.Errorf("unknown SQL dialect %v", d)
	}
}

const proxiesTable = "guest_proxies"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var sqlOps = map[remote.Op]string{
	remote.OpEq:  "=",
	remote.OpNeq: "<>",
	remote.OpGt:  ">",
	remote.OpGte: ">=",
	remote.OpLt:  "<",
	remote.OpLte: "<=",
}

// SQL is a remote.Remote over a relational database reached through
// database/sql. Table and column names come from callers, so every one is
// checked against a plain identifier pattern before it goes into a statement.
type SQL struct {
	db            *sql.DB
	dialect       Dialect
	mirrorProxies bool
	newID         func() string
}

type SQLOption func(*SQL)

// WithMirrorProxies makes inserts and deletes on guest_proxies write the
// reverse row too, in the same transaction.
func WithMirrorProxies(mirror bool) SQLOption {
	return func(s *SQL) {
		s.mirrorProxies = mirror
	}
}

// WithIDFunc replaces the generator for ids of inserted rows that don't have one.
func WithIDFunc(newID func() string) SQLOption {
	return func(s *SQL) {
		s.newID = newID
	}
}

func NewSQL(db *sql.DB, dialect Dialect, opts ...SQLOption) (*SQL, error) {
	if err := dialect.Validate(); err != nil {
		return nil, err
	}
	s := &SQL{
		db:      db,
		dialect: dialect,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ remote.Remote = (*SQL)(nil)

func (s *SQL) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	b := s.builder()
	b.selectFrom(table, q.Columns)
	b.where(q.Filters)
	if q.OrderBy != "" {
		dir := "desc"
		if q.Ascending {
			dir = "asc"
		}
		b.write(" order by " + b.ident(q.OrderBy) + " " + dir)
		if q.ThenBy != "" {
			b.write(", " + b.ident(q.ThenBy) + " " + dir)
		}
	}
	if q.HasRange() {
		b.write(" limit " + b.arg(q.Limit()) + " offset " + b.arg(q.Offset()))
	}
	if b.err != nil {
		return nil, sqlError("select", table, b.err)
	}
	rows, err := s.query(ctx, loggedQuerier{s.db}, b)
	if err != nil {
		return nil, sqlError("select", table, err)
	}
	return rows, nil
}

// Insert writes all rows in one transaction and returns them as stored. Rows
// without an id get a new UUID.
func (s *SQL) Insert(ctx context.Context, table string, rows []remote.Row) ([]remote.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var out []remote.Row
	err := s.inTx(ctx, func(tx querier) error {
		ids := make([]any, 0, len(rows))
		for _, r := range rows {
			r = r.Clone()
			if conv.AsString(r["id"]) == "" {
				r["id"] = s.newID()
			}
			ids = append(ids, r["id"])
			if err := s.insertRow(ctx, tx, table, r); err != nil {
				return err
			}
			if table == proxiesTable && s.mirrorProxies {
				if err := s.insertMirror(ctx, tx, r); err != nil {
					return err
				}
			}
		}
		stored, err := s.selectIn(ctx, tx, table, nil, "id", ids)
		if err != nil {
			return err
		}
		out = inOrder(stored, ids)
		return nil
	})
	if err != nil {
		return nil, sqlError("insert", table, err)
	}
	return out, nil
}

// Update patches every row matching matchColumn and returns the first of them
// as stored.
func (s *SQL) Update(ctx context.Context, table string, patch remote.Row, matchColumn string, matchValue any) (remote.Row, error) {
	db := loggedQuerier{s.db}
	if len(patch) > 0 {
		b := s.builder()
		b.write("update " + b.ident(table) + " set ")
		for i, col := range slices.Sorted(maps.Keys(patch)) {
			if i > 0 {
				b.write(", ")
			}
			b.write(b.ident(col) + " = " + b.arg(patch[col]))
		}
		b.write(" where " + b.ident(matchColumn) + " = " + b.arg(matchValue))
		if b.err != nil {
			return nil, sqlError("update", table, b.err)
		}
		if _, err := db.ExecContext(ctx, b.String(), b.args...); err != nil {
			return nil, sqlError("update", table, err)
		}
	}
	b := s.builder()
	b.selectFrom(table, nil)
	b.where([]remote.Filter{remote.Eq(matchColumn, matchValue)})
	b.write(" limit 1")
	if b.err != nil {
		return nil, sqlError("update", table, b.err)
	}
	rows, err := s.query(ctx, db, b)
	if err != nil {
		return nil, sqlError("update", table, err)
	}
	if len(rows) == 0 {
		return nil, &remote.Error{
			Op:      "update",
			Table:   table,
			Code:    remote.CodeNoRows,
			Message: fmt.Sprintf("no row with %v = %v", matchColumn, matchValue),
		}
	}
	return rows[0], nil
}

// Delete removes every row matching matchColumn. Deleting nothing is not an error.
func (s *SQL) Delete(ctx context.Context, table string, matchColumn string, matchValue any) error {
	err := s.inTx(ctx, func(tx querier) error {
		var mirrors []remote.Row
		if table == proxiesTable && s.mirrorProxies {
			b := s.builder()
			b.selectFrom(table, []string{"guest_id", "proxy_id"})
			b.where([]remote.Filter{remote.Eq(matchColumn, matchValue)})
			if b.err != nil {
				return b.err
			}
			var err error
			if mirrors, err = s.query(ctx, tx, b); err != nil {
				return err
			}
		}
		b := s.builder()
		b.write("delete from " + b.ident(table) + " where " + b.ident(matchColumn) + " = " + b.arg(matchValue))
		if b.err != nil {
			return b.err
		}
		if _, err := tx.ExecContext(ctx, b.String(), b.args...); err != nil {
			return err
		}
		for _, m := range mirrors {
			b := s.builder()
			b.write("delete from " + b.ident(table) +
				" where " + b.ident("guest_id") + " = " + b.arg(m["proxy_id"]) +
				" and " + b.ident("proxy_id") + " = " + b.arg(m["guest_id"]))
			if _, err := tx.ExecContext(ctx, b.String(), b.args...); err != nil {
				return err
			}
		}
		return nil
	})
	return sqlError("delete", table, err)
}

func (s *SQL) SelectIn(ctx context.Context, table string, columns []string, matchColumn string, values []any) ([]remote.Row, error) {
	rows, err := s.selectIn(ctx, loggedQuerier{s.db}, table, columns, matchColumn, values)
	if err != nil {
		return nil, sqlError("select_in", table, err)
	}
	return rows, nil
}

func (s *SQL) selectIn(ctx context.Context, q querier, table string, columns []string, matchColumn string, values []any) ([]remote.Row, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b := s.builder()
	b.selectFrom(table, columns)
	b.write(" where " + b.ident(matchColumn) + " in (")
	for i, v := range values {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.arg(v))
	}
	b.write(")")
	if b.err != nil {
		return nil, b.err
	}
	return s.query(ctx, q, b)
}

func (s *SQL) insertRow(ctx context.Context, q querier, table string, r remote.Row) error {
	cols := slices.Sorted(maps.Keys(r))
	b := s.builder()
	b.write("insert into " + b.ident(table) + " (")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.ident(col))
	}
	b.write(") values (")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.arg(r[col]))
	}
	b.write(")")
	if b.err != nil {
		return b.err
	}
	_, err := q.ExecContext(ctx, b.String(), b.args...)
	return err
}

// insertMirror writes the reverse of a guest_proxies row unless it's already there.
func (s *SQL) insertMirror(ctx context.Context, q querier, r remote.Row) error {
	b := s.builder()
	b.selectFrom(proxiesTable, []string{"id"})
	b.where([]remote.Filter{remote.Eq("guest_id", r["proxy_id"]), remote.Eq("proxy_id", r["guest_id"])})
	existing, err := s.query(ctx, q, b)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	mirror := remote.Row{
		"id":       s.newID(),
		"guest_id": r["proxy_id"],
		"proxy_id": r["guest_id"],
	}
	if at, ok := r["created_at"]; ok {
		mirror["created_at"] = at
	}
	return s.insertRow(ctx, q, proxiesTable, mirror)
}

func (s *SQL) inTx(ctx context.Context, fn func(tx querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[BeginTx]: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("Failed to roll back transaction", "err", err)
		}
	}()
	if err := fn(loggedQuerier{tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[Commit]: %w", err)
	}
	return nil
}

func (s *SQL) query(ctx context.Context, q querier, b *stmt) ([]remote.Row, error) {
	rows, err := q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	defer shut(rows)
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]remote.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("[Columns]: %w", err)
	}
	var out []remote.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("[Scan]: %w", err)
		}
		row := make(remote.Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[Rows]: %w", err)
	}
	return out, nil
}

// inOrder arranges rows in the order of ids.
func inOrder(rows []remote.Row, ids []any) []remote.Row {
	byID := make(map[string]remote.Row, len(rows))
	for _, r := range rows {
		byID[conv.AsString(r["id"])] = r
	}
	out := make([]remote.Row, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[conv.AsString(id)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// stmt builds one statement in a dialect. The first bad identifier sticks
// in err.
type stmt struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
	err     error
}

func (s *SQL) builder() *stmt {
	return &stmt{dialect: s.dialect}
}

func (b *stmt) String() string {
	return b.sb.String()
}

func (b *stmt) write(s string) {
	b.sb.WriteString(s)
}

func (b *stmt) ident(name string) string {
	if !identifier.MatchString(name) {
		if b.err == nil {
			b.err = fmt.Errorf("invalid identifier %q", name)
		}
		return "_"
	}
	if b.dialect == DialectMariaDB {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func (b *stmt) arg(v any) string {
	b.args = append(b.args, v)
	if b.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

func (b *stmt) selectFrom(table string, columns []string) {
	b.write("select ")
	if len(columns) == 0 {
		b.write("*")
	}
	for i, col := range columns {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.ident(col))
	}
	b.write(" from " + b.ident(table))
}

func (b *stmt) where(filters []remote.Filter) {
	for i, f := range filters {
		if i == 0 {
			b.write(" where ")
		} else {
			b.write(" and ")
		}
		op, ok := sqlOps[f.Op]
		if !ok {
			if b.err == nil {
				b.err = fmt.Errorf("invalid filter operator %q", f.Op)
			}
			return
		}
		col := b.ident(f.Column)
		switch {
		case f.Value == nil && f.Op == remote.OpEq:
			b.write(col + " is null")
		case f.Value == nil && f.Op == remote.OpNeq:
			b.write(col + " is not null")
		default:
			b.write(col + " " + op + " " + b.arg(f.Value))
		}
	}
}
