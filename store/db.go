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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// querier is the part of *sql.DB and *sql.Tx that the SQL backend uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loggedQuerier logs every statement it runs at debug level.
type loggedQuerier struct {
	q querier
}

func (l loggedQuerier) ExecContext(ctx context.Context, s string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := l.q.ExecContext(ctx, s, args...)
	logQuery(s, start, err)
	return result, err
}

func (l loggedQuerier) QueryContext(ctx context.Context, s string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := l.q.QueryContext(ctx, s, args...)
	logQuery(s, start, err)
	return rows, err
}

func logQuery(s string, start time.Time, err error) {
	// The first few words, e.g. "insert into `guests`", are enough to tell
	// statements apart in the log.
	fields := strings.Fields(s)
	name := strings.Join(fields[:min(len(fields), 3)], " ")
	timeMS := float64(time.Since(start).Microseconds()) / 1000.0

	// As with any database/sql caller, most of the IO for a select happens
	// later while the rows are read, so this understates the real query time.
	slog.Debug("QueryLog",
		"name", name,
		"durationish", fmt.Sprintf("%.3fms", timeMS),
		"err", err,
	)
}

func shut(c io.Closer) {
	_ = c.Close()
}
