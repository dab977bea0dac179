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

package remote

import (
	"context"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
	"time"
)

// Instrumented wraps a Remote, logging every operation at Debug and recording
// its duration in a Prometheus histogram.
type Instrumented struct {
	next     Remote
	duration *prometheus.HistogramVec
}

var _ Remote = (*Instrumented)(nil)

// Instrument wraps r. If reg is nil, durations are logged but not recorded.
func Instrument(r Remote, reg prometheus.Registerer) (*Instrumented, error) {
	inst := &Instrumented{next: r}
	if reg == nil {
		return inst, nil
	}
	inst.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "guestdesk",
			Subsystem: "remote",
			Name:      "op_duration_seconds",
			Help:      "Duration of remote store operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "table", "outcome"},
	)
	if err := reg.Register(inst.duration); err != nil {
		return nil, fmt.Errorf("[Register]: %w", err)
	}
	return inst, nil
}

func (i *Instrumented) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	start := time.Now()
	rows, err := i.next.Select(ctx, table, q)
	i.observe("select", table, start, len(rows), err)
	return rows, err
}

func (i *Instrumented) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	start := time.Now()
	inserted, err := i.next.Insert(ctx, table, rows)
	i.observe("insert", table, start, len(inserted), err)
	return inserted, err
}

func (i *Instrumented) Update(ctx context.Context, table string, patch Row, matchColumn string, matchValue any) (Row, error) {
	start := time.Now()
	row, err := i.next.Update(ctx, table, patch, matchColumn, matchValue)
	n := 0
	if row != nil {
		n = 1
	}
	i.observe("update", table, start, n, err)
	return row, err
}

func (i *Instrumented) Delete(ctx context.Context, table string, matchColumn string, matchValue any) error {
	start := time.Now()
	err := i.next.Delete(ctx, table, matchColumn, matchValue)
	i.observe("delete", table, start, 0, err)
	return err
}

func (i *Instrumented) SelectIn(ctx context.Context, table string, columns []string, matchColumn string, values []any) ([]Row, error) {
	start := time.Now()
	rows, err := i.next.SelectIn(ctx, table, columns, matchColumn, values)
	i.observe("select_in", table, start, len(rows), err)
	return rows, err
}

func (i *Instrumented) observe(op, table string, start time.Time, rows int, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if i.duration != nil {
		i.duration.WithLabelValues(op, table, outcome).Observe(elapsed.Seconds())
	}
	slog.Debug("Remote op",
		"op", op,
		"table", table,
		"rows", rows,
		"durationish", fmt.Sprintf("%.3fms", float64(elapsed.Microseconds())/1000.0),
		"err", err,
	)
}
