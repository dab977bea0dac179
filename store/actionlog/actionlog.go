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

// Package actionlog records registry changes in the remote store's
// guest_events table, off the request path.
package actionlog

import (
	"context"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/hopeservices/guestdesk/remote"
	"log/slog"
	"sync"
	"time"
)

const (
	Table = "guest_events"

	workQueueMaxLength = 1024
	insertDeadline     = 10 * time.Second
)

// Logger is a guests.Notifier. Events are queued and written by a single
// worker, so a slow remote never holds up a registry change. When the queue
// is full, events are dropped and logged instead.
type Logger struct {
	work                chan guests.Event
	remote              remote.Remote
	actionLogEnabled    bool
	synchronousForTests bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewLogger(
	ctx context.Context,
	r remote.Remote,
	actionLogEnabled bool,
	synchronousForTests bool,
) *Logger {
	logger := &Logger{
		work:                make(chan guests.Event, workQueueMaxLength),
		remote:              r,
		actionLogEnabled:    actionLogEnabled && r != nil,
		synchronousForTests: synchronousForTests,
		done:                make(chan struct{}),
	}
	go logger.startWorker(context.WithoutCancel(ctx))
	return logger
}

// Notify queues e. Reloads from the remote aren't changes, so they aren't
// recorded.
func (l *Logger) Notify(e guests.Event) {
	if !l.actionLogEnabled || e.Kind == guests.EventGuestsLoaded {
		return
	}
	if l.synchronousForTests {
		l.writeRow(context.Background(), e)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.work <- e:
	default:
		slog.Error("Action log queue is full, dropping event", "kind", e.Kind, "guest", e.GuestID)
	}
}

// Close stops taking events and waits for the queued ones to be written.
func (l *Logger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.work)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Logger) startWorker(ctx context.Context) {
	defer close(l.done)
	for e := range l.work {
		l.writeRow(ctx, e)
	}
	slog.Info("actionlog.Logger worker finished")
}

func (l *Logger) writeRow(ctx context.Context, e guests.Event) {
	ctx, cancel := context.WithTimeout(ctx, insertDeadline)
	defer cancel()
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	row := remote.Row{
		"kind":       string(e.Kind),
		"guest_id":   nullable(e.GuestID),
		"other_id":   nullable(e.Other),
		"batch_size": e.Count,
		"created_at": at.UTC(),
	}
	if _, err := l.remote.Insert(ctx, Table, []remote.Row{row}); err != nil {
		slog.Error("failed to add action log to remote", "kind", e.Kind, "error", err)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
