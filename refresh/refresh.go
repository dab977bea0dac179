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

// Package refresh reloads the guest registry from the remote store on a cron
// schedule, so that changes made by other desks show up without a restart.
package refresh

import (
	"context"
	"fmt"
	"github.com/robfig/cron/v3"
	"log/slog"
	"sync"
	"time"
)

// Loader is satisfied by guests.Store.
type Loader interface {
	LoadAll(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	loader  Loader
	timeout time.Duration

	mu       sync.Mutex
	lastRun  time.Time
	lastErr  error
	runCount int
}

type Option func(*Scheduler)

// WithTimeout bounds each reload. The default is one minute.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// New creates a Scheduler that reloads on a standard five-field cron
// schedule, evaluated in loc. A reload that is still running when the next
// one is due causes that next one to be skipped.
func New(schedule string, loc *time.Location, loader Loader, opts ...Option) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		loader:  loader,
		timeout: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("[AddFunc]: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Registry refresh scheduled", "next", s.Next())
}

// Stop halts the schedule and waits for a running reload to finish, or for
// ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next is when the next reload is due, or zero if the schedule isn't running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce reloads the registry right away.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	err := s.loader.LoadAll(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.runCount++
	s.mu.Unlock()

	if err != nil {
		slog.Error("Registry refresh failed", "durationish", time.Since(start).Round(time.Millisecond), "err", err)
		return fmt.Errorf("[LoadAll]: %w", err)
	}
	slog.Info("Registry refreshed", "durationish", time.Since(start).Round(time.Millisecond))
	return nil
}

// Status is the outcome of the most recent reload.
func (s *Scheduler) Status() (lastRun time.Time, runs int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.runCount, s.lastErr
}

func (s *Scheduler) run() {
	_ = s.RunOnce(context.Background())
}

// cronLogger sends the cron library's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
