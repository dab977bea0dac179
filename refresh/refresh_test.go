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

package refresh_test

import (
	"context"
	"errors"
	"github.com/hopeservices/guestdesk/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

type countingLoader struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (l *countingLoader) LoadAll(ctx context.Context) error {
	l.calls.Add(1)
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.err
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	t.Parallel()
	_, err := refresh.New("every so often", time.UTC, &countingLoader{})
	require.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	loader := &countingLoader{}
	s, err := refresh.New("*/5 * * * *", time.UTC, loader)
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(t.Context()))
	last, runs, lastErr := s.Status()
	assert.Equal(t, 1, runs)
	assert.False(t, last.IsZero())
	require.NoError(t, lastErr)

	loader.err = errors.New("remote is down")
	err = s.RunOnce(t.Context())
	require.ErrorIs(t, err, loader.err)
	_, runs, lastErr = s.Status()
	assert.Equal(t, 2, runs)
	require.ErrorIs(t, lastErr, loader.err)
}

func TestRunOnce_Timeout(t *testing.T) {
	t.Parallel()
	loader := &countingLoader{block: make(chan struct{})}
	s, err := refresh.New("@hourly", time.UTC, loader, refresh.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	err = s.RunOnce(t.Context())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartRunsOnSchedule(t *testing.T) {
	t.Parallel()
	loader := &countingLoader{}
	s, err := refresh.New("@every 1s", time.UTC, loader)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	assert.False(t, s.Next().IsZero())
	require.Eventually(t, func() bool {
		return loader.calls.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	stopped := loader.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, stopped, loader.calls.Load())
}
