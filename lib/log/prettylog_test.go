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

package log

import (
	"bytes"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"strings"
	"testing"
)

// lines splits everything written so far into log lines, checking that each
// one is newline-terminated.
func lines(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	out := buf.String()
	if out == "" {
		return nil
	}
	require.True(t, strings.HasSuffix(out, "\n"), "unterminated line %q", out)
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}

func TestHandler_LevelsAndColors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(New(&slog.HandlerOptions{Level: slog.LevelDebug}, WithDestinationWriter(&buf)))

	levels := []struct {
		level slog.Level
		color string
	}{
		{slog.LevelDebug, lightGray},
		{slog.LevelInfo, cyan},
		{slog.LevelWarn - 1, cyan},
		{slog.LevelWarn, lightYellow},
		{slog.LevelError, lightRed},
		{slog.LevelError + 1, red},
	}
	for _, l := range levels {
		logger.Log(t.Context(), l.level, "guest added")
	}
	got := lines(t, &buf)
	require.Len(t, got, len(levels))
	for i, l := range levels {
		assert.Contains(t, got[i], l.color+l.level.String()+": guest added", l.level)
	}
}

func TestHandler_EmptyAttrs(t *testing.T) {
	t.Parallel()
	var quiet, loud bytes.Buffer
	slog.New(New(nil, WithDestinationWriter(&quiet))).Info("refresh finished")
	slog.New(New(nil, WithDestinationWriter(&loud), WithOutputEmptyAttrs())).Info("refresh finished")

	q := lines(t, &quiet)
	require.Len(t, q, 1)
	assert.True(t, strings.HasSuffix(q[0], "INFO: refresh finished"+reset), q[0])

	l := lines(t, &loud)
	require.Len(t, l, 1)
	assert.Contains(t, l[0], "{}")
}

func TestHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	handler := New(nil, WithDestinationWriter(&buf))
	// empty attrs and groups change nothing
	assert.Same(t, handler, handler.WithAttrs(nil))
	assert.Same(t, handler, handler.WithGroup(""))

	logger := slog.New(handler).
		With("store", "guests").
		WithGroup("remote")
	logger.Warn("remote write failed", "table", "guests", "err", errors.New("connection refused"))
	logger.Debug("not shown")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	for _, want := range []string{
		"WARN: remote write failed",
		`"remote": {`,
		`"table": "guests"`,
		`"err": "connection refused"`,
		`"store": "guests"`,
	} {
		assert.Contains(t, got[0], want)
	}
}
