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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

const (
	timeFormat = "15:04:05.000"

	reset       = "\033[0m"
	darkGray    = "\033[90m"
	lightGray   = "\033[37m"
	cyan        = "\033[36m"
	lightYellow = "\033[93m"
	lightRed    = "\033[91m"
	red         = "\033[31m"
)

// Handler is a slog.Handler that writes one colorized line per record, with
// the record's attributes rendered as indented JSON on the same line.
type Handler struct {
	opts            slog.HandlerOptions
	w               io.Writer
	mu              *sync.Mutex
	attrs           []slog.Attr
	groups          []string
	outputEmptyAttr bool
}

type Option func(h *Handler)

// WithDestinationWriter sets where log lines go. The default is stderr.
func WithDestinationWriter(w io.Writer) Option {
	return func(h *Handler) {
		h.w = w
	}
}

// WithOutputEmptyAttrs makes the handler print "{}" for records without attributes.
func WithOutputEmptyAttrs() Option {
	return func(h *Handler) {
		h.outputEmptyAttr = true
	}
}

// New creates a Handler. A nil opts uses the slog defaults.
func New(opts *slog.HandlerOptions, options ...Option) *Handler {
	h := &Handler{
		w:  os.Stderr,
		mu: &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// NewHandler is New with the default destination.
func NewHandler(opts *slog.HandlerOptions) *Handler {
	return New(opts)
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	// attrs belong to whichever groups are open right now
	for i := len(h.groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: h.groups[i], Value: slog.GroupValue(attrs...)}}
	}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		addAttr(fields, a)
	}
	target := fields
	for _, g := range h.groups {
		sub, ok := target[g].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			target[g] = sub
		}
		target = sub
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(target, a)
		return true
	})
	if len(fields) == 0 {
		fields = nil
	}

	var attrText []byte
	if fields != nil || h.outputEmptyAttr {
		var err error
		attrText, err = json.MarshalIndent(fields, "", "  ")
		if err != nil {
			attrText = []byte(strconv.Quote(err.Error()))
		}
		if fields == nil {
			attrText = []byte("{}")
		}
	}

	var line bytes.Buffer
	line.WriteString(darkGray)
	line.WriteString(r.Time.Format(timeFormat))
	line.WriteString(reset)
	line.WriteString(" ")
	line.WriteString(levelColor(r.Level))
	line.WriteString(r.Level.String() + ": " + r.Message)
	line.WriteString(reset)
	if attrText != nil {
		line.WriteString(" ")
		line.WriteString(darkGray)
		line.Write(attrText)
		line.WriteString(reset)
	}
	line.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line.Bytes())
	return err
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		sub, ok := m[a.Key].(map[string]any)
		if !ok {
			sub = make(map[string]any)
		}
		for _, ga := range a.Value.Group() {
			addAttr(sub, ga)
		}
		if a.Key == "" {
			for k, v := range sub {
				m[k] = v
			}
			return
		}
		m[a.Key] = sub
	default:
		v := a.Value.Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[a.Key] = v
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return lightGray
	case level < slog.LevelWarn:
		return cyan
	case level < slog.LevelError:
		return lightYellow
	case level == slog.LevelError:
		return lightRed
	default:
		return red
	}
}
