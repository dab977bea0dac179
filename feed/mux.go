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

// Package feed is the read-only HTTP surface over the guest registry: guest
// listing and search, a server-sent change feed and Prometheus metrics.
package feed

import (
	"context"
	"fmt"
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"
)

// Registry is the part of guests.Store the feed reads from.
type Registry interface {
	Guests() []guests.Guest
	Guest(id string) (guests.Guest, bool)
	GuestByCode(code string) (guests.Guest, bool)
	SearchGuests(ctx context.Context, query string) ([]guests.Guest, error)
	GetWarningsForGuest(guestID string) []guests.Warning
	GetLinkedGuests(id string) []guests.Guest
}

// AddToMux registers the feed routes. The metrics registry may be nil, in
// which case /metrics is not served and requests are not counted.
func AddToMux(
	mux *http.ServeMux,
	reg Registry,
	es *Events,
	cfg conf.FeedConfig,
	metrics *prometheus.Registry,
) *http.ServeMux {
	if mux == nil {
		mux = http.NewServeMux()
	}

	common := []Adapter{
		RecoverFromPanic(),
		LogRequest(),
		LimitRequestBytes(cfg.MaxRequestBytes),
	}
	if metrics != nil {
		requests := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guestdesk",
			Subsystem: "feed",
			Name:      "requests_total",
			Help:      "HTTP requests served by the feed, by route and status code.",
		}, []string{"route", "code"})
		if err := metrics.Register(requests); err != nil {
			slog.Error("Failed to register feed request counter", "err", err)
		} else {
			common = append([]Adapter{CountRequests(requests)}, common...)
		}
	}

	mux.Handle("GET /api/guests",
		Adapt(GetGuests{reg}, common...),
	)

	mux.Handle("GET /api/guests/{id}",
		Adapt(GetGuest{reg}, common...),
	)

	mux.Handle("GET /api/guests/{id}/warnings",
		Adapt(GetGuestWarnings{reg}, common...),
	)

	mux.Handle("GET /api/guests/{id}/linked",
		Adapt(GetLinkedGuests{reg}, common...),
	)

	if es != nil {
		mux.Handle("GET /api/eventsource",
			Adapt(es.Server.Handler(EventSourceChannel), common...),
		)
	}

	if metrics != nil {
		mux.Handle("GET /metrics",
			promhttp.HandlerFor(metrics, promhttp.HandlerOpts{Registry: metrics}),
		)
	}

	mux.HandleFunc("GET /ping",
		func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "ack", http.StatusOK)
		},
	)

	mux.HandleFunc("GET /api/debug/buildinfo",
		func(w http.ResponseWriter, req *http.Request) {
			bi := buildInfo()
			w.Header().Set("Cache-Control", "no-cache")
			http.Error(w, bi.String(), http.StatusOK)
		},
	)

	return mux
}

var buildInfo = sync.OnceValue[debug.BuildInfo](func() debug.BuildInfo {
	bi, ok := debug.ReadBuildInfo()
	if ok {
		return *bi
	}
	slog.Info("Build info was unavailable, so an empty placeholder will be used instead")
	return debug.BuildInfo{}
})

type Adapter func(http.Handler) http.Handler

// responseWriter captures the status code of a response. It still flushes,
// which the event stream relies on.
type responseWriter struct {
	http.ResponseWriter
	code int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.code = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func wrapWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, code: http.StatusOK}
}

func LimitRequestBytes(maxRequestBytes int64) Adapter {
	return func(next http.Handler) http.Handler {
		if maxRequestBytes <= 0 {
			return next
		}
		return http.MaxBytesHandler(next, maxRequestBytes)
	}
}

func LogRequest() Adapter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			writ := wrapWriter(w)

			next.ServeHTTP(writ, r)

			durationMS := float64(time.Since(start).Microseconds()) / 1000.0
			slog.Debug(fmt.Sprintf("Served request for: %v %v ", r.Method, r.URL.Path),
				"duration", fmt.Sprintf("%.3fms", durationMS),
				"method", r.Method,
				"code", writ.code,
				"remote-addr", r.RemoteAddr,
			)
		})
	}
}

// CountRequests counts each request by its route pattern and status code.
func CountRequests(counter *prometheus.CounterVec) Adapter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writ := wrapWriter(w)
			next.ServeHTTP(writ, r)
			counter.WithLabelValues(r.Pattern, strconv.Itoa(writ.code)).Inc()
		})
	}
}

func RecoverFromPanic() Adapter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					slog.Error("Recovered from panic", "err", err)
					debug.PrintStack()
					http.Error(w, "The server malfunctioned", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Adapt(handler http.Handler, adapters ...Adapter) http.Handler {
	for i := range adapters {
		adapter := adapters[len(adapters)-1-i] // range in reverse
		handler = adapter(handler)
	}
	return handler
}
