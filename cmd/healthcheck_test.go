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

package cmd

import (
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/feed"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/stretchr/testify/assert"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHealthCheckSuccess(t *testing.T) {
	t.Parallel()

	// this serves the real endpoint used in the server
	ser := httptest.NewServer(feed.AddToMux(nil, guests.NewStore(nil), nil, conf.Default().Feed, nil))
	defer ser.Close()

	var out strings.Builder
	assert.Equal(t, 0, runHealthCheckInternal(t.Context(), ser.URL, time.Second, &out))
	assert.Equal(t, "OK\n", out.String())
}

func TestHealthCheckBadStatus(t *testing.T) {
	t.Parallel()

	ser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("ack"))
		}
	}))
	defer ser.Close()

	assert.Equal(t, 5, runHealthCheckInternal(t.Context(), ser.URL, time.Second, io.Discard))
}

func TestHealthCheckBadResponse(t *testing.T) {
	t.Parallel()

	ser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the server returns a 200, but not the expected text ("ack")
		w.WriteHeader(http.StatusOK)
	}))
	defer ser.Close()

	assert.Equal(t, 6, runHealthCheckInternal(t.Context(), ser.URL, time.Second, io.Discard))
}

func TestHealthCheckUnreachable(t *testing.T) {
	t.Parallel()
	ser := httptest.NewServer(http.NotFoundHandler())
	url := ser.URL
	ser.Close()

	assert.Equal(t, 4, runHealthCheckInternal(t.Context(), url, time.Second, io.Discard))
}

func TestHealthCheckTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	ser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ser.Close()
	defer close(release)

	assert.Equal(t, 4, runHealthCheckInternal(t.Context(), ser.URL, 50*time.Millisecond, io.Discard))
}
