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

package feed_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/feed"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type exampleAction struct {
	output *bytes.Buffer
}

func (e exampleAction) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	fmt.Fprintln(e.output, "    in the action")
}

func namedAdapter(output *bytes.Buffer, name, indent string) feed.Adapter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(output, indent+name+" before")
			next.ServeHTTP(w, r)
			fmt.Fprintln(output, indent+name+" after")
		})
	}
}

// TestAdapt shows that the first adapter given is the outermost.
func TestAdapt(t *testing.T) {
	t.Parallel()
	b := bytes.Buffer{}
	feed.Adapt(
		exampleAction{output: &b},
		namedAdapter(&b, "first", ""),
		namedAdapter(&b, "second", "  "),
	).ServeHTTP(nil, nil)
	require.Equal(t, ""+
		"first before\n"+
		"  second before\n"+
		"    in the action\n"+
		"  second after\n"+
		"first after\n",
		b.String(),
	)
}

type fixture struct {
	store *guests.Store
	ann   guests.Guest
	bob   guests.Guest
	srv   *httptest.Server
}

func newFixture(t *testing.T, opts ...guests.Option) fixture {
	t.Helper()
	ctx := t.Context()
	s := guests.NewStore(nil, opts...)
	ann, err := s.AddGuest(ctx, guests.GuestInput{
		FirstName: "Ann", LastName: "Lee", PreferredName: "Annie",
		Age: "Adult 18-59", Gender: "Female", Location: "Downtown",
	})
	require.NoError(t, err)
	bob, err := s.AddGuest(ctx, guests.GuestInput{
		FirstName: "Bob", LastName: "Ray",
		Age: "Senior 60+", Gender: "Male", Location: "Eastside",
	})
	require.NoError(t, err)
	_, err = s.BanGuest(ctx, bob.ID, guests.BanOptions{
		Until: time.Now().Add(24 * time.Hour), Reason: "fight", BannedFromMeals: true,
	})
	require.NoError(t, err)
	_, err = s.AddGuestWarning(ctx, ann.ID, guests.WarningInput{Message: "check in with staff", Severity: 2})
	require.NoError(t, err)
	require.NoError(t, s.LinkGuests(ctx, ann.ID, bob.ID))

	mux := feed.AddToMux(nil, s, nil, conf.Default().Feed, prometheus.NewRegistry())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fixture{store: s, ann: ann, bob: bob, srv: srv}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func getGuests(t *testing.T, url string) []guests.Guest {
	t.Helper()
	resp, body := get(t, url)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out []guests.Guest
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestPing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	resp, body := get(t, f.srv.URL+"/ping")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ack\n", string(body))
}

func TestListAndSearchGuests(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	all := getGuests(t, f.srv.URL+"/api/guests")
	assert.Len(t, all, 2)

	found := getGuests(t, f.srv.URL+"/api/guests?q=annie")
	require.Len(t, found, 1)
	assert.Equal(t, f.ann.ID, found[0].ID)

	found = getGuests(t, f.srv.URL+"/api/guests?q=nobody+here")
	assert.Empty(t, found)
}

func TestListGuests_BanFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	banned := getGuests(t, f.srv.URL+"/api/guests?banned=true")
	require.Len(t, banned, 1)
	assert.Equal(t, f.bob.ID, banned[0].ID)
	assert.True(t, banned[0].IsBanned)

	fromMeals := getGuests(t, f.srv.URL+"/api/guests?banned=true&service=meals")
	assert.Len(t, fromMeals, 1)
	fromShower := getGuests(t, f.srv.URL+"/api/guests?banned=true&service=shower")
	assert.Empty(t, fromShower)
	showerOK := getGuests(t, f.srv.URL+"/api/guests?banned=false&service=shower")
	assert.Len(t, showerOK, 2)

	resp, body := get(t, f.srv.URL+"/api/guests?banned=maybe")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, feed.ApplicationProblemMediaType, resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "banned must be true or false")

	resp, _ = get(t, f.srv.URL+"/api/guests?banned=true&service=sauna")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetGuest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, key := range []string{f.ann.ID, f.ann.GuestID} {
		resp, body := get(t, f.srv.URL+"/api/guests/"+key)
		require.Equal(t, http.StatusOK, resp.StatusCode, key)
		var detail feed.GuestDetail
		require.NoError(t, json.Unmarshal(body, &detail))
		assert.Equal(t, "Ann Lee", detail.Name)
		assert.Equal(t, "Annie", detail.PreferredName)
		require.Len(t, detail.Warnings, 1)
		assert.Equal(t, "check in with staff", detail.Warnings[0].Message)
		require.Len(t, detail.LinkedGuests, 1)
		assert.Equal(t, f.bob.ID, detail.LinkedGuests[0].ID)
	}

	linked := getGuests(t, f.srv.URL+"/api/guests/"+f.bob.ID+"/linked")
	require.Len(t, linked, 1)
	assert.Equal(t, f.ann.ID, linked[0].ID)

	resp, body := get(t, f.srv.URL+"/api/guests/"+f.bob.ID+"/warnings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	resp, body = get(t, f.srv.URL+"/api/guests/nobody")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var p feed.Problem
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "Guest not found.", p.Detail)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_ = getGuests(t, f.srv.URL+"/api/guests")
	resp, body := get(t, f.srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `guestdesk_feed_requests_total{code="200",route="GET /api/guests"} 1`)
}

func TestEventSource(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	events := feed.NewEvents()
	t.Cleanup(events.Close)
	s := guests.NewStore(nil, guests.WithNotifier(events))
	srv := httptest.NewServer(feed.AddToMux(nil, s, events, conf.Default().Feed, nil))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/eventsource", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	nextEvent := func() (string, string) {
		var kind, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				kind = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && kind != "":
				return kind, data
			}
		}
		return kind, data
	}

	kind, _ := nextEvent()
	require.Equal(t, "InitialEvent", kind)

	g, err := s.AddGuest(ctx, guests.GuestInput{
		FirstName: "Cy", LastName: "Ray", Age: "Child 0-17", Gender: "Male", Location: "Park",
	})
	require.NoError(t, err)

	kind, data := nextEvent()
	require.Equal(t, string(guests.EventGuestAdded), kind)
	var e guests.Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))
	assert.Equal(t, g.ID, e.GuestID)
	assert.Equal(t, int64(1), events.LastID())
}
