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

package store_test

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/hopeservices/guestdesk/remote"
	"github.com/hopeservices/guestdesk/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type recorded struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   string
}

// postgrestServer answers every request with status and body, and records what it got.
func postgrestServer(t *testing.T, status int, body string) (*store.PostgREST, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(b),
		})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return store.NewPostgREST(srv.URL+"/rest/v1/", "anon-key", 5*time.Second), func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestPostgRESTSelect(t *testing.T) {
	t.Parallel()
	p, reqs := postgrestServer(t, http.StatusPartialContent, `[{"id":"g1","severity":2,"active":true}]`)

	rows, err := p.Select(t.Context(), "guest_warnings", remote.Query{
		Columns: []string{"id", "severity", "active"},
		OrderBy: "created_at",
		ThenBy:  "id",
		Filters: []remote.Filter{remote.Eq("guest_id", "g1"), remote.Gte("created_at", t0)},
		Range:   &remote.Range{From: 1000, To: 1999},
	})
	require.NoError(t, err)
	assert.Equal(t, []remote.Row{{"id": "g1", "severity": float64(2), "active": true}}, rows)

	got := reqs()
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, http.MethodGet, r.Method)
	assert.Equal(t, "/rest/v1/guest_warnings", r.Path)
	assert.Equal(t, []string{"id,severity,active"}, r.Query["select"])
	assert.Equal(t, []string{"eq.g1"}, r.Query["guest_id"])
	assert.Equal(t, []string{"gte.2025-06-01T12:00:00Z"}, r.Query["created_at"])
	assert.Equal(t, []string{"created_at.desc,id.desc"}, r.Query["order"])
	assert.Equal(t, "1000-1999", r.Header.Get("Range"))
	assert.Equal(t, "items", r.Header.Get("Range-Unit"))
	assert.Equal(t, "anon-key", r.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
}

func TestPostgRESTInsert(t *testing.T) {
	t.Parallel()
	p, reqs := postgrestServer(t, http.StatusCreated, `[{"id":"p1","guest_id":"a","proxy_id":"b"}]`)

	rows, err := p.Insert(t.Context(), "guest_proxies", []remote.Row{{"guest_id": "a", "proxy_id": "b"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0]["id"])

	r := reqs()[0]
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
	var sent []map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.Body), &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "a", sent[0]["guest_id"])
	assert.Equal(t, "b", sent[0]["proxy_id"])
	id, _ := sent[0]["id"].(string)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "a row posted without an id gets a UUID")
}

func TestPostgRESTInsert_AssignsMissingIDs(t *testing.T) {
	t.Parallel()
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		// echo the posted rows back, the way return=representation does
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	n := 0
	p := store.NewPostgREST(srv.URL, "", 5*time.Second, store.WithPostgRESTIDFunc(func() string {
		n++
		return "new-" + strconv.Itoa(n)
	}))

	in := []remote.Row{
		{"first_name": "Ann"},
		{"id": "kept", "first_name": "Bob"},
		{"id": "", "first_name": "Cy"},
	}
	rows, err := p.Insert(t.Context(), "guests", in)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "new-1", rows[0]["id"])
	assert.Equal(t, "kept", rows[1]["id"])
	assert.Equal(t, "new-2", rows[2]["id"])

	// the caller's rows are left alone
	assert.NotContains(t, in[0], "id")
	assert.Equal(t, "", in[2]["id"])

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, []map[string]any{
		{"id": "new-1", "first_name": "Ann"},
		{"id": "kept", "first_name": "Bob"},
		{"id": "new-2", "first_name": "Cy"},
	}, sent)
}

func TestPostgRESTUpdate_NoRows(t *testing.T) {
	t.Parallel()
	p, reqs := postgrestServer(t, http.StatusOK, `[]`)

	_, err := p.Update(t.Context(), "guests", remote.Row{"notes": "x"}, "external_id", "G1")
	assert.Equal(t, remote.CodeNoRows, remote.CodeOf(err))
	r := reqs()[0]
	assert.Equal(t, http.MethodPatch, r.Method)
	assert.Equal(t, []string{"eq.G1"}, r.Query["external_id"])
	assert.JSONEq(t, `{"notes":"x"}`, r.Body)
}

func TestPostgRESTDelete(t *testing.T) {
	t.Parallel()
	p, reqs := postgrestServer(t, http.StatusNoContent, ``)

	require.NoError(t, p.Delete(t.Context(), "guest_warnings", "id", "w1"))
	r := reqs()[0]
	assert.Equal(t, http.MethodDelete, r.Method)
	assert.Equal(t, []string{"eq.w1"}, r.Query["id"])
}

func TestPostgRESTSelectIn(t *testing.T) {
	t.Parallel()
	p, reqs := postgrestServer(t, http.StatusOK, `[{"id":"g1","external_id":"GA"}]`)

	rows, err := p.SelectIn(t.Context(), "guests", nil, "external_id", nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Empty(t, reqs())

	rows, err = p.SelectIn(t.Context(), "guests", []string{"id", "external_id"}, "external_id", []any{"GA", "G,B"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{`in.(GA,"G,B")`}, reqs()[0].Query["external_id"])
}

func TestPostgRESTErrors(t *testing.T) {
	t.Parallel()
	p, _ := postgrestServer(t, http.StatusBadRequest,
		`{"code":"22P02","message":"invalid input value for enum housing_status: \"Moon\"","details":null,"hint":null}`)

	_, err := p.Insert(t.Context(), "guests", []remote.Row{{"housing_status": "Moon"}})
	var re *remote.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remote.CodeInvalidText, re.Code)
	assert.Equal(t, "insert", re.Op)
	assert.Contains(t, re.Message, "invalid input value for enum")

	p, _ = postgrestServer(t, http.StatusNotFound, `{}`)
	_, err = p.Select(t.Context(), "nowhere", remote.Query{})
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Message, "404")
}
