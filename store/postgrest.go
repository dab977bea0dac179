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

package store

import (
	"context"
	"fmt"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hopeservices/guestdesk/lib/conv"
	"github.com/hopeservices/guestdesk/remote"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PostgREST is a remote.Remote over a PostgREST (or Supabase) HTTP API. Ids are
// assigned here, since the bundled schema gives them no default. The
// guest_proxies mirror row is expected to come from the trigger returned by
// ProxyMirrorTrigger.
type PostgREST struct {
	client *resty.Client
	newID  func() string
}

type PostgRESTOption func(*PostgREST)

// WithPostgRESTIDFunc replaces uuid.NewString as the source of new row ids.
func WithPostgRESTIDFunc(newID func() string) PostgRESTOption {
	return func(p *PostgREST) {
		p.newID = newID
	}
}

// postgrestError is the body PostgREST sends with a failed request.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func NewPostgREST(baseURL, apiKey string, timeout time.Duration, opts ...PostgRESTOption) *PostgREST {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		client.SetHeader("apikey", apiKey).SetAuthToken(apiKey)
	}
	p := &PostgREST{client: client, newID: uuid.NewString}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ remote.Remote = (*PostgREST)(nil)

func (p *PostgREST) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	params := url.Values{}
	params.Set("select", selectList(q.Columns))
	for _, f := range q.Filters {
		if !f.Op.Valid() {
			return nil, &remote.Error{Op: "select", Table: table, Message: fmt.Sprintf("invalid filter operator %q", f.Op)}
		}
		params.Add(f.Column, filterValue(f.Op, f.Value))
	}
	if q.OrderBy != "" {
		dir := "desc"
		if q.Ascending {
			dir = "asc"
		}
		order := q.OrderBy + "." + dir
		if q.ThenBy != "" {
			order += "," + q.ThenBy + "." + dir
		}
		params.Set("order", order)
	}
	req := p.request(ctx, params)
	if q.HasRange() {
		req.SetHeader("Range-Unit", "items").
			SetHeader("Range", fmt.Sprintf("%d-%d", q.Range.From, q.Range.To))
	}
	var out []remote.Row
	if err := p.do(req.SetResult(&out), http.MethodGet, "select", table); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert posts all rows in one request and returns them as stored. Rows
// without an id get a new UUID.
func (p *PostgREST) Insert(ctx context.Context, table string, rows []remote.Row) ([]remote.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	body := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		r = r.Clone()
		if conv.AsString(r["id"]) == "" {
			r["id"] = p.newID()
		}
		body = append(body, r)
	}
	var out []remote.Row
	req := p.request(ctx, nil).
		SetHeader("Prefer", "return=representation").
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out)
	if err := p.do(req, http.MethodPost, "insert", table); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgREST) Update(ctx context.Context, table string, patch remote.Row, matchColumn string, matchValue any) (remote.Row, error) {
	params := url.Values{}
	params.Set(matchColumn, filterValue(remote.OpEq, matchValue))
	var out []remote.Row
	req := p.request(ctx, params).
		SetHeader("Prefer", "return=representation").
		SetHeader("Content-Type", "application/json").
		SetBody(patch).
		SetResult(&out)
	if err := p.do(req, http.MethodPatch, "update", table); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &remote.Error{
			Op:      "update",
			Table:   table,
			Code:    remote.CodeNoRows,
			Message: fmt.Sprintf("no row with %v = %v", matchColumn, matchValue),
		}
	}
	return out[0], nil
}

func (p *PostgREST) Delete(ctx context.Context, table string, matchColumn string, matchValue any) error {
	params := url.Values{}
	params.Set(matchColumn, filterValue(remote.OpEq, matchValue))
	return p.do(p.request(ctx, params), http.MethodDelete, "delete", table)
}

func (p *PostgREST) SelectIn(ctx context.Context, table string, columns []string, matchColumn string, values []any) ([]remote.Row, error) {
	if len(values) == 0 {
		return nil, nil
	}
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quoteListValue(formatValue(v)))
	}
	params := url.Values{}
	params.Set("select", selectList(columns))
	params.Set(matchColumn, "in.("+strings.Join(quoted, ",")+")")
	var out []remote.Row
	if err := p.do(p.request(ctx, params).SetResult(&out), http.MethodGet, "select_in", table); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgREST) request(ctx context.Context, params url.Values) *resty.Request {
	req := p.client.R().SetContext(ctx).SetError(&postgrestError{})
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	return req
}

func (p *PostgREST) do(req *resty.Request, method, op, table string) error {
	resp, err := req.Execute(method, "/"+table)
	if err != nil {
		return &remote.Error{Op: op, Table: table, Err: fmt.Errorf("[Execute]: %w", err)}
	}
	if !resp.IsError() {
		return nil
	}
	out := &remote.Error{Op: op, Table: table, Message: resp.Status()}
	if pe, ok := resp.Error().(*postgrestError); ok && pe.Message != "" {
		out.Code = pe.Code
		out.Message = pe.Message
		out.Details = pe.Details
		if pe.Hint != "" {
			out.Details = strings.TrimSpace(out.Details + " " + pe.Hint)
		}
	}
	return out
}

func selectList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(columns, ",")
}

func filterValue(op remote.Op, v any) string {
	if v == nil {
		switch op {
		case remote.OpEq:
			return "is.null"
		case remote.OpNeq:
			return "not.is.null"
		}
	}
	return string(op) + "." + formatValue(v)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// quoteListValue double-quotes a value for an in.(...) list when it holds
// characters PostgREST treats as list syntax.
func quoteListValue(s string) string {
	if !strings.ContainsAny(s, `,()". `) {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
