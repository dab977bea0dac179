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

package remote

import (
	"context"
	"errors"
	"fmt"
)

const DefaultPageSize = 1000

// Since narrows a fetch to rows whose Column is at least Value.
type Since struct {
	Column string
	Value  any
}

type PageInfo struct {
	Page   int
	Offset int
}

// FetchOptions describes a paginated read. Map is required; the other fields
// fall back to sensible defaults.
type FetchOptions[T any] struct {
	Table     string
	Columns   []string
	PageSize int
	OrderBy  string
	// ThenBy is the tie-breaker for OrderBy. It defaults to "id", so rows
	// sharing a timestamp still come back in one fixed order across pages.
	ThenBy    string
	Ascending bool
	Filters   []Filter
	Since     *Since
	// MaxPages stops the fetch after that many pages. Zero means no cap.
	MaxPages int
	Map      func(Row) T
	// OnPage, if set, is called with each mapped page as it arrives.
	OnPage func(mapped []T, info PageInfo)
}

// FetchAll reads every matching row of a table in fixed-size windows until a
// short page signals exhaustion or MaxPages is reached. Any page error aborts
// the whole fetch, and no partial result is returned.
func FetchAll[T any](ctx context.Context, r Remote, opts FetchOptions[T]) ([]T, error) {
	if r == nil {
		return nil, errors.New("no remote configured")
	}
	if opts.Table == "" {
		return nil, errors.New("table is required")
	}
	if opts.Map == nil {
		return nil, errors.New("row mapper is required")
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	thenBy := opts.ThenBy
	if thenBy == "" {
		thenBy = "id"
	}
	if thenBy == orderBy {
		thenBy = ""
	}
	filters := append([]Filter{}, opts.Filters...)
	if opts.Since != nil && opts.Since.Column != "" {
		filters = append(filters, Gte(opts.Since.Column, opts.Since.Value))
	}

	var all []T
	for page := 0; opts.MaxPages <= 0 || page < opts.MaxPages; page++ {
		offset := page * pageSize
		rows, err := r.Select(ctx, opts.Table, Query{
			Columns:   opts.Columns,
			OrderBy:   orderBy,
			ThenBy:    thenBy,
			Ascending: opts.Ascending,
			Filters:   filters,
			Range:     &Range{From: offset, To: offset + pageSize - 1},
		})
		if err != nil {
			return nil, fmt.Errorf("[Select] %v page %v: %w", opts.Table, page, err)
		}
		mapped := make([]T, 0, len(rows))
		for _, row := range rows {
			mapped = append(mapped, opts.Map(row))
		}
		if opts.OnPage != nil {
			opts.OnPage(mapped, PageInfo{Page: page, Offset: offset})
		}
		all = append(all, mapped...)
		if len(rows) < pageSize {
			break
		}
	}
	return all, nil
}
