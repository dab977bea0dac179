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

package guests

import (
	"context"
	"fmt"
	"strings"
)

type searchEntry struct {
	text  string
	guest Guest
}

type searchIndex struct {
	entries []searchEntry
}

func (s *Store) buildSearchIndex(context.Context) (searchIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := searchIndex{entries: make([]searchEntry, 0, len(s.guests))}
	for _, g := range s.guests {
		text := strings.ToLower(strings.Join([]string{g.Name, g.PreferredName, g.GuestID, g.Location}, " "))
		idx.entries = append(idx.entries, searchEntry{text: text, guest: g.clone()})
	}
	return idx, nil
}

// SearchGuests returns guests whose name, preferred name, code or location
// contain every word of query, case-insensitively. An empty query matches
// every guest.
func (s *Store) SearchGuests(ctx context.Context, query string) ([]Guest, error) {
	idx, err := s.search.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("[search.Get]: %w", err)
	}
	terms := strings.Fields(strings.ToLower(query))
	now := s.now()
	var out []Guest
	for _, e := range idx.entries {
		if matchesAll(e.text, terms) {
			out = append(out, e.guest.derived(now))
		}
	}
	return out, nil
}

func matchesAll(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}
