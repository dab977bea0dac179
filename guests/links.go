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
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/remote"
	"slices"
)

// LinkGuests records that a and b may act for each other. Both directions are
// written locally; the remote gets one row and is expected to mirror it. A
// failed remote insert takes both local directions back out.
func (s *Store) LinkGuests(ctx context.Context, a, b string) error {
	if a == b {
		return validationError("A guest cannot be linked to themselves.")
	}
	now := s.now()

	s.mu.Lock()
	var names [2]string
	for i, id := range []string{a, b} {
		j := s.guestIndexLocked(id)
		if j < 0 {
			s.mu.Unlock()
			return notFoundError("Guest %v was not found.", id)
		}
		names[i] = s.guests[j].DisplayName()
	}
	if s.linkedLocked(a, b) {
		s.mu.Unlock()
		return duplicateError("%v and %v are already linked.", names[0], names[1])
	}
	for i, id := range []string{a, b} {
		if len(s.neighborsLocked(id)) >= MaxLinkedGuests {
			s.mu.Unlock()
			return validationError("%v already has the maximum of %d linked guests.", names[i], MaxLinkedGuests)
		}
	}
	forward := ProxyLink{GuestID: a, ProxyID: b, CreatedAt: now}
	s.links = append(s.links, forward, ProxyLink{GuestID: b, ProxyID: a, CreatedAt: now})
	s.mu.Unlock()

	if s.remote != nil && remoteBacked(a) && remoteBacked(b) {
		rows, err := s.remote.Insert(ctx, ProxiesTable, []remote.Row{proxyToRow(a, b, now)})
		if err == nil && len(rows) == 0 {
			err = errors.New("insert returned no rows")
		}
		if err != nil {
			s.mu.Lock()
			s.links = slices.DeleteFunc(s.links, func(l ProxyLink) bool { return isPair(l, a, b) })
			s.mu.Unlock()
			logRemoteFailure("Failed to link guests", err, "guestId", a, "proxyId", b)
			return remoteWriteError("Could not link the guests. Please try again.", fmt.Errorf("[Insert]: %w", err))
		}
		saved := proxyFromRow(rows[0])
		s.mu.Lock()
		for i, l := range s.links {
			if l.GuestID == a && l.ProxyID == b && l.ID == "" {
				s.links[i].ID = saved.ID
				if !saved.CreatedAt.IsZero() {
					s.links[i].CreatedAt = saved.CreatedAt
				}
				break
			}
		}
		s.mu.Unlock()
	}

	s.notify(Event{Kind: EventLinkAdded, GuestID: a, Other: b})
	return nil
}

// UnlinkGuests removes the link between a and b in both directions. The remote
// gets one delete, by the id of whichever direction it holds; if that fails,
// both local directions are put back.
func (s *Store) UnlinkGuests(ctx context.Context, a, b string) error {
	s.mu.Lock()
	if !s.linkedLocked(a, b) {
		s.mu.Unlock()
		return notFoundError("Those guests are not linked.")
	}
	var removed []ProxyLink
	s.links = slices.DeleteFunc(s.links, func(l ProxyLink) bool {
		if isPair(l, a, b) {
			removed = append(removed, l)
			return true
		}
		return false
	})
	s.mu.Unlock()

	if s.remote != nil {
		var remoteID string
		for _, l := range removed {
			if remoteBacked(l.ID) {
				remoteID = l.ID
				break
			}
		}
		if remoteID != "" {
			if err := s.remote.Delete(ctx, ProxiesTable, "id", remoteID); err != nil {
				s.mu.Lock()
				s.links = append(s.links, mirrorLinks(removed)...)
				s.mu.Unlock()
				logRemoteFailure("Failed to unlink guests", err, "guestId", a, "proxyId", b)
				return remoteWriteError("Could not unlink the guests. Please try again.", fmt.Errorf("[Delete]: %w", err))
			}
		}
	}

	s.notify(Event{Kind: EventLinkRemoved, GuestID: a, Other: b})
	return nil
}

// GetLinkedGuests returns the guests linked to id.
func (s *Store) GetLinkedGuests(id string) []Guest {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Guest
	for _, n := range s.neighborsLocked(id) {
		if i := s.guestIndexLocked(n); i >= 0 {
			out = append(out, s.guests[i].derived(now))
		}
	}
	return out
}

func (s *Store) GetLinkedGuestsCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.neighborsLocked(id))
}

// Links returns every directed link row.
func (s *Store) Links() []ProxyLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.links)
}

// neighborsLocked lists the distinct guests linked to id, in either direction.
func (s *Store) neighborsLocked(id string) []string {
	var out []string
	for _, l := range s.links {
		var other string
		switch id {
		case l.GuestID:
			other = l.ProxyID
		case l.ProxyID:
			other = l.GuestID
		default:
			continue
		}
		if !slices.Contains(out, other) {
			out = append(out, other)
		}
	}
	return out
}

func (s *Store) linkedLocked(a, b string) bool {
	return slices.ContainsFunc(s.links, func(l ProxyLink) bool { return isPair(l, a, b) })
}

func isPair(l ProxyLink, a, b string) bool {
	return (l.GuestID == a && l.ProxyID == b) || (l.GuestID == b && l.ProxyID == a)
}
