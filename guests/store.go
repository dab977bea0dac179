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
	"github.com/hopeservices/guestdesk/lib/cache"
	"github.com/hopeservices/guestdesk/remote"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const (
	DefaultLookupChunkSize = 100
	DefaultInsertChunkSize = 100
)

// Store is the guest registry, warning ledger and linked-guest graph. All three
// collections are owned by the Store and only change through its methods.
//
// The mutex guards the collections and is only held while they are read or
// changed in memory. Remote calls happen outside the lock, so several can be
// in flight at once. Two concurrent mutations of the same guest end up in
// whichever state the last remote completion leaves behind; callers that need
// strict ordering for a guest must serialize those calls themselves.
type Store struct {
	remote   remote.Remote
	now      func() time.Time
	notifier Notifier

	pageSize        int
	lookupChunkSize int
	insertChunkSize int
	searchTTL       time.Duration

	mu       sync.Mutex
	guests   []Guest
	warnings []Warning
	links    []ProxyLink

	search *cache.InMemory[searchIndex]
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithPageSize(n int) Option {
	return func(s *Store) {
		s.pageSize = n
	}
}

// WithLookupChunkSize bounds the number of values in one import existence check.
func WithLookupChunkSize(n int) Option {
	return func(s *Store) {
		s.lookupChunkSize = n
	}
}

// WithInsertChunkSize bounds the number of rows in one import insert.
func WithInsertChunkSize(n int) Option {
	return func(s *Store) {
		s.insertChunkSize = n
	}
}

// WithSearchTTL makes the search index expire on its own after ttl, on top of
// being dropped on every change.
func WithSearchTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.searchTTL = ttl
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// NewStore creates an empty Store. With a nil remote, the Store runs in local
// mode: every change is kept in memory only and nothing is ever loaded.
func NewStore(r remote.Remote, opts ...Option) *Store {
	s := &Store{
		remote:          r,
		now:             time.Now,
		pageSize:        remote.DefaultPageSize,
		lookupChunkSize: DefaultLookupChunkSize,
		insertChunkSize: DefaultInsertChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pageSize <= 0 {
		s.pageSize = remote.DefaultPageSize
	}
	if s.lookupChunkSize <= 0 {
		s.lookupChunkSize = DefaultLookupChunkSize
	}
	if s.insertChunkSize <= 0 {
		s.insertChunkSize = DefaultInsertChunkSize
	}
	s.search = cache.New(s.searchTTL, s.buildSearchIndex)
	return s
}

// Remote reports whether the Store writes through to a remote store.
func (s *Store) Remote() bool {
	return s.remote != nil
}

// Guests returns a copy of every guest, in registry order.
func (s *Store) Guests() []Guest {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Guest, 0, len(s.guests))
	for _, g := range s.guests {
		out = append(out, g.derived(now))
	}
	return out
}

func (s *Store) Guest(id string) (Guest, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.guestIndexLocked(id)
	if i < 0 {
		return Guest{}, false
	}
	return s.guests[i].derived(now), true
}

// GuestByCode finds a guest by external code.
func (s *Store) GuestByCode(code string) (Guest, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.guests {
		if g.GuestID == code {
			return g.derived(now), true
		}
	}
	return Guest{}, false
}

// LoadGuests replaces the registry with a full read of the remote guests table.
// On failure the registry is left as it was; the error is logged and returned.
func (s *Store) LoadGuests(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	loaded, err := remote.FetchAll(ctx, s.remote, remote.FetchOptions[Guest]{
		Table:     GuestsTable,
		Columns:   guestColumns,
		PageSize:  s.pageSize,
		OrderBy:   "created_at",
		Ascending: true,
		Map:       guestFromRow,
		OnPage: func(page []Guest, info remote.PageInfo) {
			slog.Debug("Loaded guest page", "page", info.Page, "offset", info.Offset, "rows", len(page))
		},
	})
	if err != nil {
		slog.Error("Failed to load guests", "err", err)
		return fmt.Errorf("[FetchAll]: %w", err)
	}
	s.mu.Lock()
	s.guests = loaded
	s.mu.Unlock()
	s.search.Invalidate()
	slog.Info("Loaded guests", "count", len(loaded))
	s.notify(Event{Kind: EventGuestsLoaded, Count: len(loaded)})
	return nil
}

// LoadWarnings replaces the warning ledger, most recent first.
func (s *Store) LoadWarnings(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	loaded, err := remote.FetchAll(ctx, s.remote, remote.FetchOptions[Warning]{
		Table:     WarningsTable,
		Columns:   warningColumns,
		PageSize:  s.pageSize,
		OrderBy:   "created_at",
		Ascending: false,
		Map:       warningFromRow,
	})
	if err != nil {
		slog.Error("Failed to load guest warnings", "err", err)
		return fmt.Errorf("[FetchAll]: %w", err)
	}
	s.mu.Lock()
	s.warnings = loaded
	s.mu.Unlock()
	slog.Info("Loaded guest warnings", "count", len(loaded))
	return nil
}

// LoadLinks replaces the linked-guest graph. Relations that the remote holds in
// one direction only get a local mirror.
func (s *Store) LoadLinks(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	loaded, err := remote.FetchAll(ctx, s.remote, remote.FetchOptions[ProxyLink]{
		Table:     ProxiesTable,
		Columns:   proxyColumns,
		PageSize:  s.pageSize,
		OrderBy:   "created_at",
		Ascending: true,
		Map:       proxyFromRow,
	})
	if err != nil {
		slog.Error("Failed to load linked guests", "err", err)
		return fmt.Errorf("[FetchAll]: %w", err)
	}
	links := mirrorLinks(loaded)
	s.mu.Lock()
	s.links = links
	s.mu.Unlock()
	slog.Info("Loaded linked guests", "rows", len(loaded), "directions", len(links))
	return nil
}

// LoadAll hydrates guests, warnings and links concurrently. Each collection is
// replaced only if its own load succeeds.
func (s *Store) LoadAll(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.LoadGuests(groupCtx) })
	group.Go(func() error { return s.LoadWarnings(groupCtx) })
	group.Go(func() error { return s.LoadLinks(groupCtx) })
	if err := group.Wait(); err != nil {
		return fmt.Errorf("[LoadAll]: %w", err)
	}
	return nil
}

func mirrorLinks(rows []ProxyLink) []ProxyLink {
	type pair struct{ a, b string }
	seen := make(map[pair]bool, len(rows)*2)
	out := make([]ProxyLink, 0, len(rows)*2)
	for _, r := range rows {
		if r.GuestID == "" || r.ProxyID == "" || seen[pair{r.GuestID, r.ProxyID}] {
			continue
		}
		seen[pair{r.GuestID, r.ProxyID}] = true
		out = append(out, r)
	}
	for _, r := range slices.Clone(out) {
		if !seen[pair{r.ProxyID, r.GuestID}] {
			seen[pair{r.ProxyID, r.GuestID}] = true
			out = append(out, ProxyLink{GuestID: r.ProxyID, ProxyID: r.GuestID, CreatedAt: r.CreatedAt})
		}
	}
	return out
}

func (s *Store) guestIndexLocked(id string) int {
	return slices.IndexFunc(s.guests, func(g Guest) bool { return g.ID == id })
}

// nameTakenLocked returns the guest other than exceptID that already uses the
// case-insensitive name pair, if any.
func (s *Store) nameTakenLocked(first, last, exceptID string) (Guest, bool) {
	key := nameKey(first, last)
	for _, g := range s.guests {
		if g.ID != exceptID && nameKey(g.FirstName, g.LastName) == key {
			return g, true
		}
	}
	return Guest{}, false
}

func (s *Store) takenCodesLocked() map[string]bool {
	taken := make(map[string]bool, len(s.guests))
	for _, g := range s.guests {
		if g.GuestID != "" {
			taken[g.GuestID] = true
		}
	}
	return taken
}

func (s *Store) notify(e Event) {
	if s.notifier == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	s.notifier.Notify(e)
}
