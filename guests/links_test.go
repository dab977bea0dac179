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

package guests_test

import (
	"errors"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func addGuests(t *testing.T, s *guests.Store, names ...string) []guests.Guest {
	t.Helper()
	var out []guests.Guest
	for _, n := range names {
		g, err := s.AddGuest(t.Context(), input(n, "Tester"))
		require.NoError(t, err)
		out = append(out, g)
	}
	return out
}

func linkedIDs(gs []guests.Guest) []string {
	var ids []string
	for _, g := range gs {
		ids = append(ids, g.ID)
	}
	return ids
}

func TestLinkGuests_Symmetric(t *testing.T) {
	t.Parallel()
	s := localStore(t)
	ctx := t.Context()
	g := addGuests(t, s, "Ann", "Bob")
	a, b := g[0].ID, g[1].ID

	require.NoError(t, s.LinkGuests(ctx, a, b))
	assert.Contains(t, linkedIDs(s.GetLinkedGuests(a)), b)
	assert.Contains(t, linkedIDs(s.GetLinkedGuests(b)), a)
	assert.Equal(t, 1, s.GetLinkedGuestsCount(a))
	assert.Len(t, s.Links(), 2)

	require.ErrorIs(t, s.LinkGuests(ctx, b, a), guests.ErrDuplicate)
	require.ErrorIs(t, s.LinkGuests(ctx, a, a), guests.ErrValidation)
	require.ErrorIs(t, s.LinkGuests(ctx, a, "missing"), guests.ErrNotFound)

	require.NoError(t, s.UnlinkGuests(ctx, b, a))
	assert.NotContains(t, linkedIDs(s.GetLinkedGuests(a)), b)
	assert.NotContains(t, linkedIDs(s.GetLinkedGuests(b)), a)
	assert.Empty(t, s.Links())

	require.ErrorIs(t, s.UnlinkGuests(ctx, a, b), guests.ErrNotFound)
}

func TestLinkGuests_Cap(t *testing.T) {
	t.Parallel()
	s := localStore(t)
	ctx := t.Context()
	g := addGuests(t, s, "Hub", "One", "Two", "Three", "Four")

	for _, other := range g[1:4] {
		require.NoError(t, s.LinkGuests(ctx, g[0].ID, other.ID))
	}
	assert.Equal(t, 3, s.GetLinkedGuestsCount(g[0].ID))

	err := s.LinkGuests(ctx, g[0].ID, g[4].ID)
	require.ErrorIs(t, err, guests.ErrValidation)
	assert.Contains(t, guests.UserMessage(err), "Hub Tester")
	assert.Contains(t, guests.UserMessage(err), "3")

	// the cap applies from either side
	err = s.LinkGuests(ctx, g[4].ID, g[0].ID)
	require.Error(t, err)
	assert.Contains(t, guests.UserMessage(err), "Hub Tester")
	assert.Zero(t, s.GetLinkedGuestsCount(g[4].ID))
}

func TestLinkGuests_RemoteSingleDirection(t *testing.T) {
	t.Parallel()
	s, fake := remoteStore(t)
	fake.MirrorProxies = true
	ctx := t.Context()
	g := addGuests(t, s, "Ann", "Bob")
	a, b := g[0].ID, g[1].ID

	require.NoError(t, s.LinkGuests(ctx, a, b))
	inserts := fake.Calls("insert", "guest_proxies")
	require.Len(t, inserts, 1)
	require.Len(t, inserts[0].Rows, 1)
	assert.Equal(t, a, inserts[0].Rows[0]["guest_id"])
	assert.Equal(t, b, inserts[0].Rows[0]["proxy_id"])
	// the trigger stand-in wrote the mirror
	assert.Len(t, fake.Rows("guest_proxies"), 2)

	require.NoError(t, s.UnlinkGuests(ctx, a, b))
	deletes := fake.Calls("delete", "guest_proxies")
	require.Len(t, deletes, 1)
	assert.Empty(t, fake.Rows("guest_proxies"))
}

func TestLinkGuests_RemoteFailureRollsBack(t *testing.T) {
	t.Parallel()
	s, fake := remoteStore(t)
	ctx := t.Context()
	g := addGuests(t, s, "Ann", "Bob")
	a, b := g[0].ID, g[1].ID

	fake.FailOp("insert", "guest_proxies", errors.New("nope"))
	require.ErrorIs(t, s.LinkGuests(ctx, a, b), guests.ErrRemoteWrite)
	assert.Zero(t, s.GetLinkedGuestsCount(a))
	assert.Zero(t, s.GetLinkedGuestsCount(b))

	fake.FailWith(nil)
	require.NoError(t, s.LinkGuests(ctx, a, b))

	fake.FailOp("delete", "guest_proxies", errors.New("nope"))
	require.ErrorIs(t, s.UnlinkGuests(ctx, a, b), guests.ErrRemoteWrite)
	assert.Contains(t, linkedIDs(s.GetLinkedGuests(a)), b)
	assert.Contains(t, linkedIDs(s.GetLinkedGuests(b)), a)
	assert.Len(t, s.Links(), 2)
}

func TestLoadLinks_MirrorsOneWayRows(t *testing.T) {
	t.Parallel()
	s, fake := remoteStore(t)
	ctx := t.Context()
	fake.Seed("guests",
		map[string]any{"id": "g1", "external_id": "GA", "first_name": "Ann", "last_name": "Lee"},
		map[string]any{"id": "g2", "external_id": "GB", "first_name": "Bob", "last_name": "Ray"},
	)
	fake.Seed("guest_proxies", map[string]any{"id": "p1", "guest_id": "g1", "proxy_id": "g2"})

	require.NoError(t, s.LoadAll(ctx))
	assert.Equal(t, []string{"g2"}, linkedIDs(s.GetLinkedGuests("g1")))
	assert.Equal(t, []string{"g1"}, linkedIDs(s.GetLinkedGuests("g2")))

	// unlinking from the mirrored side deletes the remote row by its id
	require.NoError(t, s.UnlinkGuests(ctx, "g2", "g1"))
	deletes := fake.Calls("delete", "guest_proxies")
	require.Len(t, deletes, 1)
	assert.Equal(t, "p1", deletes[0].Match)
}
