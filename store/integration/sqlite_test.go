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

package integration_test

import (
	_ "embed"
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/hopeservices/guestdesk/remote"
	"github.com/hopeservices/guestdesk/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
	"time"
)

//go:embed testdata/sqlite_01.sql
var sqliteSchema01 string

func sqliteConfig(t *testing.T) conf.RemoteStore {
	t.Helper()
	return conf.RemoteStore{
		Type:          conf.RemoteStoreSQLite,
		Migrate:       true,
		MirrorProxies: true,
		PageSize:      2,
		SQLite:        conf.SQLiteStore{Path: filepath.Join(t.TempDir(), "guestdesk.db")},
	}
}

func openSQLite(t *testing.T, cfg conf.RemoteStore) remote.Remote {
	t.Helper()
	r, closeFn, err := store.Open(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return r
}

func TestSQLiteGuestLifecycle(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	cfg := sqliteConfig(t)
	r := openSQLite(t, cfg)

	s := guests.NewStore(r, guests.WithPageSize(cfg.PageSize))
	var added []guests.Guest
	for _, name := range []string{"Ann", "Bob", "Cy"} {
		g, err := s.AddGuest(ctx, guests.GuestInput{
			FirstName: name,
			LastName:  "Lite",
			Age:       "Adult 18-59",
			Gender:    "Female",
			Location:  "Downtown",
		})
		require.NoError(t, err)
		added = append(added, g)
	}
	ann, bob := added[0], added[1]

	_, err := s.UpdateGuest(ctx, ann.ID, guests.GuestPatch{Notes: ptr("likes tea")})
	require.NoError(t, err)
	_, err = s.BanGuest(ctx, bob.ID, guests.BanOptions{Until: time.Now().Add(24 * time.Hour), Reason: "fight", BannedFromMeals: true})
	require.NoError(t, err)
	_, err = s.AddGuestWarning(ctx, ann.ID, guests.WarningInput{Message: "check in with staff", Severity: 2})
	require.NoError(t, err)
	require.NoError(t, s.LinkGuests(ctx, ann.ID, bob.ID))

	// the trigger stand-in wrote both directions
	proxies, err := r.Select(ctx, "guest_proxies", remote.Query{})
	require.NoError(t, err)
	assert.Len(t, proxies, 2)

	// a second store sees everything the first one wrote
	reloaded := guests.NewStore(r, guests.WithPageSize(cfg.PageSize))
	require.NoError(t, reloaded.LoadAll(ctx))
	require.Len(t, reloaded.Guests(), 3)
	gotAnn, ok := reloaded.Guest(ann.ID)
	require.True(t, ok)
	assert.Equal(t, "likes tea", gotAnn.Notes)
	assert.Equal(t, ann.GuestID, gotAnn.GuestID)
	gotBob, _ := reloaded.Guest(bob.ID)
	assert.True(t, gotBob.IsBanned)
	assert.True(t, gotBob.IsBannedFrom(guests.ServiceMeals, time.Now()))
	assert.False(t, gotBob.IsBannedFrom(guests.ServiceShower, time.Now()))
	assert.Equal(t, "fight", gotBob.BanReason)
	warnings := reloaded.GetWarningsForGuest(ann.ID)
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].Severity)
	assert.Equal(t, 1, reloaded.GetLinkedGuestsCount(bob.ID))

	require.NoError(t, reloaded.UnlinkGuests(ctx, bob.ID, ann.ID))
	proxies, err = r.Select(ctx, "guest_proxies", remote.Query{})
	require.NoError(t, err)
	assert.Empty(t, proxies)

	require.NoError(t, reloaded.RemoveGuest(ctx, ann.ID))
	left, err := r.Select(ctx, "guest_warnings", remote.Query{})
	require.NoError(t, err)
	// the foreign key cascade took the warning with it
	assert.Empty(t, left)
}

func TestSQLiteImport(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	r := openSQLite(t, sqliteConfig(t))
	s := guests.NewStore(r, guests.WithInsertChunkSize(2), guests.WithLookupChunkSize(2))

	rows := []guests.ImportRow{
		{GuestID: "GONE", FirstName: "Ann", LastName: "Lite", Age: "adult", Gender: "f", Location: "Park"},
		{GuestID: "GTWO", FullName: "Bob Lite", Age: "senior", Gender: "m"},
		{FirstName: "Cy", LastName: "Lite", Age: "child", Gender: "nb", HousingStatus: "van"},
	}
	res, err := s.ImportGuests(ctx, rows)
	require.NoError(t, err)
	assert.Len(t, res.Imported, 3)

	rows[1].Notes = "second pass"
	res, err = guests.NewStore(r).ImportGuests(ctx, rows[:2])
	require.NoError(t, err)
	assert.Len(t, res.Imported, 2)

	stored, err := r.Select(ctx, "guests", remote.Query{OrderBy: "external_id", Ascending: true})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	byCode := map[string]remote.Row{}
	for _, row := range stored {
		byCode[row["external_id"].(string)] = row
	}
	assert.Equal(t, "second pass", byCode["GTWO"]["notes"])
	assert.Equal(t, "Unknown", byCode["GTWO"]["location"])
}

func TestSQLiteRejectedValuesRollBack(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	r := openSQLite(t, sqliteConfig(t))

	_, err := r.Insert(ctx, "guests", []remote.Row{
		{"external_id": "GA", "first_name": "A", "last_name": "B", "full_name": "A B", "age_group": "Adult 18-59",
			"gender": "Male", "location": "x", "created_at": time.Now(), "updated_at": time.Now()},
		{"external_id": "GB", "first_name": "C", "last_name": "D", "full_name": "C D", "age_group": "Ancient",
			"gender": "Male", "location": "x", "created_at": time.Now(), "updated_at": time.Now()},
	})
	assert.Equal(t, remote.CodeCheckViolation, remote.CodeOf(err))
	stored, err := r.Select(ctx, "guests", remote.Query{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSQLiteMigrateFromVersion1(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	cfg := sqliteConfig(t)
	cfg.Migrate = false

	db, _, err := store.SqlDB(ctx, cfg)
	require.NoError(t, err)
	defer shut(db)
	require.NoError(t, runScript(ctx, db, sqliteSchema01))
	require.NoError(t, store.Migrate(ctx, db, store.DialectSQLite))
	require.NoError(t, store.Migrate(ctx, db, store.DialectSQLite))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "select VERSION from SCHEMA_INFO").Scan(&version))
	assert.Equal(t, 3, version)
	var events int
	require.NoError(t, db.QueryRowContext(ctx, "select count(*) from guest_events").Scan(&events))
	assert.Zero(t, events)

	rows, err := db.QueryContext(ctx, "select name from pragma_table_info('guests')")
	require.NoError(t, err)
	defer shut(rows)
	var cols []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	assert.Subset(t, cols, []string{"banned_from_bicycle", "banned_from_meals", "banned_from_shower", "banned_from_laundry"})
}

func ptr[T any](v T) *T {
	return &v
}
