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
	"github.com/google/uuid"
	"github.com/hopeservices/guestdesk/lib/rand"
	"github.com/hopeservices/guestdesk/remote"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// GuestInput is a candidate guest. Either FirstName (and optionally LastName)
// or Name must be given.
type GuestInput struct {
	GuestID            string
	FirstName          string
	LastName           string
	Name               string
	PreferredName      string
	HousingStatus      string
	Age                string
	Gender             string
	Location           string
	Notes              string
	BicycleDescription string
}

// GuestPatch is a partial update. Nil fields are left alone; a non-nil pointer
// to "" sets the field to empty, which is only allowed for optional fields.
type GuestPatch struct {
	FirstName          *string
	LastName           *string
	Name               *string
	PreferredName      *string
	HousingStatus      *string
	Age                *string
	Gender             *string
	Location           *string
	Notes              *string
	BicycleDescription *string
}

func (p GuestPatch) empty() bool {
	return p == GuestPatch{}
}

type BanOptions struct {
	Until             time.Time
	Reason            string
	BannedFromBicycle bool
	BannedFromMeals   bool
	BannedFromShower  bool
	BannedFromLaundry bool
}

// AddGuest validates and registers a new guest. With a remote configured, the
// guest is inserted remotely and the returned record carries the remote
// identity; if the insert fails the guest is taken back out of the registry.
func (s *Store) AddGuest(ctx context.Context, in GuestInput) (Guest, error) {
	g, err := s.newGuest(in)
	if err != nil {
		return Guest{}, err
	}

	s.mu.Lock()
	if dup, ok := s.nameTakenLocked(g.FirstName, g.LastName, ""); ok {
		s.mu.Unlock()
		return Guest{}, duplicateError("A guest named %v already exists (%v).", dup.Name, dup.GuestID)
	}
	g.GuestID = uniqueCode(strings.TrimSpace(in.GuestID), s.takenCodesLocked(), g.CreatedAt)
	s.guests = append(s.guests, g)
	s.mu.Unlock()
	s.search.Invalidate()

	if s.remote != nil {
		rows, err := s.remote.Insert(ctx, GuestsTable, []remote.Row{guestToRow(g)})
		if err == nil && len(rows) == 0 {
			err = errors.New("insert returned no rows")
		}
		if err != nil {
			s.mu.Lock()
			s.guests = slices.DeleteFunc(s.guests, func(x Guest) bool { return x.ID == g.ID })
			s.mu.Unlock()
			s.search.Invalidate()
			logRemoteFailure("Failed to add guest", err, "guestId", g.GuestID)
			return Guest{}, remoteWriteError("Could not save the new guest. Please try again.", fmt.Errorf("[Insert]: %w", err))
		}
		saved := guestFromRow(rows[0])
		s.mu.Lock()
		i := s.guestIndexLocked(g.ID)
		if i < 0 {
			// a reload replaced the list while the insert was in flight, and
			// may or may not have picked up the new row
			i = s.guestIndexLocked(saved.ID)
		}
		if i >= 0 {
			s.guests[i] = saved
		} else {
			s.guests = append(s.guests, saved)
		}
		s.mu.Unlock()
		s.search.Invalidate()
		g = saved
	}

	s.notify(Event{Kind: EventGuestAdded, GuestID: g.ID})
	return g.derived(s.now()), nil
}

// newGuest builds a guest from input, without touching the registry.
func (s *Store) newGuest(in GuestInput) (Guest, error) {
	first, last, ok := deriveName(in.FirstName, in.LastName, in.Name)
	if !ok {
		return Guest{}, validationError("First name is required.")
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return Guest{}, validationError("Location is required.")
	}
	if strings.TrimSpace(in.Age) == "" {
		return Guest{}, validationError("Age group is required.")
	}
	if strings.TrimSpace(in.Gender) == "" {
		return Guest{}, validationError("Gender is required.")
	}
	housing, age, gender, err := classify(in.HousingStatus, in.Age, in.Gender)
	if err != nil {
		return Guest{}, err
	}
	now := s.now()
	return Guest{
		ID:                 localIDPrefix + uuid.NewString(),
		FirstName:          first,
		LastName:           last,
		Name:               fullName(first, last),
		PreferredName:      NormalizePreferredName(in.PreferredName),
		HousingStatus:      housing,
		Age:                age,
		Gender:             gender,
		Location:           location,
		Notes:              strings.TrimSpace(in.Notes),
		BicycleDescription: NormalizeBicycleDescription(in.BicycleDescription),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// classify normalizes and strictly validates the three enum fields. A blank
// housing status becomes DefaultHousing.
func classify(housingIn, ageIn, genderIn string) (HousingStatus, AgeGroup, Gender, error) {
	housing := DefaultHousing
	if strings.TrimSpace(housingIn) != "" {
		housing = NormalizeHousingStatus(housingIn)
	}
	if !ValidHousingStatus(housing) {
		return "", "", "", validationError("Invalid housing status %q.", housingIn)
	}
	age := NormalizeAgeGroup(ageIn)
	if !ValidAgeGroup(age) {
		return "", "", "", validationError("Invalid age group %q.", ageIn)
	}
	gender := NormalizeGender(genderIn)
	if !ValidGender(gender) {
		return "", "", "", validationError("Invalid gender %q.", genderIn)
	}
	return housing, age, gender, nil
}

// uniqueCode returns want if it's free, else a fresh generated code. The chosen
// code is added to taken.
func uniqueCode(want string, taken map[string]bool, now time.Time) string {
	code := want
	for code == "" || taken[code] {
		code = rand.GuestCode(now)
	}
	taken[code] = true
	return code
}

// UpdateGuest applies a patch. The whole patch is validated before anything
// changes, so a rejected patch leaves every field as it was. With a remote
// configured, a failed remote update restores the exact pre-update record.
func (s *Store) UpdateGuest(ctx context.Context, id string, p GuestPatch) (Guest, error) {
	if p.empty() {
		return Guest{}, validationError("Nothing to update.")
	}
	for _, f := range []struct {
		v     *string
		label string
	}{{p.FirstName, "First name"}, {p.LastName, "Last name"}, {p.Name, "Name"}} {
		if f.v != nil && strings.TrimSpace(*f.v) == "" {
			return Guest{}, validationError("%v cannot be empty.", f.label)
		}
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) == "" {
		return Guest{}, validationError("Location cannot be empty.")
	}
	var housing HousingStatus
	var age AgeGroup
	var gender Gender
	if p.HousingStatus != nil {
		housing = NormalizeHousingStatus(*p.HousingStatus)
		if !ValidHousingStatus(housing) {
			return Guest{}, validationError("Invalid housing status %q.", *p.HousingStatus)
		}
	}
	if p.Age != nil {
		age = NormalizeAgeGroup(*p.Age)
		if !ValidAgeGroup(age) {
			return Guest{}, validationError("Invalid age group %q.", *p.Age)
		}
	}
	if p.Gender != nil {
		gender = NormalizeGender(*p.Gender)
		if !ValidGender(gender) {
			return Guest{}, validationError("Invalid gender %q.", *p.Gender)
		}
	}

	apply := func(g *Guest) error {
		first, last := g.FirstName, g.LastName
		switch {
		case p.FirstName != nil || p.LastName != nil:
			if p.FirstName != nil {
				first = NormalizeName(*p.FirstName)
			}
			if p.LastName != nil {
				last = NormalizeName(*p.LastName)
			}
		case p.Name != nil:
			f, rest := splitName(*p.Name)
			first = NormalizeName(f)
			if rest != "" {
				last = NormalizeName(rest)
			}
		}
		if nameKey(first, last) != nameKey(g.FirstName, g.LastName) {
			if dup, ok := s.nameTakenLocked(first, last, g.ID); ok {
				return duplicateError("A guest named %v already exists (%v).", dup.Name, dup.GuestID)
			}
		}
		g.FirstName, g.LastName, g.Name = first, last, fullName(first, last)
		if p.PreferredName != nil {
			g.PreferredName = NormalizePreferredName(*p.PreferredName)
		}
		if p.HousingStatus != nil {
			g.HousingStatus = housing
		}
		if p.Age != nil {
			g.Age = age
		}
		if p.Gender != nil {
			g.Gender = gender
		}
		if p.Location != nil {
			g.Location = strings.TrimSpace(*p.Location)
		}
		if p.Notes != nil {
			g.Notes = strings.TrimSpace(*p.Notes)
		}
		if p.BicycleDescription != nil {
			g.BicycleDescription = NormalizeBicycleDescription(*p.BicycleDescription)
		}
		return nil
	}
	toRow := func(next Guest) remote.Row {
		return guestPatchRow(p, next)
	}
	return s.mutateGuest(ctx, id, EventGuestUpdated, "Could not save changes to the guest.", apply, toRow)
}

// BanGuest bans a guest until opts.Until, which must be in the future. With no
// service flags set, the ban covers every service.
func (s *Store) BanGuest(ctx context.Context, id string, opts BanOptions) (Guest, error) {
	now := s.now()
	if opts.Until.IsZero() {
		return Guest{}, validationError("A ban end time is required.")
	}
	if !opts.Until.After(now) {
		return Guest{}, validationError("The ban end time must be in the future.")
	}
	until := opts.Until.UTC()
	at := now.UTC()
	apply := func(g *Guest) error {
		g.BannedUntil = &until
		g.BannedAt = &at
		g.BanReason = strings.TrimSpace(opts.Reason)
		g.BannedFromBicycle = opts.BannedFromBicycle
		g.BannedFromMeals = opts.BannedFromMeals
		g.BannedFromShower = opts.BannedFromShower
		g.BannedFromLaundry = opts.BannedFromLaundry
		return nil
	}
	return s.mutateGuest(ctx, id, EventGuestBanned, "Could not save the ban.", apply, banRow)
}

// ClearGuestBan lifts any ban on a guest.
func (s *Store) ClearGuestBan(ctx context.Context, id string) (Guest, error) {
	apply := func(g *Guest) error {
		g.BannedUntil = nil
		g.BannedAt = nil
		g.BanReason = ""
		g.BannedFromBicycle = false
		g.BannedFromMeals = false
		g.BannedFromShower = false
		g.BannedFromLaundry = false
		return nil
	}
	return s.mutateGuest(ctx, id, EventGuestUnbanned, "Could not lift the ban.", apply, banRow)
}

// mutateGuest is the snapshot, apply, write, restore sequence shared by every
// change to an existing guest. apply runs with the lock held and may refuse the
// change. Guests that only exist locally are never written remotely.
func (s *Store) mutateGuest(
	ctx context.Context,
	id string,
	kind EventKind,
	failMessage string,
	apply func(*Guest) error,
	toRow func(Guest) remote.Row,
) (Guest, error) {
	s.mu.Lock()
	i := s.guestIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Guest{}, notFoundError("Guest %v was not found.", id)
	}
	snapshot := s.guests[i].clone()
	next := s.guests[i].clone()
	if err := apply(&next); err != nil {
		s.mu.Unlock()
		return Guest{}, err
	}
	next.UpdatedAt = s.now()
	s.guests[i] = next
	s.mu.Unlock()
	s.search.Invalidate()

	if s.remote != nil && remoteBacked(id) {
		row, err := s.remote.Update(ctx, GuestsTable, toRow(next), "id", id)
		if err != nil {
			s.mu.Lock()
			if j := s.guestIndexLocked(id); j >= 0 {
				s.guests[j] = snapshot
			}
			s.mu.Unlock()
			s.search.Invalidate()
			logRemoteFailure(failMessage, err, "id", id)
			return Guest{}, remoteWriteError(failMessage+" Please try again.", fmt.Errorf("[Update]: %w", err))
		}
		if row != nil {
			confirmed := guestFromRow(row)
			if confirmed.ID == id {
				s.mu.Lock()
				if j := s.guestIndexLocked(id); j >= 0 {
					s.guests[j] = confirmed
				}
				s.mu.Unlock()
				s.search.Invalidate()
				next = confirmed
			}
		}
	}

	s.notify(Event{Kind: kind, GuestID: id})
	return next.derived(s.now()), nil
}

// RemoveGuest removes a guest, with its warnings and links, at once. The remote
// delete is best effort: a failure is logged and the guest stays removed.
func (s *Store) RemoveGuest(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.guestIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return notFoundError("Guest %v was not found.", id)
	}
	s.guests = slices.Delete(s.guests, i, i+1)
	s.warnings = slices.DeleteFunc(s.warnings, func(w Warning) bool { return w.GuestID == id })
	s.links = slices.DeleteFunc(s.links, func(l ProxyLink) bool { return l.GuestID == id || l.ProxyID == id })
	s.mu.Unlock()
	s.search.Invalidate()

	if s.remote != nil && remoteBacked(id) {
		if err := s.remote.Delete(ctx, GuestsTable, "id", id); err != nil {
			logRemoteFailure("Failed to remove guest remotely", err, "id", id)
		}
	}
	s.notify(Event{Kind: EventGuestRemoved, GuestID: id})
	return nil
}

func logRemoteFailure(msg string, err error, args ...any) {
	var re *remote.Error
	attrs := append([]any{"err", err}, args...)
	if errors.As(err, &re) {
		attrs = append(attrs, "code", re.Code, "message", re.Message, "details", re.Details)
	}
	slog.Error(msg, attrs...)
}
