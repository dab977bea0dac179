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

// Package guests owns the in-memory guest registry, the warning ledger and the
// linked-guest graph, and keeps them consistent with a remote store.
package guests

import (
	"strings"
	"time"
)

type HousingStatus string

const (
	MaxLinkedGuests     = 3
	MaxPreferredNameLen = 100
	MaxBicycleDescLen   = 500

	localIDPrefix = "local-"
)

const (
	HousingUnsheltered HousingStatus = "Unsheltered"
	HousingSheltered   HousingStatus = "Sheltered"
	HousingHoused      HousingStatus = "Housed"
	HousingTempShelter HousingStatus = "Temp. shelter"
	HousingRVOrVehicle HousingStatus = "RV or vehicle"

	// DefaultHousing is used when no housing status is given.
	DefaultHousing = HousingUnsheltered
)

var HousingStatuses = []HousingStatus{
	HousingUnsheltered,
	HousingSheltered,
	HousingHoused,
	HousingTempShelter,
	HousingRVOrVehicle,
}

type AgeGroup string

const (
	AgeAdult  AgeGroup = "Adult 18-59"
	AgeSenior AgeGroup = "Senior 60+"
	AgeChild  AgeGroup = "Child 0-17"
)

var AgeGroups = []AgeGroup{AgeAdult, AgeSenior, AgeChild}

type Gender string

const (
	GenderMale      Gender = "Male"
	GenderFemale    Gender = "Female"
	GenderUnknown   Gender = "Unknown"
	GenderNonBinary Gender = "Non-binary"
)

var Genders = []Gender{GenderMale, GenderFemale, GenderUnknown, GenderNonBinary}

// Service is something a ban can be scoped to.
type Service string

const (
	ServiceBicycle Service = "bicycle"
	ServiceMeals   Service = "meals"
	ServiceShower  Service = "shower"
	ServiceLaundry Service = "laundry"
)

// Guest is one person known to the registry. Guests are handed out by value;
// changing a returned Guest has no effect on the registry.
type Guest struct {
	ID                 string        `json:"id"`
	GuestID            string        `json:"guestId"`
	FirstName          string        `json:"firstName"`
	LastName           string        `json:"lastName"`
	Name               string        `json:"name"`
	PreferredName      string        `json:"preferredName"`
	HousingStatus      HousingStatus `json:"housingStatus"`
	Age                AgeGroup      `json:"age"`
	Gender             Gender        `json:"gender"`
	Location           string        `json:"location"`
	Notes              string        `json:"notes"`
	BicycleDescription string        `json:"bicycleDescription"`
	BannedUntil        *time.Time    `json:"bannedUntil"`
	BannedAt           *time.Time    `json:"bannedAt"`
	BanReason          string        `json:"banReason"`
	BannedFromBicycle  bool          `json:"bannedFromBicycle"`
	BannedFromMeals    bool          `json:"bannedFromMeals"`
	BannedFromShower   bool          `json:"bannedFromShower"`
	BannedFromLaundry  bool          `json:"bannedFromLaundry"`
	// IsBanned is derived from BannedUntil whenever a guest is read out of the
	// registry. It is never stored.
	IsBanned  bool      `json:"isBanned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName is the preferred name if there is one, else the full name.
func (g Guest) DisplayName() string {
	if g.PreferredName != "" {
		return g.PreferredName
	}
	return g.Name
}

// IsBannedFrom reports whether the guest is banned from a service at now. A ban
// with no service flags set is a blanket ban.
func (g Guest) IsBannedFrom(svc Service, now time.Time) bool {
	if !BanActive(g.BannedUntil, now) {
		return false
	}
	if !g.BannedFromBicycle && !g.BannedFromMeals && !g.BannedFromShower && !g.BannedFromLaundry {
		return true
	}
	switch svc {
	case ServiceBicycle:
		return g.BannedFromBicycle
	case ServiceMeals:
		return g.BannedFromMeals
	case ServiceShower:
		return g.BannedFromShower
	case ServiceLaundry:
		return g.BannedFromLaundry
	}
	return false
}

// clone copies the guest, including the pointed-to ban times.
func (g Guest) clone() Guest {
	g.BannedUntil = copyTime(g.BannedUntil)
	g.BannedAt = copyTime(g.BannedAt)
	return g
}

func (g Guest) derived(now time.Time) Guest {
	g = g.clone()
	g.IsBanned = BanActive(g.BannedUntil, now)
	return g
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

type Warning struct {
	ID        string    `json:"id"`
	GuestID   string    `json:"guestId"`
	Message   string    `json:"message"`
	Severity  int       `json:"severity"`
	IssuedBy  string    `json:"issuedBy"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProxyLink is one direction of a linked-guest relationship. The registry always
// holds both directions of a relationship. ID is empty for a direction that
// only exists as a local mirror.
type ProxyLink struct {
	ID        string    `json:"id"`
	GuestID   string    `json:"guestId"`
	ProxyID   string    `json:"proxyId"`
	CreatedAt time.Time `json:"createdAt"`
}

func isLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// remoteBacked reports whether id names a row that exists in the remote store.
func remoteBacked(id string) bool {
	return id != "" && !isLocalID(id)
}

func nameKey(first, last string) string {
	return strings.ToLower(strings.TrimSpace(first)) + "\x00" + strings.ToLower(strings.TrimSpace(last))
}
