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

package feed

import (
	"encoding/json"
	"github.com/hopeservices/guestdesk/guests"
	"net/http"
	"slices"
	"strconv"
	"time"
)

type GetGuests struct {
	reg Registry
}

// ServeHTTP lists guests. With q, only guests matching every word of q are
// returned. With banned=true or banned=false, guests are filtered by whether
// a ban is in effect; adding service narrows that to bans covering it.
func (action GetGuests) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	resp, errHTTP := action.getGuests(req)
	if errHTTP != nil {
		errHTTP.From("[getGuests]").WriteResponse(w)
		return
	}
	mustWriteJSON(w, resp)
}

func (action GetGuests) getGuests(req *http.Request) ([]guests.Guest, *HTTPError) {
	query := req.URL.Query()
	var list []guests.Guest
	if q := query.Get("q"); q != "" {
		found, err := action.reg.SearchGuests(req.Context(), q)
		if err != nil {
			return nil, internalServerError("Failed to search guests", err).From("[SearchGuests]")
		}
		list = found
	} else {
		list = action.reg.Guests()
	}

	if b := query.Get("banned"); b != "" {
		want, err := strconv.ParseBool(b)
		if err != nil {
			return nil, badRequest("banned must be true or false", err).expected()
		}
		svc := guests.Service(query.Get("service"))
		if svc != "" && !slices.Contains([]guests.Service{
			guests.ServiceBicycle, guests.ServiceMeals, guests.ServiceShower, guests.ServiceLaundry,
		}, svc) {
			return nil, badRequest("Unknown service "+string(svc), nil).expected()
		}
		now := time.Now()
		list = slices.DeleteFunc(list, func(g guests.Guest) bool {
			banned := g.IsBanned
			if svc != "" {
				banned = g.IsBannedFrom(svc, now)
			}
			return banned != want
		})
	}
	if list == nil {
		list = []guests.Guest{}
	}
	return list, nil
}

// GuestDetail is a guest with its active warnings and linked guests.
type GuestDetail struct {
	guests.Guest
	Warnings     []guests.Warning `json:"warnings"`
	LinkedGuests []guests.Guest   `json:"linkedGuests"`
}

type GetGuest struct {
	reg Registry
}

func (action GetGuest) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	g, errHTTP := lookupGuest(action.reg, req)
	if errHTTP != nil {
		errHTTP.From("[lookupGuest]").WriteResponse(w)
		return
	}
	mustWriteJSON(w, GuestDetail{
		Guest:        g,
		Warnings:     orEmpty(action.reg.GetWarningsForGuest(g.ID)),
		LinkedGuests: orEmpty(action.reg.GetLinkedGuests(g.ID)),
	})
}

type GetGuestWarnings struct {
	reg Registry
}

func (action GetGuestWarnings) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	g, errHTTP := lookupGuest(action.reg, req)
	if errHTTP != nil {
		errHTTP.From("[lookupGuest]").WriteResponse(w)
		return
	}
	mustWriteJSON(w, orEmpty(action.reg.GetWarningsForGuest(g.ID)))
}

type GetLinkedGuests struct {
	reg Registry
}

func (action GetLinkedGuests) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	g, errHTTP := lookupGuest(action.reg, req)
	if errHTTP != nil {
		errHTTP.From("[lookupGuest]").WriteResponse(w)
		return
	}
	mustWriteJSON(w, orEmpty(action.reg.GetLinkedGuests(g.ID)))
}

// lookupGuest finds the guest named in the path, by registry ID first and
// then by guest code.
func lookupGuest(reg Registry, req *http.Request) (guests.Guest, *HTTPError) {
	id := req.PathValue("id")
	if id == "" {
		return guests.Guest{}, badRequest("No guest ID was provided", nil)
	}
	if g, ok := reg.Guest(id); ok {
		return g, nil
	}
	if g, ok := reg.GuestByCode(id); ok {
		return g, nil
	}
	return guests.Guest{}, fromRegistryError(&guests.Error{
		Kind:        guests.KindNotFound,
		UserMessage: "Guest not found.",
	})
}

func mustWriteJSON(w http.ResponseWriter, resp any) (success bool) {
	marshalled, err := json.Marshal(resp)
	if err != nil {
		internalServerError("Failed to marshal JSON", err).From("[Marshal]").WriteResponse(w)
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(marshalled)
	if err != nil {
		internalServerError("Failed to write JSON", err).From("[Write]").WriteResponse(w)
		return false
	}
	return true
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
