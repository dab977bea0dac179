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
	"time"
)

type EventKind string

const (
	EventGuestAdded     EventKind = "guest.added"
	EventGuestUpdated   EventKind = "guest.updated"
	EventGuestRemoved   EventKind = "guest.removed"
	EventGuestBanned    EventKind = "guest.banned"
	EventGuestUnbanned  EventKind = "guest.unbanned"
	EventWarningAdded   EventKind = "warning.added"
	EventWarningRemoved EventKind = "warning.removed"
	EventLinkAdded      EventKind = "link.added"
	EventLinkRemoved    EventKind = "link.removed"
	EventGuestsImported EventKind = "guests.imported"
	EventGuestsLoaded   EventKind = "guests.loaded"
)

// Event describes a change to the registry that has been committed locally.
type Event struct {
	Kind    EventKind `json:"kind"`
	GuestID string    `json:"guestId,omitempty"`
	Other   string    `json:"other,omitempty"`
	Count   int       `json:"count,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier hears about registry changes. Notify is called outside the store's
// lock, after the change is visible to readers.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) {
	f(e)
}

// Notifiers hands every event to each of ns in turn. Nil entries are skipped.
func Notifiers(ns ...Notifier) Notifier {
	return NotifierFunc(func(e Event) {
		for _, n := range ns {
			if n != nil {
				n.Notify(e)
			}
		}
	})
}
