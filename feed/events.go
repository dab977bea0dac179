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
	"github.com/launchdarkly/eventsource"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

const EventSourceChannel = "guestdesk"

// initialEvent is what a newly connected client is sent first.
const initialEvent = "InitialEvent"

type changeEvent struct {
	id   int64
	kind string
	data guests.Event
}

func (e changeEvent) Id() string {
	return strconv.FormatInt(e.id, 10)
}

func (e changeEvent) Event() string {
	return e.kind
}

func (e changeEvent) Data() string {
	b, err := json.Marshal(e.data)
	if err != nil {
		slog.Error("Error converting registry event to JSON", "event", e.data, "err", err)
	}
	return string(b)
}

// Events publishes registry changes to server-sent event subscribers. It is a
// guests.Notifier, so it can be handed straight to guests.WithNotifier.
type Events struct {
	Server    *eventsource.Server
	idCounter atomic.Int64
	now       func() time.Time
}

func NewEvents() *Events {
	es := &Events{
		Server: eventsource.NewServer(),
		now:    time.Now,
	}
	es.Server.Register(EventSourceChannel, es)
	es.Server.ReplayAll = true
	return es
}

// Replay tells a new subscriber the most recent event ID, so it knows where
// the stream stands before any change arrives.
func (es *Events) Replay(channel, id string) chan eventsource.Event {
	if channel != EventSourceChannel {
		return nil
	}
	out := make(chan eventsource.Event, 1)
	out <- changeEvent{
		id:   es.idCounter.Load(),
		kind: initialEvent,
		data: guests.Event{At: es.now()},
	}
	close(out)
	return out
}

func (es *Events) Notify(e guests.Event) {
	es.Server.Publish([]string{EventSourceChannel}, changeEvent{
		id:   es.idCounter.Add(1),
		kind: string(e.Kind),
		data: e,
	})
}

// LastID is the ID of the most recently published event.
func (es *Events) LastID() int64 {
	return es.idCounter.Load()
}

func (es *Events) Close() {
	es.Server.Close()
}
