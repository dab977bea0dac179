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

package cmd

import (
	"context"
	"fmt"
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/hopeservices/guestdesk/remote"
	"github.com/hopeservices/guestdesk/store"
	"github.com/hopeservices/guestdesk/store/actionlog"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
)

// openRegistry connects to the configured remote store and loads the whole
// registry from it. Remote calls are logged, and also recorded in reg when it
// is set. The returned close function flushes the action log and then
// releases the connection.
func openRegistry(
	ctx context.Context,
	cfg *conf.GuestDeskConfig,
	reg prometheus.Registerer,
	notifiers ...guests.Notifier,
) (*guests.Store, func() error, error) {
	r, closeRemote, err := store.Open(ctx, cfg.Remote)
	if err != nil {
		return nil, nil, fmt.Errorf("[store.Open]: %w", err)
	}
	if r != nil {
		inst, err := remote.Instrument(r, reg)
		if err != nil {
			_ = closeRemote()
			return nil, nil, fmt.Errorf("[remote.Instrument]: %w", err)
		}
		r = inst
	}
	actionLogger := actionlog.NewLogger(ctx, r, cfg.Core.ActionLogEnabled, false)
	closeFn := func() error {
		actionLogger.Close()
		return closeRemote()
	}

	s := guests.NewStore(r,
		guests.WithPageSize(cfg.Remote.PageSize),
		guests.WithLookupChunkSize(cfg.Import.LookupChunkSize),
		guests.WithInsertChunkSize(cfg.Import.InsertChunkSize),
		guests.WithSearchTTL(cfg.Feed.SearchTTL),
		guests.WithNotifier(guests.Notifiers(append([]guests.Notifier{actionLogger}, notifiers...)...)),
	)
	if !s.Remote() {
		slog.Warn("No remote store is configured. Changes will be lost when guestdesk exits")
		return s, closeFn, nil
	}
	if err := s.LoadAll(ctx); err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("[LoadAll]: %w", err)
	}
	return s, closeFn, nil
}

// findGuest resolves a registry ID or a guest code.
func findGuest(s *guests.Store, key string) (guests.Guest, error) {
	if g, ok := s.Guest(key); ok {
		return g, nil
	}
	if g, ok := s.GuestByCode(key); ok {
		return g, nil
	}
	return guests.Guest{}, &guests.Error{
		Kind:        guests.KindNotFound,
		UserMessage: fmt.Sprintf("No guest has the ID or code %q.", key),
	}
}
