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
	"github.com/hopeservices/guestdesk/remote"
	"slices"
	"strings"
)

type WarningInput struct {
	Message  string
	Severity int
	IssuedBy string
}

// AddGuestWarning puts a new warning at the front of the ledger. If the remote
// insert fails, the local warning is kept anyway and returned together with
// a RemoteWrite error: staff should keep seeing a warning they just entered.
func (s *Store) AddGuestWarning(ctx context.Context, guestID string, in WarningInput) (Warning, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return Warning{}, validationError("A warning message is required.")
	}
	severity := in.Severity
	if severity <= 0 {
		severity = 1
	}
	now := s.now()
	w := Warning{
		ID:        localIDPrefix + uuid.NewString(),
		GuestID:   guestID,
		Message:   msg,
		Severity:  severity,
		IssuedBy:  strings.TrimSpace(in.IssuedBy),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	if s.guestIndexLocked(guestID) < 0 {
		s.mu.Unlock()
		return Warning{}, notFoundError("Guest %v was not found.", guestID)
	}
	s.warnings = slices.Insert(s.warnings, 0, w)
	s.mu.Unlock()

	if s.remote != nil && remoteBacked(guestID) {
		rows, err := s.remote.Insert(ctx, WarningsTable, []remote.Row{warningToRow(w)})
		if err == nil && len(rows) == 0 {
			err = errors.New("insert returned no rows")
		}
		if err != nil {
			logRemoteFailure("Failed to save guest warning", err, "guestId", guestID)
			s.notify(Event{Kind: EventWarningAdded, GuestID: guestID})
			return w, remoteWriteError(
				"The warning is showing here but was not saved. It will be lost on reload unless you add it again.",
				fmt.Errorf("[Insert]: %w", err),
			)
		}
		saved := warningFromRow(rows[0])
		s.mu.Lock()
		if i := slices.IndexFunc(s.warnings, func(x Warning) bool { return x.ID == w.ID }); i >= 0 {
			s.warnings[i] = saved
		}
		s.mu.Unlock()
		w = saved
	}

	s.notify(Event{Kind: EventWarningAdded, GuestID: guestID})
	return w, nil
}

// RemoveGuestWarning deletes a warning. The local removal stands even if the
// remote delete fails; that failure is returned as a RemoteWrite error.
func (s *Store) RemoveGuestWarning(ctx context.Context, warningID string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.warnings, func(w Warning) bool { return w.ID == warningID })
	if i < 0 {
		s.mu.Unlock()
		return notFoundError("Warning %v was not found.", warningID)
	}
	removed := s.warnings[i]
	s.warnings = slices.Delete(s.warnings, i, i+1)
	s.mu.Unlock()
	s.notify(Event{Kind: EventWarningRemoved, GuestID: removed.GuestID})

	if s.remote != nil && remoteBacked(warningID) {
		if err := s.remote.Delete(ctx, WarningsTable, "id", warningID); err != nil {
			logRemoteFailure("Failed to remove guest warning remotely", err, "id", warningID)
			return remoteWriteError(
				"The warning was removed here but may come back on reload.",
				fmt.Errorf("[Delete]: %w", err),
			)
		}
	}
	return nil
}

// GetWarningsForGuest returns the guest's active warnings, most recent first.
func (s *Store) GetWarningsForGuest(guestID string) []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Warning
	for _, w := range s.warnings {
		if w.GuestID == guestID && w.Active {
			out = append(out, w)
		}
	}
	return out
}

// Warnings returns the whole ledger, inactive warnings included.
func (s *Store) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.warnings)
}
