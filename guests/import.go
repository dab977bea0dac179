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
	"github.com/hopeservices/guestdesk/lib/conv"
	"github.com/hopeservices/guestdesk/remote"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// DefaultImportLocation fills in a missing location on imported rows.
const DefaultImportLocation = "Unknown"

// ImportRow is one candidate guest from an import file. SourceRow is the line
// number to report in errors; when zero, the row's index plus two is used,
// which is the line number in a file with a header row.
type ImportRow struct {
	SourceRow          int
	GuestID            string
	FirstName          string
	LastName           string
	FullName           string
	HousingStatus      string
	Age                string
	Gender             string
	Location           string
	Notes              string
	PreferredName      string
	BicycleDescription string
}

type ImportResult struct {
	// Imported holds the guests that were actually saved.
	Imported []Guest
	// Failed counts the rows that were rejected or not saved.
	Failed  int
	Total   int
	Partial bool
	Summary string
}

// RowError is a problem with one import row. It unwraps to the *Error that
// describes it.
type RowError struct {
	Row   int
	Field string
	Value string
	Err   *Error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err.UserMessage)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ImportGuests validates a batch of rows and saves the valid ones. Invalid rows
// are skipped and reported one by one; they never stop the batch.
//
// With a remote configured, rows whose guest code already exists remotely are
// updated and the rest inserted. Inserts go out in sequential chunks and
// updates one at a time; the first remote failure stops everything after it,
// and whatever was saved before it stays saved. The returned error joins the
// row errors with a PartialBatch error describing any remote failure.
func (s *Store) ImportGuests(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	res := ImportResult{Total: len(rows)}
	if len(rows) == 0 {
		res.Summary = "No rows to import."
		return res, nil
	}
	now := s.now()

	s.mu.Lock()
	taken := s.takenCodesLocked()
	codeByName := make(map[string]string, len(s.guests))
	byCode := make(map[string]Guest, len(s.guests))
	for _, g := range s.guests {
		codeByName[nameKey(g.FirstName, g.LastName)] = g.GuestID
		byCode[g.GuestID] = g.clone()
	}
	s.mu.Unlock()

	var rowErrs []error
	var candidates []Guest
	batchNames := make(map[string]int)
	batchCodes := make(map[string]bool)
	for i, r := range rows {
		line := r.SourceRow
		if line <= 0 {
			line = i + 2
		}
		g, rowErr := importCandidate(r, now)
		if rowErr != nil {
			rowErr.Row = line
			rowErrs = append(rowErrs, rowErr)
			continue
		}
		key := nameKey(g.FirstName, g.LastName)
		code := strings.TrimSpace(r.GuestID)
		if prev, ok := batchNames[key]; ok {
			rowErrs = append(rowErrs, &RowError{
				Row: line, Field: "name", Value: g.Name,
				Err: duplicateError("%v is the same guest as row %d.", g.Name, prev),
			})
			continue
		}
		if existing, ok := codeByName[key]; ok && existing != code {
			rowErrs = append(rowErrs, &RowError{
				Row: line, Field: "name", Value: g.Name,
				Err: duplicateError("A guest named %v already exists (%v).", g.Name, existing),
			})
			continue
		}
		if code != "" && !batchCodes[code] {
			g.GuestID = code
			taken[code] = true
		} else {
			g.GuestID = uniqueCode("", taken, now)
		}
		batchCodes[g.GuestID] = true
		batchNames[key] = line
		if existing, ok := byCode[g.GuestID]; ok {
			g = mergeImported(existing, g)
		}
		candidates = append(candidates, g)
	}

	saved := candidates
	var batchErr error
	if s.remote != nil && len(candidates) > 0 {
		saved, batchErr = s.reconcile(ctx, candidates)
	}
	s.commitImported(saved)

	res.Imported = make([]Guest, 0, len(saved))
	for _, g := range saved {
		res.Imported = append(res.Imported, g.derived(now))
	}
	res.Failed = len(rowErrs) + len(candidates) - len(saved)
	res.Partial = res.Failed > 0 && len(saved) > 0

	errs := rowErrs
	switch {
	case batchErr != nil:
		pbe := partialBatchError(len(saved), len(candidates), batchErr)
		logRemoteFailure("Guest import stopped early", batchErr,
			"saved", len(saved), "candidates", len(candidates), "rowErrors", len(rowErrs))
		res.Summary = pbe.UserMessage
		errs = append(errs, pbe)
	case res.Failed > 0:
		res.Summary = fmt.Sprintf("Imported %d of %d rows. %d rows need attention.", len(saved), len(rows), res.Failed)
	default:
		res.Summary = fmt.Sprintf("Imported %d guests.", len(saved))
	}
	slog.Info("Imported guests", "total", res.Total, "imported", len(saved), "failed", res.Failed)
	if len(saved) > 0 {
		s.notify(Event{Kind: EventGuestsImported, Count: len(saved)})
	}
	return res, errors.Join(errs...)
}

func importCandidate(r ImportRow, now time.Time) (Guest, *RowError) {
	first, last, ok := deriveName(r.FirstName, r.LastName, r.FullName)
	if !ok {
		return Guest{}, &RowError{Field: "first_name", Err: validationError("First name is required.")}
	}
	if strings.TrimSpace(r.Age) == "" {
		return Guest{}, &RowError{Field: "age", Err: validationError("Age group is required.")}
	}
	age := NormalizeAgeGroup(r.Age)
	if !ValidAgeGroup(age) {
		return Guest{}, &RowError{Field: "age", Value: r.Age, Err: validationError("Invalid age group %q.", r.Age)}
	}
	if strings.TrimSpace(r.Gender) == "" {
		return Guest{}, &RowError{Field: "gender", Err: validationError("Gender is required.")}
	}
	gender := NormalizeGender(r.Gender)
	if !ValidGender(gender) {
		return Guest{}, &RowError{Field: "gender", Value: r.Gender, Err: validationError("Invalid gender %q.", r.Gender)}
	}
	housing := DefaultHousing
	if strings.TrimSpace(r.HousingStatus) != "" {
		housing = NormalizeHousingStatus(r.HousingStatus)
	}
	if !ValidHousingStatus(housing) {
		return Guest{}, &RowError{
			Field: "housing_status", Value: r.HousingStatus,
			Err: validationError("Invalid housing status %q.", r.HousingStatus),
		}
	}
	location := strings.TrimSpace(r.Location)
	if location == "" {
		location = DefaultImportLocation
	}
	return Guest{
		ID:                 localIDPrefix + uuid.NewString(),
		FirstName:          first,
		LastName:           last,
		Name:               fullName(first, last),
		PreferredName:      NormalizePreferredName(r.PreferredName),
		HousingStatus:      housing,
		Age:                age,
		Gender:             gender,
		Location:           location,
		Notes:              strings.TrimSpace(r.Notes),
		BicycleDescription: NormalizeBicycleDescription(r.BicycleDescription),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// mergeImported applies an imported row over an existing guest with the same
// code. Identity, creation time and ban state are kept.
func mergeImported(existing, imported Guest) Guest {
	out := existing.clone()
	out.FirstName = imported.FirstName
	out.LastName = imported.LastName
	out.Name = imported.Name
	out.PreferredName = imported.PreferredName
	out.HousingStatus = imported.HousingStatus
	out.Age = imported.Age
	out.Gender = imported.Gender
	out.Location = imported.Location
	out.Notes = imported.Notes
	out.BicycleDescription = imported.BicycleDescription
	out.UpdatedAt = imported.UpdatedAt
	return out
}

func importUpdateRow(g Guest) remote.Row {
	return remote.Row{
		"first_name":          g.FirstName,
		"last_name":           g.LastName,
		"full_name":           g.Name,
		"preferred_name":      g.PreferredName,
		"housing_status":      string(g.HousingStatus),
		"age_group":           string(g.Age),
		"gender":              string(g.Gender),
		"location":            g.Location,
		"notes":               g.Notes,
		"bicycle_description": g.BicycleDescription,
		"updated_at":          g.UpdatedAt.UTC(),
	}
}

// reconcile writes candidates to the remote and returns the ones it saved, as
// the remote stored them.
func (s *Store) reconcile(ctx context.Context, candidates []Guest) ([]Guest, error) {
	codes := make([]any, 0, len(candidates))
	for _, c := range candidates {
		codes = append(codes, c.GuestID)
	}
	existing := make(map[string]string)
	for chunk := range slices.Chunk(codes, s.lookupChunkSize) {
		rows, err := s.remote.SelectIn(ctx, GuestsTable, []string{"id", "external_id"}, "external_id", chunk)
		if err != nil {
			return nil, fmt.Errorf("[SelectIn]: %w", err)
		}
		for _, r := range rows {
			existing[conv.AsString(r["external_id"])] = conv.AsString(r["id"])
		}
	}

	var inserts, updates []Guest
	for _, c := range candidates {
		if id, ok := existing[c.GuestID]; ok {
			c.ID = id
			updates = append(updates, c)
		} else {
			inserts = append(inserts, c)
		}
	}
	slog.Debug("Partitioned guest import", "inserts", len(inserts), "updates", len(updates))

	var saved []Guest
	for chunk := range slices.Chunk(inserts, s.insertChunkSize) {
		rows := make([]remote.Row, 0, len(chunk))
		for _, g := range chunk {
			rows = append(rows, guestToRow(g))
		}
		out, err := s.remote.Insert(ctx, GuestsTable, rows)
		if err != nil {
			return saved, fmt.Errorf("[Insert]: %w", err)
		}
		for _, r := range out {
			saved = append(saved, guestFromRow(r))
		}
	}
	for _, u := range updates {
		row, err := s.remote.Update(ctx, GuestsTable, importUpdateRow(u), "external_id", u.GuestID)
		if err != nil {
			return saved, fmt.Errorf("[Update]: %w", err)
		}
		if row != nil {
			saved = append(saved, guestFromRow(row))
		} else {
			saved = append(saved, u)
		}
	}
	return saved, nil
}

// commitImported puts saved guests into the registry, replacing any guest with
// the same id or code.
func (s *Store) commitImported(saved []Guest) {
	if len(saved) == 0 {
		return
	}
	s.mu.Lock()
	for _, g := range saved {
		i := slices.IndexFunc(s.guests, func(x Guest) bool {
			return (g.ID != "" && x.ID == g.ID) || x.GuestID == g.GuestID
		})
		if i >= 0 {
			s.guests[i] = g.clone()
		} else {
			s.guests = append(s.guests, g.clone())
		}
	}
	s.mu.Unlock()
	s.search.Invalidate()
}

func partialBatchError(saved, total int, err error) *Error {
	var msg string
	if saved == 0 {
		msg = "Import failed: nothing was saved."
	} else {
		msg = fmt.Sprintf("Import partially failed: %d of %d guests were saved, %d still need attention.", saved, total, total-saved)
	}
	if hint := causeHint(err); hint != "" {
		msg += " " + hint
	}
	return &Error{Kind: KindPartialBatch, UserMessage: msg, InternalErr: err}
}
