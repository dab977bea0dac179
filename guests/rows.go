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
	"github.com/hopeservices/guestdesk/lib/conv"
	"github.com/hopeservices/guestdesk/remote"
	"strings"
	"time"
)

const (
	GuestsTable   = "guests"
	WarningsTable = "guest_warnings"
	ProxiesTable  = "guest_proxies"
)

var guestColumns = []string{
	"id", "external_id", "first_name", "last_name", "full_name", "preferred_name",
	"housing_status", "age_group", "gender", "location", "notes", "bicycle_description",
	"banned_until", "banned_at", "ban_reason", "banned_from_bicycle", "banned_from_meals",
	"banned_from_shower", "banned_from_laundry", "created_at", "updated_at",
}

var warningColumns = []string{
	"id", "guest_id", "message", "severity", "issued_by", "active", "created_at", "updated_at",
}

var proxyColumns = []string{"id", "guest_id", "proxy_id", "created_at"}

func guestFromRow(r remote.Row) Guest {
	first := strings.TrimSpace(conv.AsString(r["first_name"]))
	last := strings.TrimSpace(conv.AsString(r["last_name"]))
	full := strings.TrimSpace(conv.AsString(r["full_name"]))
	if full == "" {
		full = fullName(first, last)
	}
	if first == "" && full != "" {
		first, last = splitName(full)
	}
	g := Guest{
		ID:                 conv.AsString(r["id"]),
		GuestID:            conv.AsString(r["external_id"]),
		FirstName:          first,
		LastName:           last,
		Name:               full,
		PreferredName:      NormalizePreferredName(conv.AsString(r["preferred_name"])),
		HousingStatus:      NormalizeHousingStatus(conv.AsString(r["housing_status"])),
		Age:                NormalizeAgeGroup(conv.AsString(r["age_group"])),
		Gender:             NormalizeGender(conv.AsString(r["gender"])),
		Location:           conv.AsString(r["location"]),
		Notes:              conv.AsString(r["notes"]),
		BicycleDescription: NormalizeBicycleDescription(conv.AsString(r["bicycle_description"])),
		BannedUntil:        conv.AsTimePtr(r["banned_until"]),
		BannedAt:           conv.AsTimePtr(r["banned_at"]),
		BanReason:          conv.AsString(r["ban_reason"]),
		BannedFromBicycle:  conv.AsBool(r["banned_from_bicycle"]),
		BannedFromMeals:    conv.AsBool(r["banned_from_meals"]),
		BannedFromShower:   conv.AsBool(r["banned_from_shower"]),
		BannedFromLaundry:  conv.AsBool(r["banned_from_laundry"]),
	}
	g.CreatedAt, _ = conv.AsTime(r["created_at"])
	g.UpdatedAt, _ = conv.AsTime(r["updated_at"])
	return g
}

// guestToRow is the insert shape of a guest. The id is left to the remote.
func guestToRow(g Guest) remote.Row {
	return remote.Row{
		"external_id":         g.GuestID,
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
		"banned_until":        conv.TimePtrValue(g.BannedUntil),
		"banned_at":           conv.TimePtrValue(g.BannedAt),
		"ban_reason":          g.BanReason,
		"banned_from_bicycle": g.BannedFromBicycle,
		"banned_from_meals":   g.BannedFromMeals,
		"banned_from_shower":  g.BannedFromShower,
		"banned_from_laundry": g.BannedFromLaundry,
		"created_at":          g.CreatedAt.UTC(),
		"updated_at":          g.UpdatedAt.UTC(),
	}
}

// guestPatchRow translates the fields a patch touched into remote columns.
func guestPatchRow(p GuestPatch, next Guest) remote.Row {
	row := remote.Row{"updated_at": next.UpdatedAt.UTC()}
	if p.FirstName != nil || p.LastName != nil || p.Name != nil {
		row["first_name"] = next.FirstName
		row["last_name"] = next.LastName
		row["full_name"] = next.Name
	}
	if p.PreferredName != nil {
		row["preferred_name"] = next.PreferredName
	}
	if p.HousingStatus != nil {
		row["housing_status"] = string(next.HousingStatus)
	}
	if p.Age != nil {
		row["age_group"] = string(next.Age)
	}
	if p.Gender != nil {
		row["gender"] = string(next.Gender)
	}
	if p.Location != nil {
		row["location"] = next.Location
	}
	if p.Notes != nil {
		row["notes"] = next.Notes
	}
	if p.BicycleDescription != nil {
		row["bicycle_description"] = next.BicycleDescription
	}
	return row
}

func banRow(g Guest) remote.Row {
	return remote.Row{
		"banned_until":        conv.TimePtrValue(g.BannedUntil),
		"banned_at":           conv.TimePtrValue(g.BannedAt),
		"ban_reason":          g.BanReason,
		"banned_from_bicycle": g.BannedFromBicycle,
		"banned_from_meals":   g.BannedFromMeals,
		"banned_from_shower":  g.BannedFromShower,
		"banned_from_laundry": g.BannedFromLaundry,
		"updated_at":          g.UpdatedAt.UTC(),
	}
}

func warningFromRow(r remote.Row) Warning {
	w := Warning{
		ID:       conv.AsString(r["id"]),
		GuestID:  conv.AsString(r["guest_id"]),
		Message:  conv.AsString(r["message"]),
		Severity: conv.AsInt(r["severity"]),
		IssuedBy: conv.AsString(r["issued_by"]),
		Active:   true,
	}
	if v, ok := r["active"]; ok && v != nil {
		w.Active = conv.AsBool(v)
	}
	if w.Severity <= 0 {
		w.Severity = 1
	}
	w.CreatedAt, _ = conv.AsTime(r["created_at"])
	w.UpdatedAt, _ = conv.AsTime(r["updated_at"])
	return w
}

func warningToRow(w Warning) remote.Row {
	row := remote.Row{
		"guest_id":   w.GuestID,
		"message":    w.Message,
		"severity":   w.Severity,
		"active":     w.Active,
		"created_at": w.CreatedAt.UTC(),
		"updated_at": w.UpdatedAt.UTC(),
	}
	if w.IssuedBy != "" {
		row["issued_by"] = w.IssuedBy
	}
	return row
}

func proxyFromRow(r remote.Row) ProxyLink {
	p := ProxyLink{
		ID:      conv.AsString(r["id"]),
		GuestID: conv.AsString(r["guest_id"]),
		ProxyID: conv.AsString(r["proxy_id"]),
	}
	p.CreatedAt, _ = conv.AsTime(r["created_at"])
	return p
}

func proxyToRow(guestID, proxyID string, at time.Time) remote.Row {
	return remote.Row{
		"guest_id":   guestID,
		"proxy_id":   proxyID,
		"created_at": at.UTC(),
	}
}
