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
	"fmt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

var housingSynonyms = map[string]HousingStatus{
	"unsheltered":       HousingUnsheltered,
	"homeless":          HousingUnsheltered,
	"street":            HousingUnsheltered,
	"streets":           HousingUnsheltered,
	"outside":           HousingUnsheltered,
	"sheltered":         HousingSheltered,
	"shelter":           HousingSheltered,
	"in shelter":        HousingSheltered,
	"housed":            HousingHoused,
	"house":             HousingHoused,
	"apartment":         HousingHoused,
	"temp shelter":      HousingTempShelter,
	"temp. shelter":     HousingTempShelter,
	"temporary shelter": HousingTempShelter,
	"temporary":         HousingTempShelter,
	"rv":                HousingRVOrVehicle,
	"rv or vehicle":     HousingRVOrVehicle,
	"rv/vehicle":        HousingRVOrVehicle,
	"vehicle":           HousingRVOrVehicle,
	"car":               HousingRVOrVehicle,
	"van":               HousingRVOrVehicle,
}

var ageSynonyms = map[string]AgeGroup{
	"adult":    AgeAdult,
	"adults":   AgeAdult,
	"18-59":    AgeAdult,
	"senior":   AgeSenior,
	"seniors":  AgeSenior,
	"60+":      AgeSenior,
	"elder":    AgeSenior,
	"child":    AgeChild,
	"children": AgeChild,
	"kid":      AgeChild,
	"minor":    AgeChild,
	"0-17":     AgeChild,
}

var genderSynonyms = map[string]Gender{
	"m":          GenderMale,
	"man":        GenderMale,
	"f":          GenderFemale,
	"woman":      GenderFemale,
	"nb":         GenderNonBinary,
	"nonbinary":  GenderNonBinary,
	"non binary": GenderNonBinary,
	"u":          GenderUnknown,
	"unknown":    GenderUnknown,
}

// NormalizeName trims s, collapses inner whitespace, and title-cases each word.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.Und).String(s)
}

// normalizeEnum does an exact match, then a case-insensitive match against the
// canonical values, then a synonym lookup. Anything else passes through trimmed.
func normalizeEnum[T ~string](s string, canonical []T, synonyms map[string]T) T {
	s = strings.TrimSpace(s)
	for _, c := range canonical {
		if string(c) == s {
			return c
		}
	}
	for _, c := range canonical {
		if strings.EqualFold(string(c), s) {
			return c
		}
	}
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if v, ok := synonyms[key]; ok {
		return v
	}
	return T(s)
}

func NormalizeHousingStatus(s string) HousingStatus {
	return normalizeEnum(s, HousingStatuses, housingSynonyms)
}

func NormalizeAgeGroup(s string) AgeGroup {
	return normalizeEnum(s, AgeGroups, ageSynonyms)
}

func NormalizeGender(s string) Gender {
	return normalizeEnum(s, Genders, genderSynonyms)
}

func ValidHousingStatus(h HousingStatus) bool {
	return contains(HousingStatuses, h)
}

func ValidAgeGroup(a AgeGroup) bool {
	return contains(AgeGroups, a)
}

func ValidGender(g Gender) bool {
	return contains(Genders, g)
}

func contains[T comparable](all []T, v T) bool {
	for _, a := range all {
		if a == v {
			return true
		}
	}
	return false
}

// NormalizePreferredName trims and caps a preferred name. An empty result is
// a real value meaning "cleared".
func NormalizePreferredName(s string) string {
	return truncateRunes(strings.TrimSpace(s), MaxPreferredNameLen)
}

func NormalizeBicycleDescription(s string) string {
	return truncateRunes(strings.TrimSpace(s), MaxBicycleDescLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// BanActive reports whether a ban ending at bannedUntil is still in force at now.
func BanActive(bannedUntil *time.Time, now time.Time) bool {
	return bannedUntil != nil && bannedUntil.After(now)
}

var banTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseBanTime parses a ban end time. Times without a zone are read in loc.
func ParseBanTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range banTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ban end time %q", s)
}

// splitName splits a full name into a first name and the rest.
func splitName(full string) (first, rest string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// deriveName picks first and last names from explicit fields, falling back to
// splitting full. A missing last name becomes the first letter of the first
// name. The bool is false when there is no first name at all.
func deriveName(first, last, full string) (string, string, bool) {
	first = NormalizeName(first)
	last = NormalizeName(last)
	if first == "" {
		f, rest := splitName(full)
		first = NormalizeName(f)
		if last == "" {
			last = NormalizeName(rest)
		}
	}
	if first == "" {
		return "", "", false
	}
	if last == "" {
		r, _ := utf8.DecodeRuneInString(first)
		last = strings.ToUpper(string(r))
		slog.Info("No last name given, using the first initial", "firstName", first, "lastName", last)
	}
	return first, last, true
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
