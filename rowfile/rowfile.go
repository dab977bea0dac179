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

// Package rowfile reads guest import files, and writes guest rosters in the
// same layout so that an exported roster can be imported again.
package rowfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/guests"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Columns is the canonical header of an import file.
var Columns = []string{
	"guest_id", "first_name", "last_name", "full_name", "preferred_name", "housing_status",
	"age", "gender", "location", "notes", "bicycle_description",
}

var headerAliases = map[string]string{
	"guestid":          "guest_id",
	"id":               "guest_id",
	"code":             "guest_id",
	"first":            "first_name",
	"firstname":        "first_name",
	"last":             "last_name",
	"lastname":         "last_name",
	"surname":          "last_name",
	"name":             "full_name",
	"fullname":         "full_name",
	"preferred":        "preferred_name",
	"nickname":         "preferred_name",
	"housing":          "housing_status",
	"age_group":        "age",
	"city":             "location",
	"bicycle":          "bicycle_description",
	"bike":             "bicycle_description",
	"bike_description": "bicycle_description",
}

var ErrNoNameColumn = errors.New("the file needs a first_name or full_name column")

// ReadFile reads a .csv or .xlsx file, chosen by extension. For spreadsheets,
// the first sheet is read.
func ReadFile(path string) ([]guests.ImportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[Open]: %w", err)
	}
	defer func() { _ = f.Close() }()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, "")
	default:
		return nil, fmt.Errorf("unsupported import file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads comma-separated rows with a header line.
func ReadCSV(r io.Reader) ([]guests.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var records []record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("[Read]: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, record{line: line, fields: fields})
	}
	return fromRecords(records)
}

// record is one row of an import file and the line it came from.
type record struct {
	line   int
	fields []string
}

// fromRecords maps a header record and the records under it to import rows.
// Blank records are skipped.
func fromRecords(records []record) ([]guests.ImportRow, error) {
	if len(records) == 0 {
		return nil, nil
	}
	index := make(map[string]int)
	for i, h := range records[0].fields {
		key := headerKey(h)
		if _, dup := index[key]; !dup && key != "" {
			index[key] = i
		}
	}
	_, hasFirst := index["first_name"]
	_, hasFull := index["full_name"]
	if !hasFirst && !hasFull {
		return nil, ErrNoNameColumn
	}
	var out []guests.ImportRow
	for _, rec := range records[1:] {
		if blank(rec.fields) {
			continue
		}
		field := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec.fields) {
				return ""
			}
			return strings.TrimSpace(rec.fields[i])
		}
		out = append(out, guests.ImportRow{
			SourceRow:          rec.line,
			GuestID:            field("guest_id"),
			FirstName:          field("first_name"),
			LastName:           field("last_name"),
			FullName:           field("full_name"),
			PreferredName:      field("preferred_name"),
			HousingStatus:      field("housing_status"),
			Age:                field("age"),
			Gender:             field("gender"),
			Location:           field("location"),
			Notes:              field("notes"),
			BicycleDescription: field("bicycle_description"),
		})
	}
	return out, nil
}

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	if alias, ok := headerAliases[strings.ReplaceAll(h, "_", "")]; ok {
		return alias
	}
	return h
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// rosterRecord is a guest in the column order of Columns.
func rosterRecord(g guests.Guest) []string {
	return []string{
		g.GuestID, g.FirstName, g.LastName, g.Name, g.PreferredName, string(g.HousingStatus),
		string(g.Age), string(g.Gender), g.Location, g.Notes, g.BicycleDescription,
	}
}

// WriteCSV writes a guest roster with a header line.
func WriteCSV(w io.Writer, gs []guests.Guest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("[Write]: %w", err)
	}
	for _, g := range gs {
		if err := cw.Write(rosterRecord(g)); err != nil {
			return fmt.Errorf("[Write]: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
