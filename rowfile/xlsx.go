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

package rowfile

import (
	"fmt"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/xuri/excelize/v2"
	"io"
)

const rosterSheet = "Guests"

// ReadXLSX reads the named sheet of a workbook, or the first sheet when sheet
// is empty. The first row is the header.
func ReadXLSX(r io.Reader, sheet string) ([]guests.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("[OpenReader]: %w", err)
	}
	defer func() { _ = f.Close() }()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("[GetRows]: %w", err)
	}
	records := make([]record, 0, len(rows))
	for i, row := range rows {
		records = append(records, record{line: i + 1, fields: row})
	}
	return fromRecords(records)
}

// WriteXLSX writes a guest roster as a workbook with one sheet, a bold frozen
// header, and every cell stored as text so codes keep their leading zeros.
func WriteXLSX(w io.Writer, gs []guests.Guest) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return fmt.Errorf("[SetSheetName]: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("[NewStyle]: %w", err)
	}
	if err := setRow(f, 1, Columns); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return fmt.Errorf("[CoordinatesToCellName]: %w", err)
	}
	if err := f.SetCellStyle(rosterSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("[SetCellStyle]: %w", err)
	}
	for i, g := range gs {
		if err := setRow(f, i+2, rosterRecord(g)); err != nil {
			return err
		}
	}
	if err := f.SetPanes(rosterSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("[SetPanes]: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("[WriteTo]: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("[CoordinatesToCellName]: %w", err)
		}
		if err := f.SetCellStr(rosterSheet, cell, v); err != nil {
			return fmt.Errorf("[SetCellStr]: %w", err)
		}
	}
	return nil
}
