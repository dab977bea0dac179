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

package rowfile_test

import (
	"bytes"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/hopeservices/guestdesk/rowfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = "\ufeffGuest ID,First Name,Last Name,Housing,Age Group,Gender,City,Notes\n" +
	"G001,Ann,Lee,shelter,adult,f,Downtown,\"likes tea, no sugar\"\n" +
	"\n" +
	",,,,,,,\n" +
	"G002,Bob,,street,senior,m,,\n"

func TestReadCSV(t *testing.T) {
	t.Parallel()
	rows, err := rowfile.ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, guests.ImportRow{
		SourceRow:     2,
		GuestID:       "G001",
		FirstName:     "Ann",
		LastName:      "Lee",
		HousingStatus: "shelter",
		Age:           "adult",
		Gender:        "f",
		Location:      "Downtown",
		Notes:         "likes tea, no sugar",
	}, rows[0])
	assert.Equal(t, 5, rows[1].SourceRow)
	assert.Equal(t, "Bob", rows[1].FirstName)
	assert.Empty(t, rows[1].Location)
}

func TestReadCSV_FullNameOnly(t *testing.T) {
	t.Parallel()
	rows, err := rowfile.ReadCSV(strings.NewReader("name,age,gender\nMary Jo Smith,Adult 18-59,Female\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mary Jo Smith", rows[0].FullName)
}

func TestReadCSV_NeedsANameColumn(t *testing.T) {
	t.Parallel()
	_, err := rowfile.ReadCSV(strings.NewReader("age,gender\nAdult 18-59,Male\n"))
	require.ErrorIs(t, err, rowfile.ErrNoNameColumn)

	rows, err := rowfile.ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadXLSX(t *testing.T) {
	t.Parallel()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"first_name", "last_name", "age", "gender", "bike"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Ann", "Lee", "Adult 18-59", "Female", "Red Schwinn"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"Cy", "Ray", "Child 0-17", "Male"}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	rows, err := rowfile.ReadXLSX(&buf, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Red Schwinn", rows[0].BicycleDescription)
	assert.Equal(t, 2, rows[0].SourceRow)
	assert.Equal(t, "Cy", rows[1].FirstName)
	assert.Equal(t, 4, rows[1].SourceRow)
}

func roster() []guests.Guest {
	return []guests.Guest{
		{
			GuestID: "00417", FirstName: "Ann", LastName: "Lee", Name: "Ann Lee", PreferredName: "Annie",
			HousingStatus: guests.HousingSheltered, Age: guests.AgeAdult, Gender: guests.GenderFemale,
			Location: "Downtown", Notes: "likes tea, no sugar",
		},
		{
			GuestID: "GB", FirstName: "Bob", LastName: "Ray", Name: "Bob Ray",
			HousingStatus: guests.HousingRVOrVehicle, Age: guests.AgeSenior, Gender: guests.GenderMale,
			Location: "Eastside", BicycleDescription: "blue BMX",
		},
	}
}

func TestRosterRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var csvBuf, xlsxBuf bytes.Buffer
	require.NoError(t, rowfile.WriteCSV(&csvBuf, roster()))
	require.NoError(t, rowfile.WriteXLSX(&xlsxBuf, roster()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roster.csv"), csvBuf.Bytes(), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roster.xlsx"), xlsxBuf.Bytes(), 0o600))

	for _, name := range []string{"roster.csv", "roster.xlsx"} {
		rows, err := rowfile.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		require.Len(t, rows, 2, name)
		assert.Equal(t, "00417", rows[0].GuestID, name)
		assert.Equal(t, "Annie", rows[0].PreferredName, name)
		assert.Equal(t, "Sheltered", rows[0].HousingStatus, name)
		assert.Equal(t, "likes tea, no sugar", rows[0].Notes, name)
		assert.Equal(t, "blue BMX", rows[1].BicycleDescription, name)
		assert.Equal(t, 3, rows[1].SourceRow, name)
	}

	_, err := rowfile.ReadFile(filepath.Join(dir, "roster.pdf"))
	require.Error(t, err)
}

func TestReadFile_UnsupportedType(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guests.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	_, err := rowfile.ReadFile(path)
	require.ErrorContains(t, err, "unsupported import file type")
}
