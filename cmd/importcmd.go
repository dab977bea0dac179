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
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/hopeservices/guestdesk/rowfile"
	"github.com/spf13/cobra"
	"io"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import guests from a .csv or .xlsx file",
	Long: "Import guests from a .csv or .xlsx file\n\n" +
		"The first row names the columns. Rows with a guest_id that is already registered update that guest; " +
		"the rest are added. Rows with problems are reported and skipped.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return runImport(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(ctx context.Context, cfg *conf.GuestDeskConfig, path string, out io.Writer) error {
	rows, err := rowfile.ReadFile(path)
	if err != nil {
		return fmt.Errorf("[ReadFile]: %w", err)
	}
	registry, closeRemote, err := openRegistry(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("[openRegistry]: %w", err)
	}
	defer func() { _ = closeRemote() }()

	res, err := registry.ImportGuests(ctx, rows)
	_, _ = fmt.Fprintln(out, res.Summary)
	for _, line := range problemLines(err) {
		_, _ = fmt.Fprintln(out, "  "+line)
	}
	if err != nil {
		return fmt.Errorf("%d of %d rows were not imported", res.Failed, res.Total)
	}
	return nil
}

// problemLines flattens a joined error into one staff-facing line per
// problem.
func problemLines(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, problemLines(e)...)
		}
		return lines
	}
	var rowErr *guests.RowError
	if errors.As(err, &rowErr) {
		return []string{rowErr.Error()}
	}
	return []string{guests.UserMessage(err)}
}
