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
	"fmt"
	"github.com/hopeservices/guestdesk/guests"
	"github.com/spf13/cobra"
)

var warnCmd = &cobra.Command{
	Use:   "warn",
	Short: "Add and remove guest warnings",
}

var warnAddCmd = &cobra.Command{
	Use:   "add GUEST MESSAGE",
	Short: "Warn staff about a guest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			g, err := findGuest(s, args[0])
			if err != nil {
				return err
			}
			w, err := s.AddGuestWarning(cmd.Context(), g.ID, guests.WarningInput{
				Message:  args[1],
				Severity: warnSeverity,
				IssuedBy: warnIssuedBy,
			})
			if w.ID != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Warned about %v %v (warning %v)\n", g.GuestID, g.DisplayName(), w.ID)
			}
			return err
		})
	},
}

var warnRemoveCmd = &cobra.Command{
	Use:   "remove WARNING",
	Short: "Remove a warning by its ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			if err := s.RemoveGuestWarning(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed warning %v\n", args[0])
			return nil
		})
	},
}

var (
	warnSeverity int
	warnIssuedBy string
)

func init() {
	rootCmd.AddCommand(warnCmd)
	warnCmd.AddCommand(warnAddCmd, warnRemoveCmd)
	warnAddCmd.Flags().IntVar(&warnSeverity, "severity", 1, "How serious the warning is, from 1 to 3")
	warnAddCmd.Flags().StringVar(&warnIssuedBy, "by", "", "Who is issuing the warning")
}
