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
	"github.com/hopeservices/guestdesk/guests"
	"github.com/spf13/cobra"
	"io"
)

var linkCmd = &cobra.Command{
	Use:   "link GUEST OTHER",
	Short: "Link two guests, so that either can pick up for the other",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			return linkGuests(cmd.Context(), s, args[0], args[1], true, cmd.OutOrStdout())
		})
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink GUEST OTHER",
	Short: "Remove the link between two guests",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			return linkGuests(cmd.Context(), s, args[0], args[1], false, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(linkCmd, unlinkCmd)
}

func linkGuests(ctx context.Context, s *guests.Store, aKey, bKey string, link bool, out io.Writer) error {
	a, err := findGuest(s, aKey)
	if err != nil {
		return err
	}
	b, err := findGuest(s, bKey)
	if err != nil {
		return err
	}
	verb := "Linked"
	if link {
		err = s.LinkGuests(ctx, a.ID, b.ID)
	} else {
		verb = "Unlinked"
		err = s.UnlinkGuests(ctx, a.ID, b.ID)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%v %v and %v. %v now has %d linked guests.\n",
		verb, a.DisplayName(), b.DisplayName(), a.DisplayName(), s.GetLinkedGuestsCount(a.ID))
	return nil
}
