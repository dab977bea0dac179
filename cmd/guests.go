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
	"github.com/spf13/pflag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"
)

var guestsCmd = &cobra.Command{
	Use:   "guests",
	Short: "List and change registered guests",
}

var guestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List guests, optionally matching a search",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			return listGuests(cmd.Context(), s, listQuery, listBannedOnly, cmd.OutOrStdout())
		})
	},
}

var guestsExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write every guest to a .csv or .xlsx roster that can be imported again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			return exportGuests(s, args[0])
		})
	},
}

var guestsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new guest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			g, err := s.AddGuest(cmd.Context(), addFlags.input())
			if err != nil {
				return err
			}
			printGuest(cmd.OutOrStdout(), "Added", g)
			return nil
		})
	},
}

var guestsUpdateCmd = &cobra.Command{
	Use:   "update GUEST",
	Short: "Change a guest's details. Only the flags given are changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			g, err := findGuest(s, args[0])
			if err != nil {
				return err
			}
			g, err = s.UpdateGuest(cmd.Context(), g.ID, updateFlags.patch(cmd.Flags()))
			if err != nil {
				return err
			}
			printGuest(cmd.OutOrStdout(), "Updated", g)
			return nil
		})
	},
}

var guestsRemoveCmd = &cobra.Command{
	Use:   "remove GUEST",
	Short: "Remove a guest, along with their warnings and links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			g, err := findGuest(s, args[0])
			if err != nil {
				return err
			}
			if err := s.RemoveGuest(cmd.Context(), g.ID); err != nil {
				return err
			}
			printGuest(cmd.OutOrStdout(), "Removed", g)
			return nil
		})
	},
}

var guestsBanCmd = &cobra.Command{
	Use:   "ban GUEST",
	Short: "Ban a guest until a given time, from every service or from the ones named",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			return banGuest(cmd.Context(), s, cfg.Location(), args[0], banFlags, cmd.OutOrStdout())
		})
	},
}

var guestsUnbanCmd = &cobra.Command{
	Use:   "unban GUEST",
	Short: "Lift a guest's ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustInitConfig(envFilename)
		return withRegistry(cmd.Context(), cfg, func(s *guests.Store) error {
			g, err := findGuest(s, args[0])
			if err != nil {
				return err
			}
			g, err = s.ClearGuestBan(cmd.Context(), g.ID)
			if err != nil {
				return err
			}
			printGuest(cmd.OutOrStdout(), "Unbanned", g)
			return nil
		})
	},
}

var (
	listQuery      string
	listBannedOnly bool
	addFlags       guestFlags
	updateFlags    guestFlags
	banFlags       banOptions
)

func init() {
	rootCmd.AddCommand(guestsCmd)
	guestsCmd.AddCommand(guestsListCmd, guestsExportCmd, guestsAddCmd, guestsUpdateCmd,
		guestsRemoveCmd, guestsBanCmd, guestsUnbanCmd)

	guestsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Only list guests matching every word of this search")
	guestsListCmd.Flags().BoolVar(&listBannedOnly, "banned", false, "Only list guests with a ban in effect")

	addFlags.register(guestsAddCmd.Flags())
	updateFlags.register(guestsUpdateCmd.Flags())

	guestsBanCmd.Flags().StringVar(&banFlags.until, "until", "", "When the ban ends, e.g. 2025-07-01 or \"2025-07-01 17:00\"")
	guestsBanCmd.Flags().StringVar(&banFlags.reason, "reason", "", "Why the guest is banned")
	guestsBanCmd.Flags().BoolVar(&banFlags.bicycle, "bicycle", false, "Ban from the bicycle program")
	guestsBanCmd.Flags().BoolVar(&banFlags.meals, "meals", false, "Ban from meals")
	guestsBanCmd.Flags().BoolVar(&banFlags.shower, "shower", false, "Ban from showers")
	guestsBanCmd.Flags().BoolVar(&banFlags.laundry, "laundry", false, "Ban from laundry")
	_ = guestsBanCmd.MarkFlagRequired("until")
}

// withRegistry opens the registry for the length of one command.
func withRegistry(ctx context.Context, cfg *conf.GuestDeskConfig, f func(*guests.Store) error) error {
	s, closeRemote, err := openRegistry(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("[openRegistry]: %w", err)
	}
	defer func() { _ = closeRemote() }()
	if err := f(s); err != nil {
		return errors.New(strings.Join(problemLines(err), "\n"))
	}
	return nil
}

// guestFlags holds the flags shared by guests add and guests update.
type guestFlags struct {
	first, last, name, preferred, housing, age, gender, location, notes, bicycle string
}

func (f *guestFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.first, "first", "", "First name")
	fs.StringVar(&f.last, "last", "", "Last name")
	fs.StringVar(&f.name, "name", "", "Full name, split into first and last when those aren't given")
	fs.StringVar(&f.preferred, "preferred", "", "Preferred name")
	fs.StringVar(&f.housing, "housing", "", "Housing status")
	fs.StringVar(&f.age, "age", "", "Age group")
	fs.StringVar(&f.gender, "gender", "", "Gender")
	fs.StringVar(&f.location, "location", "", "Where the guest usually stays")
	fs.StringVar(&f.notes, "notes", "", "Notes")
	fs.StringVar(&f.bicycle, "bicycle", "", "Bicycle description")
}

func (f *guestFlags) input() guests.GuestInput {
	return guests.GuestInput{
		FirstName:          f.first,
		LastName:           f.last,
		Name:               f.name,
		PreferredName:      f.preferred,
		HousingStatus:      f.housing,
		Age:                f.age,
		Gender:             f.gender,
		Location:           f.location,
		Notes:              f.notes,
		BicycleDescription: f.bicycle,
	}
}

// patch includes only the flags that were given, so that an explicit empty
// value can clear a field.
func (f *guestFlags) patch(fs *pflag.FlagSet) guests.GuestPatch {
	set := func(name, v string) *string {
		if !fs.Changed(name) {
			return nil
		}
		return &v
	}
	return guests.GuestPatch{
		FirstName:          set("first", f.first),
		LastName:           set("last", f.last),
		Name:               set("name", f.name),
		PreferredName:      set("preferred", f.preferred),
		HousingStatus:      set("housing", f.housing),
		Age:                set("age", f.age),
		Gender:             set("gender", f.gender),
		Location:           set("location", f.location),
		Notes:              set("notes", f.notes),
		BicycleDescription: set("bicycle", f.bicycle),
	}
}

type banOptions struct {
	until, reason                   string
	bicycle, meals, shower, laundry bool
}

func banGuest(ctx context.Context, s *guests.Store, loc *time.Location, key string, opts banOptions, out io.Writer) error {
	g, err := findGuest(s, key)
	if err != nil {
		return err
	}
	until, err := guests.ParseBanTime(opts.until, loc)
	if err != nil {
		return &guests.Error{
			Kind:        guests.KindValidation,
			UserMessage: fmt.Sprintf("Could not read the ban end time %q.", opts.until),
			InternalErr: err,
		}
	}
	g, err = s.BanGuest(ctx, g.ID, guests.BanOptions{
		Until:             until,
		Reason:            opts.reason,
		BannedFromBicycle: opts.bicycle,
		BannedFromMeals:   opts.meals,
		BannedFromShower:  opts.shower,
		BannedFromLaundry: opts.laundry,
	})
	if err != nil {
		return err
	}
	printGuest(out, "Banned", g)
	return nil
}

func listGuests(ctx context.Context, s *guests.Store, query string, bannedOnly bool, out io.Writer) error {
	list := s.Guests()
	if query != "" {
		found, err := s.SearchGuests(ctx, query)
		if err != nil {
			return fmt.Errorf("[SearchGuests]: %w", err)
		}
		list = found
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tNAME\tAGE\tHOUSING\tLOCATION\tBANNED\tLINKED\tWARNINGS")
	for _, g := range list {
		if bannedOnly && !g.IsBanned {
			continue
		}
		banned := ""
		if g.IsBanned && g.BannedUntil != nil {
			banned = "until " + g.BannedUntil.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
			g.GuestID, g.DisplayName(), g.Age, g.HousingStatus, g.Location, banned,
			s.GetLinkedGuestsCount(g.ID), len(s.GetWarningsForGuest(g.ID)),
		)
	}
	return tw.Flush()
}

func exportGuests(s *guests.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[Create]: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = rowfile.WriteXLSX(f, s.Guests())
	default:
		err = rowfile.WriteCSV(f, s.Guests())
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("[write roster]: %w", err)
	}
	return f.Close()
}

func printGuest(out io.Writer, verb string, g guests.Guest) {
	_, _ = fmt.Fprintf(out, "%v %v %v (id %v)\n", verb, g.GuestID, g.DisplayName(), g.ID)
}
