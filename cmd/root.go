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

// Package cmd is the guestdesk command line.
package cmd

import (
	"context"
	"github.com/spf13/cobra"
	"os"
)

const (
	envfileFlagName    = "envfile"
	envFileDefaultName = ".env"
)

var envFilename string

var rootCmd = &cobra.Command{
	Use:   "guestdesk",
	Short: "Guest registry for drop-in service desks",
	Long: "Guest registry for drop-in service desks\n\n" +
		"Configuration is read from GUESTDESK_* environment variables, which may be set in an env file.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFilename, envfileFlagName, envFileDefaultName,
		"An env file from which to load guestdesk configuration. "+
			"Defaults to '.env' in the current directory")
}

// Execute runs the command named by os.Args.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
