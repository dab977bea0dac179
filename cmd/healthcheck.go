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
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that a guestdesk feed server answers its ping endpoint",
	Long: "Check that a guestdesk feed server answers its ping endpoint.\n\n" +
		"Exits 0 when healthy, 4 when the server can't be reached, 5 on a non-200\n" +
		"status, and 6 when the response body isn't \"ack\".",
	Run: runHealthCheck,
}

var (
	serverURL          string
	healthCheckTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(healthCheckCmd)

	healthCheckCmd.Flags().StringVar(&serverURL, "server_url", "", "Base URL of the feed server, e.g. http://localhost:8080")
	healthCheckCmd.Flags().DurationVar(&healthCheckTimeout, "timeout", 5*time.Second, "How long to wait for the server")
	_ = healthCheckCmd.MarkFlagRequired("server_url")
}

func runHealthCheck(cmd *cobra.Command, _ []string) {
	os.Exit(runHealthCheckInternal(cmd.Context(), serverURL, healthCheckTimeout, cmd.OutOrStdout()))
}

func runHealthCheckInternal(ctx context.Context, base string, timeout time.Duration, out io.Writer) int {
	pingURL, err := url.JoinPath(base, "ping")
	if err != nil {
		_, _ = fmt.Fprintln(out, "bad server URL:", err)
		return 4
	}
	resp, err := resty.New().
		SetTimeout(timeout).
		R().
		SetContext(ctx).
		Get(pingURL)
	switch {
	case err != nil:
		_, _ = fmt.Fprintln(out, "could not reach the server:", err)
		return 4
	case resp.StatusCode() != http.StatusOK:
		_, _ = fmt.Fprintln(out, "wanted status code 200, got", resp.StatusCode())
		return 5
	case strings.TrimSpace(resp.String()) != "ack":
		_, _ = fmt.Fprintf(out, "wanted a response of 'ack', got '%v'\n", resp.String())
		return 6
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}
