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
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/feed"
	"github.com/hopeservices/guestdesk/refresh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const printConfigFlagName = "print-config"

var printConfig bool

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the guest feed",
	Long: "Serve the read-only guest feed over HTTP\n\n" +
		"The registry is loaded from the remote store at startup, and again on the refresh schedule if one is set.",
	Run: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&printConfig, printConfigFlagName, true,
		"Whether to print the redacted configuration on server startup")
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := mustInitConfig(envFilename)
	os.Exit(runServerInternal(cmd.Context(), cfg, printConfig, make(chan string, 1)))
}

// runServerInternal starts the feed server and blocks until it is terminated.
//
// The supplied channel will be provided with the address of the server at the time when
// the server is started and ready to accept connections.
func runServerInternal(
	ctx context.Context, cfg *conf.GuestDeskConfig,
	printConfig bool, listeningAddr chan<- string,
) (exitCode int) {
	if printConfig {
		stderrPrintf("Here's the final redacted configuration:\n\n%v\n\n", cfg)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	events := feed.NewEvents()

	registry, closeRemote, err := openRegistry(ctx, cfg, metrics, events)
	must(err)
	defer func() { _ = closeRemote() }()

	var scheduler *refresh.Scheduler
	if cfg.Refresh.Schedule != "" {
		scheduler, err = refresh.New(cfg.Refresh.Schedule, cfg.Location(), registry)
		must(err)
		scheduler.Start()
	}

	notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	mux := feed.AddToMux(nil, registry, events, cfg.Feed, metrics)
	s := &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// This needs to be long to support long-lived EventSource calls.
		// After this duration, a client will be disconnected and forced
		// to reconnect.
		WriteTimeout:   30 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}
	s.RegisterOnShutdown(events.Close)

	addr := fmt.Sprintf("%v:%v", cfg.Feed.Host, cfg.Feed.Port)
	listener, err := net.Listen("tcp", addr)
	must(err)
	addr = fmt.Sprintf("%v:%v", cfg.Feed.Host, listener.Addr().(*net.TCPAddr).Port)

	go func() {
		err := s.Serve(listener)
		slog.Error("Serve", "err", err)
	}()

	slog.Info("guestdesk feed is ready for connections",
		"addr", addr,
		"guests", len(registry.Guests()),
		"remote", cfg.Remote.Type,
	)

	listeningAddr <- addr
	close(listeningAddr)
	// The goroutine will hang here until the NotifyContext is done
	<-notifyCtx.Done()
	stop()
	slog.Error("Shutting down gracefully, press Ctrl+C again to force")

	// Don't parent this ctx on the notifyCtx, because it's already done.
	timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(timeoutCtx)
	}
	err = s.Shutdown(timeoutCtx)
	slog.Error("Server shut down", "err", err)
	return 69
}
