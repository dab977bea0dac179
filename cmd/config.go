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
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/lib/conv"
	"github.com/hopeservices/guestdesk/lib/log"
	"github.com/joho/godotenv"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// mustInitConfig starts from the defaults, applies the env file and
// environment, and validates the result.
func mustInitConfig(envFileName string) *conf.GuestDeskConfig {
	cfg := mustApplyEnvConfig(conf.Default(), envFileName)
	must(cfg.Validate())
	configureLogger(cfg)
	return cfg
}

// mustApplyEnvConfig reads in the .env file and ENV variables and applies those to baseCfg.
func mustApplyEnvConfig(baseCfg *conf.GuestDeskConfig, envFileName string) *conf.GuestDeskConfig {
	err := godotenv.Load(envFileName)

	if err != nil && !os.IsNotExist(err) {
		must(err)
	}
	if os.IsNotExist(err) {
		// if it's not the default
		if envFileName != envFileDefaultName {
			must(fmt.Errorf("envfile '%v' was set by the caller, but the file was not found", envFileName))
		}
		slog.Debug("No .env file found. Carrying on with defaults and environment variable overrides")
	}

	if v, ok := lookupEnv("GUESTDESK_DEPLOYMENT"); ok {
		baseCfg.Core.Deployment = conf.DeploymentType(strings.ToLower(v))
	}
	if v, ok := lookupEnv("GUESTDESK_LOG_LEVEL"); ok {
		baseCfg.Core.LogLevel = v
	}
	if v, ok := lookupEnv("GUESTDESK_TIME_ZONE"); ok {
		baseCfg.Core.TimeZone = v
	}
	if v, ok := lookupEnv("GUESTDESK_ACTION_LOG_ENABLED"); ok {
		baseCfg.Core.ActionLogEnabled = strings.EqualFold(v, "true")
	}

	if v, ok := lookupEnv("GUESTDESK_REMOTE"); ok {
		baseCfg.Remote.Type = conf.RemoteStoreType(strings.ToLower(v))
	}
	if v, ok := lookupEnv("GUESTDESK_MIGRATE"); ok {
		baseCfg.Remote.Migrate = strings.EqualFold(v, "true")
	}
	if v, ok := lookupEnv("GUESTDESK_PAGE_SIZE"); ok {
		baseCfg.Remote.PageSize = mustAtoi(v)
	}
	if v, ok := lookupEnv("GUESTDESK_MIRROR_PROXIES"); ok {
		baseCfg.Remote.MirrorProxies = strings.EqualFold(v, "true")
	}
	if v, ok := lookupEnv("GUESTDESK_DB_HOST_NAME"); ok {
		baseCfg.Remote.MariaDB.HostName = v
	}
	if v, ok := lookupEnv("GUESTDESK_DB_HOST_PORT"); ok {
		baseCfg.Remote.MariaDB.HostPort, err = conv.ParseInt32(v)
		must(err)
	}
	if v, ok := lookupEnv("GUESTDESK_DB_DATABASE"); ok {
		baseCfg.Remote.MariaDB.Database = v
	}
	if v, ok := lookupEnv("GUESTDESK_DB_USER_NAME"); ok {
		baseCfg.Remote.MariaDB.Username = v
	}
	if v, ok := lookupEnv("GUESTDESK_DB_PASSWORD"); ok {
		baseCfg.Remote.MariaDB.Password = v
	}
	if v, ok := lookupEnv("GUESTDESK_POSTGRES_DSN"); ok {
		baseCfg.Remote.Postgres.DSN = v
	}
	if v, ok := lookupEnv("GUESTDESK_SQLITE_PATH"); ok {
		baseCfg.Remote.SQLite.Path = v
	}
	if v, ok := lookupEnv("GUESTDESK_POSTGREST_URL"); ok {
		baseCfg.Remote.PostgREST.URL = v
	}
	if v, ok := lookupEnv("GUESTDESK_POSTGREST_API_KEY"); ok {
		baseCfg.Remote.PostgREST.APIKey = v
	}
	if v, ok := lookupEnv("GUESTDESK_POSTGREST_TIMEOUT"); ok {
		// These values must be given with a time unit, e.g. "20s" or "1m30s".
		dur, err := time.ParseDuration(v)
		must(err)
		baseCfg.Remote.PostgREST.Timeout = dur
	}

	if v, ok := lookupEnv("GUESTDESK_IMPORT_LOOKUP_CHUNK"); ok {
		baseCfg.Import.LookupChunkSize = mustAtoi(v)
	}
	if v, ok := lookupEnv("GUESTDESK_IMPORT_INSERT_CHUNK"); ok {
		baseCfg.Import.InsertChunkSize = mustAtoi(v)
	}

	if v, ok := lookupEnv("GUESTDESK_HOSTNAME"); ok {
		baseCfg.Feed.Host = v
	}
	if v, ok := lookupEnv("GUESTDESK_PORT"); ok {
		baseCfg.Feed.Port, err = conv.ParseInt32(v)
		must(err)
	}
	if v, ok := lookupEnv("GUESTDESK_SEARCH_TTL"); ok {
		dur, err := time.ParseDuration(v)
		must(err)
		baseCfg.Feed.SearchTTL = dur
	}
	if v, ok := lookupEnv("GUESTDESK_MAX_REQUEST_BYTES"); ok {
		n, err := conv.ParseInt64(v)
		must(err)
		baseCfg.Feed.MaxRequestBytes = n
	}

	if v, ok := lookupEnv("GUESTDESK_REFRESH_SCHEDULE"); ok {
		baseCfg.Refresh.Schedule = v
	}
	return baseCfg
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	// When doing `docker run --env-file .env`, Docker passes in vars without removing
	// the double-quotes, e.g. GUESTDESK_REMOTE="sqlite" would actually get passed into
	// the program with the double-quotes in place.
	// https://github.com/docker/cli/issues/3630
	if strings.HasPrefix(v, "\"") && strings.HasSuffix(v, "\"") {
		v = v[1 : len(v)-1]
	}
	return v, true
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	must(err)
	return n
}

func configureLogger(cfg *conf.GuestDeskConfig) {
	var logLevel slog.Level
	must(logLevel.UnmarshalText([]byte(cfg.Core.LogLevel)))
	logger := slog.New(
		log.NewHandler(
			&slog.HandlerOptions{Level: logLevel},
		),
	)
	slog.SetDefault(logger)
}

// must logs an error and panics. This should only be done for
// startup errors, not after the server is up and running.
func must(err error) {
	if err != nil {
		panic("got a startup error: " + err.Error())
	}
}

func stderrPrintf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}
