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
	"github.com/hopeservices/guestdesk/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestMustApplyEnvConfig should be the only test in the whole repo that
// so freely plays around with environment variables, since parallel
// testing means other tests will notice the result of "Setenvs" that
// occur at the same time.
//
// All other tests should use a conf.GuestDeskConfig struct instead, as that
// is unaffected by environment variables changing later.
func TestMustApplyEnvConfig(t *testing.T) {
	t.Setenv("GUESTDESK_DEPLOYMENT", "Staging")
	t.Setenv("GUESTDESK_LOG_LEVEL", "WARN")
	t.Setenv("GUESTDESK_TIME_ZONE", "UTC")
	t.Setenv("GUESTDESK_ACTION_LOG_ENABLED", "TRUE")
	t.Setenv("GUESTDESK_REMOTE", "MariaDB")
	t.Setenv("GUESTDESK_MIGRATE", "true")
	t.Setenv("GUESTDESK_PAGE_SIZE", "250")
	t.Setenv("GUESTDESK_MIRROR_PROXIES", "false")
	t.Setenv("GUESTDESK_DB_HOST_NAME", "db")
	t.Setenv("GUESTDESK_DB_HOST_PORT", "555")
	t.Setenv("GUESTDESK_DB_DATABASE", "shelter")
	t.Setenv("GUESTDESK_DB_USER_NAME", "me")
	t.Setenv("GUESTDESK_DB_PASSWORD", `"boo"`)
	t.Setenv("GUESTDESK_POSTGRES_DSN", "postgres://x")
	t.Setenv("GUESTDESK_SQLITE_PATH", "/tmp/g.db")
	t.Setenv("GUESTDESK_POSTGREST_URL", "https://rest.example")
	t.Setenv("GUESTDESK_POSTGREST_API_KEY", "key")
	t.Setenv("GUESTDESK_POSTGREST_TIMEOUT", "12s")
	t.Setenv("GUESTDESK_IMPORT_LOOKUP_CHUNK", "40")
	t.Setenv("GUESTDESK_IMPORT_INSERT_CHUNK", "60")
	t.Setenv("GUESTDESK_HOSTNAME", "0.0.0.0")
	t.Setenv("GUESTDESK_PORT", "9090")
	t.Setenv("GUESTDESK_SEARCH_TTL", "90s")
	t.Setenv("GUESTDESK_MAX_REQUEST_BYTES", "2048")
	t.Setenv("GUESTDESK_REFRESH_SCHEDULE", "*/10 * * * *")

	cfg := mustApplyEnvConfig(conf.Default(), envFileDefaultName)

	assert.Equal(t, conf.DeploymentTypeStaging, cfg.Core.Deployment)
	assert.Equal(t, "WARN", cfg.Core.LogLevel)
	assert.Equal(t, "UTC", cfg.Core.TimeZone)
	assert.True(t, cfg.Core.ActionLogEnabled)
	assert.Equal(t, conf.RemoteStoreMariaDB, cfg.Remote.Type)
	assert.True(t, cfg.Remote.Migrate)
	assert.Equal(t, 250, cfg.Remote.PageSize)
	assert.False(t, cfg.Remote.MirrorProxies)
	assert.Equal(t, "db", cfg.Remote.MariaDB.HostName)
	assert.Equal(t, int32(555), cfg.Remote.MariaDB.HostPort)
	assert.Equal(t, "shelter", cfg.Remote.MariaDB.Database)
	assert.Equal(t, "me", cfg.Remote.MariaDB.Username)
	assert.Equal(t, "boo", cfg.Remote.MariaDB.Password)
	assert.Equal(t, "postgres://x", cfg.Remote.Postgres.DSN)
	assert.Equal(t, "/tmp/g.db", cfg.Remote.SQLite.Path)
	assert.Equal(t, "https://rest.example", cfg.Remote.PostgREST.URL)
	assert.Equal(t, "key", cfg.Remote.PostgREST.APIKey)
	assert.Equal(t, 12*time.Second, cfg.Remote.PostgREST.Timeout)
	assert.Equal(t, 40, cfg.Import.LookupChunkSize)
	assert.Equal(t, 60, cfg.Import.InsertChunkSize)
	assert.Equal(t, "0.0.0.0", cfg.Feed.Host)
	assert.Equal(t, int32(9090), cfg.Feed.Port)
	assert.Equal(t, 90*time.Second, cfg.Feed.SearchTTL)
	assert.Equal(t, int64(2048), cfg.Feed.MaxRequestBytes)
	assert.Equal(t, "*/10 * * * *", cfg.Refresh.Schedule)
	require.NoError(t, cfg.Validate())
}

func TestMustApplyEnvConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guestdesk.env")
	require.NoError(t, os.WriteFile(path, []byte("GUESTDESK_SQLITE_PATH_FROM_FILE=yes\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("GUESTDESK_SQLITE_PATH_FROM_FILE") })

	_ = mustApplyEnvConfig(conf.Default(), path)
	v, ok := lookupEnv("GUESTDESK_SQLITE_PATH_FROM_FILE")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)

	assert.Panics(t, func() {
		mustApplyEnvConfig(conf.Default(), filepath.Join(t.TempDir(), "missing.env"))
	})
}
