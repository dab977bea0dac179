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

package conf

import (
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/lib/redact"
	"github.com/robfig/cron/v3"
	"time"
)

// Default is the base configuration for guestdesk. It gets overridden by
// values in a .env file, then by environment variables.
func Default() *GuestDeskConfig {
	return &GuestDeskConfig{
		Core: ConfigCore{
			Deployment: DeploymentTypeDev,
			LogLevel:   "INFO",
			TimeZone:   "Local",
		},
		Remote: RemoteStore{
			Type:          RemoteStoreNone,
			PageSize:      1000,
			MirrorProxies: true,
			MariaDB: MariaDBStore{
				HostName: "localhost",
				HostPort: 3306,
				Database: "guestdesk",
			},
			SQLite: SQLiteStore{
				Path: "guestdesk.db",
			},
			PostgREST: PostgRESTStore{
				Timeout: 30 * time.Second,
			},
		},
		Import: ImportConfig{
			LookupChunkSize: 100,
			InsertChunkSize: 100,
		},
		Feed: FeedConfig{
			Host:            "localhost",
			Port:            8080,
			SearchTTL:       5 * time.Minute,
			MaxRequestBytes: 1 << 20,
		},
		Refresh: RefreshConfig{
			Schedule: "",
		},
	}
}

// Validate should be called after a GuestDeskConfig has been fully configured.
// It also clears out the settings of the remote backends that aren't in use.
func (c *GuestDeskConfig) Validate() error {
	var errs []error
	errs = append(errs, c.Core.Deployment.Validate())
	errs = append(errs, c.Remote.Type.Validate())
	if _, err := time.LoadLocation(c.Core.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("invalid time zone %q: %w", c.Core.TimeZone, err))
	}
	if c.Remote.Type != RemoteStoreMariaDB {
		c.Remote.MariaDB = MariaDBStore{}
	}
	if c.Remote.Type != RemoteStorePostgres {
		c.Remote.Postgres = PostgresStore{}
	} else if c.Remote.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres remote store requires a DSN"))
	}
	if c.Remote.Type != RemoteStoreSQLite {
		c.Remote.SQLite = SQLiteStore{}
	} else if c.Remote.SQLite.Path == "" {
		errs = append(errs, errors.New("sqlite remote store requires a file path"))
	}
	if c.Remote.Type != RemoteStorePostgREST {
		c.Remote.PostgREST = PostgRESTStore{}
	} else if c.Remote.PostgREST.URL == "" || c.Remote.PostgREST.APIKey == "" {
		errs = append(errs, errors.New("postgrest remote store requires a URL and an API key"))
	}
	if c.Remote.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %v", c.Remote.PageSize))
	}
	if c.Import.LookupChunkSize <= 0 || c.Import.InsertChunkSize <= 0 {
		errs = append(errs, errors.New("import chunk sizes must be positive"))
	}
	if c.Refresh.Schedule != "" {
		if c.Remote.Type == RemoteStoreNone {
			errs = append(errs, errors.New("a refresh schedule needs a remote store to refresh from"))
		}
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid refresh schedule %q: %w", c.Refresh.Schedule, err))
		}
	}
	return errors.Join(errs...)
}

// Location is the time zone for ban times given without one.
func (c *GuestDeskConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Core.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *GuestDeskConfig) String() string {
	b, err := redact.ToBytes(c)
	if err != nil {
		return fmt.Sprintf("unprintable config: %v", err)
	}
	return string(b)
}

type GuestDeskConfig struct {
	Core    ConfigCore
	Remote  RemoteStore
	Import  ImportConfig
	Feed    FeedConfig
	Refresh RefreshConfig
}

type DeploymentType string

type RemoteStoreType string

const (
	DeploymentTypeDev        DeploymentType = "dev"
	DeploymentTypeStaging    DeploymentType = "staging"
	DeploymentTypeProduction DeploymentType = "production"

	// RemoteStoreNone runs guestdesk in local mode, with nothing persisted.
	RemoteStoreNone      RemoteStoreType = "none"
	RemoteStoreMariaDB   RemoteStoreType = "mariadb"
	RemoteStorePostgres  RemoteStoreType = "postgres"
	RemoteStoreSQLite    RemoteStoreType = "sqlite"
	RemoteStorePostgREST RemoteStoreType = "postgrest"
)

func (d DeploymentType) Validate() error {
	switch d {
	case DeploymentTypeDev, DeploymentTypeStaging, DeploymentTypeProduction:
		return nil
	default:
		return fmt.Errorf("unknown deployment type %v", d)
	}
}

func (r RemoteStoreType) Validate() error {
	switch r {
	case RemoteStoreNone, RemoteStoreMariaDB, RemoteStorePostgres, RemoteStoreSQLite, RemoteStorePostgREST:
		return nil
	default:
		return fmt.Errorf("unknown remote store type %v", r)
	}
}

type ConfigCore struct {
	Deployment DeploymentType

	// LogLevel should be one of DEBUG, INFO, WARN, or ERROR
	LogLevel string

	// TimeZone is an IANA zone name, or "Local".
	TimeZone string

	// ActionLogEnabled records every registry change in the remote store's
	// guest_events table. It has no effect in local mode.
	ActionLogEnabled bool
}

type RemoteStore struct {
	Type RemoteStoreType

	// Migrate creates or upgrades the bundled schema on startup. It applies to
	// the SQL backends only.
	Migrate bool

	// PageSize is the number of rows requested per page when loading.
	PageSize int

	// MirrorProxies makes the SQL backends write the reverse row of every
	// linked-guest relation, standing in for the database trigger that a
	// PostgREST deployment has.
	MirrorProxies bool

	MariaDB   MariaDBStore
	Postgres  PostgresStore
	SQLite    SQLiteStore
	PostgREST PostgRESTStore
}

type MariaDBStore struct {
	HostName string
	HostPort int32
	Database string
	Username string
	Password string `redact:"true"`
}

type PostgresStore struct {
	DSN string `redact:"true"`
}

type SQLiteStore struct {
	Path string
}

type PostgRESTStore struct {
	URL     string
	APIKey  string `redact:"true"`
	Timeout time.Duration
}

type ImportConfig struct {
	LookupChunkSize int
	InsertChunkSize int
}

type FeedConfig struct {
	Host string
	Port int32

	// SearchTTL makes the guest search index expire on its own, on top of
	// being rebuilt after every change. Zero means it only expires on change.
	SearchTTL time.Duration

	// MaxRequestBytes is a hard limit on request sizes.
	MaxRequestBytes int64
}

type RefreshConfig struct {
	// Schedule is a standard five-field cron expression, or empty for no
	// background refresh.
	Schedule string
}
