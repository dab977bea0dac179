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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/go-sql-driver/mysql"
	"github.com/hopeservices/guestdesk/conf"
	"github.com/hopeservices/guestdesk/remote"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"log/slog"
	"net/url"
)

// Open connects to the configured remote store, migrating its schema first
// if asked to. It returns a nil Remote for conf.RemoteStoreNone, which puts
// the guest store in local mode. The returned close func is never nil.
func Open(ctx context.Context, cfg conf.RemoteStore) (remote.Remote, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.Type {
	case conf.RemoteStoreNone:
		slog.Info("No remote store configured. Running in local mode")
		return nil, noClose, nil
	case conf.RemoteStorePostgREST:
		slog.Info("Using PostgREST remote store", "url", cfg.PostgREST.URL)
		return NewPostgREST(cfg.PostgREST.URL, cfg.PostgREST.APIKey, cfg.PostgREST.Timeout), noClose, nil
	}

	db, dialect, err := SqlDB(ctx, cfg)
	if err != nil {
		return nil, noClose, fmt.Errorf("[SqlDB]: %w", err)
	}
	if cfg.Migrate {
		if err = Migrate(ctx, db, dialect); err != nil {
			shut(db)
			return nil, noClose, fmt.Errorf("[Migrate]: %w", err)
		}
	} else {
		slog.Info("Schema migration not requested")
	}
	r, err := NewSQL(db, dialect, WithMirrorProxies(cfg.MirrorProxies))
	if err != nil {
		shut(db)
		return nil, noClose, fmt.Errorf("[NewSQL]: %w", err)
	}
	return r, db.Close, nil
}

// SqlDB opens and pings the database of one of the SQL remote store types.
func SqlDB(ctx context.Context, cfg conf.RemoteStore) (*sql.DB, Dialect, error) {
	var db *sql.DB
	var dialect Dialect
	var err error
	switch cfg.Type {
	case conf.RemoteStoreMariaDB:
		dialect = DialectMariaDB
		mariaCfg := mysql.NewConfig()
		mariaCfg.User = cfg.MariaDB.Username
		mariaCfg.Passwd = cfg.MariaDB.Password
		mariaCfg.Net = "tcp"
		mariaCfg.Addr = fmt.Sprintf("%v:%v", cfg.MariaDB.HostName, cfg.MariaDB.HostPort)
		mariaCfg.DBName = cfg.MariaDB.Database
		mariaCfg.ParseTime = true
		// The schema scripts hold many statements each.
		mariaCfg.MultiStatements = true
		db, err = sql.Open("mysql", mariaCfg.FormatDSN())
		if err == nil {
			// Some arbitrary value. MariaDB errors out if it gets too many
			// parallel requests.
			db.SetMaxOpenConns(20)
		}
	case conf.RemoteStorePostgres:
		dialect = DialectPostgres
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
	case conf.RemoteStoreSQLite:
		dialect = DialectSQLite
		dsn := "file:" + cfg.SQLite.Path + "?" + url.Values{
			"_foreign_keys": {"on"},
			"_busy_timeout": {"5000"},
		}.Encode()
		db, err = sql.Open("sqlite3", dsn)
		if err == nil {
			// SQLite allows one writer at a time anyway.
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, "", fmt.Errorf("remote store type %v is not a SQL database", cfg.Type)
	}
	if err != nil {
		return nil, "", fmt.Errorf("[sql.Open]: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		shut(db)
		return nil, "", fmt.Errorf("[db.PingContext]: %w", err)
	}
	slog.Info("Connected to remote store", "dialect", dialect)
	return db, dialect, nil
}
