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
	"embed"
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/lib/conv"
	"log/slog"
	"path"
	"strings"
)

// Schemas holds the bootstrap schema of each dialect as schema/<dialect>/current.sql,
// along with the numbered steps that upgrade an older database to it.
//
//go:embed schema
var Schemas embed.FS

type schemaVersion int32

// CurrentSchema returns the full bootstrap schema for a dialect.
func CurrentSchema(dialect Dialect) (string, error) {
	b, err := Schemas.ReadFile(path.Join("schema", string(dialect), "current.sql"))
	if err != nil {
		return "", fmt.Errorf("[ReadFile]: %w", err)
	}
	return string(b), nil
}

// ProxyMirrorTrigger returns the Postgres trigger that writes the reverse
// guest_proxies row on insert and removes it on delete. It is installed by
// hand on databases served through PostgREST, never by Migrate.
func ProxyMirrorTrigger() (string, error) {
	b, err := Schemas.ReadFile(path.Join("schema", string(DialectPostgres), "proxy_mirror.sql"))
	if err != nil {
		return "", fmt.Errorf("[ReadFile]: %w", err)
	}
	return string(b), nil
}

func repoSchemaVersion(dialect Dialect) (schemaVersion, error) {
	current, err := CurrentSchema(dialect)
	if err != nil {
		return 0, fmt.Errorf("[CurrentSchema]: %w", err)
	}
	// Find the line
	// `insert into SCHEMA_INFO (VERSION) values (2);`
	// and extract the 2
	insert := "insert into SCHEMA_INFO (VERSION) values ("
	afterInsert := strings.SplitN(current, insert, 2)
	if len(afterInsert) != 2 {
		return 0, errors.New("couldn't find SCHEMA_INFO insert in current.sql")
	}
	endParen := strings.SplitN(afterInsert[1], ")", 2)
	if len(endParen) != 2 {
		return 0, errors.New("couldn't find `)` after SCHEMA_INFO insert in current.sql")
	}
	vers, err := conv.ParseInt32(strings.TrimSpace(endParen[0]))
	return schemaVersion(vers), err
}

func dbSchemaVersion(ctx context.Context, db *sql.DB) (schemaVersion, error) {
	// SQLite hands back an int64 whatever the declared column type
	var version int64
	err := db.QueryRowContext(ctx, "select VERSION from SCHEMA_INFO").Scan(&version)
	if err == nil {
		return schemaVersion(conv.MustInt32(version)), nil
	}
	if isUndefinedTable(err) {
		slog.Info("No SCHEMA_INFO table found. This must be a new database.")
		return 0, nil
	}
	return 0, fmt.Errorf("[Scan]: %w", err)
}

func runScript(ctx context.Context, db *sql.DB, script string) error {
	_, err := loggedQuerier{db}.ExecContext(ctx, script)
	if err != nil {
		return fmt.Errorf("[ExecContext]: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB, dialect Dialect, to, from schemaVersion) error {
	if from == 0 {
		current, err := CurrentSchema(dialect)
		if err != nil {
			return fmt.Errorf("[CurrentSchema]: %w", err)
		}
		if err := runScript(ctx, db, current); err != nil {
			return fmt.Errorf("[runScript]: %w", err)
		}
		slog.Info("Migrated schema version", "to", to, "from", from, "dialect", dialect)
		return nil
	}
	for step := from + 1; step <= to; step++ {
		name := path.Join("schema", string(dialect), fmt.Sprintf("%02d-from-%02d.sql", step, step-1))
		b, err := Schemas.ReadFile(name)
		if err != nil {
			return fmt.Errorf("[ReadFile]: %w", err)
		}
		if err := runScript(ctx, db, string(b)); err != nil {
			return fmt.Errorf("[runScript]: %w", err)
		}
		slog.Info("Migrated schema version", "to", step, "from", step-1, "dialect", dialect)
	}
	return nil
}

// Migrate brings the database up to the bundled schema version, creating
// the tables from scratch on an empty database.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if err := dialect.Validate(); err != nil {
		return err
	}
	dbVersion, err := dbSchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("[dbSchemaVersion]: %w", err)
	}
	repoVersion, err := repoSchemaVersion(dialect)
	if err != nil {
		return fmt.Errorf("[repoSchemaVersion]: %w", err)
	}
	slog.Info("Read schema versions", "repoVersion", repoVersion, "dbVersion", dbVersion)
	if dbVersion == repoVersion {
		// DB is up-to-date. Move along.
		return nil
	}
	if dbVersion > repoVersion {
		return fmt.Errorf("the DB schema is ahead of the schema in the code (%v > %v). Something is wrong", dbVersion, repoVersion)
	}
	if err = migrate(ctx, db, dialect, repoVersion, dbVersion); err != nil {
		return fmt.Errorf("[migrate]: %w", err)
	}

	// Check to be sure the schema version was updated.
	dbVersion, err = dbSchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("[dbSchemaVersion]: %w", err)
	}
	if dbVersion != repoVersion {
		return fmt.Errorf("failed to migrate to schema version %v. Database reports a version of %v", repoVersion, dbVersion)
	}
	return nil
}
