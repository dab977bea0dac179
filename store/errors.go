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
	"errors"
	"github.com/go-sql-driver/mysql"
	"github.com/hopeservices/guestdesk/remote"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"strings"
)

// MariaDB error numbers that get a more specific code than their SQLSTATE.
const (
	myErrBadNull      = 1048
	myErrTruncated    = 1265
	myErrCheck        = 4025
	myErrNoSuchTable  = 1146
	myErrDuplicateKey = 1062
)

// sqlError turns a driver error into a *remote.Error with a Postgres-style
// code wherever the driver's error maps onto one.
func sqlError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var re *remote.Error
	if errors.As(err, &re) {
		return err
	}
	out := &remote.Error{Op: op, Table: table, Err: err}

	var myErr *mysql.MySQLError
	var pgErr *pgconn.PgError
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &myErr):
		out.Code = string(myErr.SQLState[:])
		out.Message = myErr.Message
		switch myErr.Number {
		case myErrBadNull:
			out.Code = remote.CodeNotNullViolation
		case myErrTruncated:
			out.Code = remote.CodeInvalidText
		case myErrCheck:
			out.Code = remote.CodeCheckViolation
		case myErrNoSuchTable:
			out.Code = remote.CodeUndefinedTableMy
		case myErrDuplicateKey:
			out.Code = remote.CodeIntegrityMy
		}
	case errors.As(err, &pgErr):
		out.Code = pgErr.Code
		out.Message = pgErr.Message
		out.Details = pgErr.Detail
	case errors.As(err, &liteErr):
		out.Message = liteErr.Error()
		out.Code = sqliteCode(liteErr)
	}
	return out
}

func sqliteCode(err sqlite3.Error) string {
	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return remote.CodeUniqueViolation
	case sqlite3.ErrConstraintNotNull:
		return remote.CodeNotNullViolation
	case sqlite3.ErrConstraintCheck:
		return remote.CodeCheckViolation
	}
	if strings.Contains(err.Error(), "no such table") {
		return remote.CodeUndefinedTable
	}
	return ""
}

// isUndefinedTable reports whether err says a table does not exist, on any
// of the supported databases.
func isUndefinedTable(err error) bool {
	switch remote.CodeOf(sqlError("", "", err)) {
	case remote.CodeUndefinedTable, remote.CodeUndefinedTableMy:
		return true
	}
	return false
}
