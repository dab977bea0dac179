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

package remote

import (
	"errors"
	"fmt"
)

// SQLSTATE-style codes that the backends normalize their native errors to.
const (
	CodeInvalidText      = "22P02"
	CodeUndefinedTable   = "42P01"
	CodeUndefinedTableMy = "42S02"
	CodeUniqueViolation  = "23505"
	CodeIntegrityMy      = "23000"
	CodeNotNullViolation = "23502"
	CodeCheckViolation   = "23514"
	CodeNoRows           = "PGRST116"
)

// Error is a failure reported by, or while talking to, a remote backend.
type Error struct {
	Op      string
	Table   string
	Code    string
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	s := fmt.Sprintf("remote %v %v", e.Op, e.Table)
	if e.Code != "" {
		s += " (" + e.Code + ")"
	}
	if msg != "" {
		s += ": " + msg
	}
	if e.Details != "" {
		s += " [" + e.Details + "]"
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the SQLSTATE-style code of the first *Error in err's chain,
// or the empty string.
func CodeOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// NewError is a convenience for backends that have only a message.
func NewError(op, table, code, message string) *Error {
	return &Error{Op: op, Table: table, Code: code, Message: message}
}
