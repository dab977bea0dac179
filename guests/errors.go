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

package guests

import (
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/remote"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicate
	KindNotFound
	KindRemoteWrite
	KindPartialBatch
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not found"
	case KindRemoteWrite:
		return "remote write"
	case KindPartialBatch:
		return "partial batch"
	}
	return "unknown"
}

// Error is what every registry operation returns on failure. UserMessage is
// fit to show staff as-is; InternalErr carries the diagnostic detail.
type Error struct {
	Kind        Kind
	UserMessage string
	InternalErr error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrDuplicate    = &Error{Kind: KindDuplicate}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrRemoteWrite  = &Error{Kind: KindRemoteWrite}
	ErrPartialBatch = &Error{Kind: KindPartialBatch}
)

func (e *Error) Error() string {
	msg := e.UserMessage
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.InternalErr != nil {
		return fmt.Sprintf("%v: %v", msg, e.InternalErr)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.InternalErr
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.UserMessage == "" && t.InternalErr == nil
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, UserMessage: fmt.Sprintf(format, args...)}
}

func duplicateError(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicate, UserMessage: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, UserMessage: fmt.Sprintf(format, args...)}
}

func remoteWriteError(userMessage string, err error) *Error {
	return &Error{Kind: KindRemoteWrite, UserMessage: userMessage, InternalErr: err}
}

// UserMessage returns the staff-facing message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.UserMessage != "" {
		return e.UserMessage
	}
	return "Something went wrong. Please try again."
}

// causeHint turns a remote constraint code into a short explanation.
func causeHint(err error) string {
	switch remote.CodeOf(err) {
	case remote.CodeInvalidText:
		return "A value did not match an allowed option (check housing status, age and gender)."
	case remote.CodeUndefinedTable, remote.CodeUndefinedTableMy:
		return "The guests table is missing from the remote store."
	case remote.CodeUniqueViolation, remote.CodeIntegrityMy:
		return "A guest with the same ID already exists."
	case remote.CodeNotNullViolation:
		return "A required field was empty."
	case remote.CodeCheckViolation:
		return "A value was rejected by a database check."
	}
	return ""
}
