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

package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/hopeservices/guestdesk/guests"
	"log/slog"
	"net/http"
	"time"
)

// ApplicationProblemMediaType is described by RFC 9457.
// https://www.rfc-editor.org/rfc/rfc9457.html
const ApplicationProblemMediaType = "application/problem+json"

// Problem is the body of every error response.
type Problem struct {
	Status    int       `json:"status"`
	Title     string    `json:"title,omitempty"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

type HTTPError struct {
	Code            int
	ResponseMessage string
	InternalErr     error
	// ExpectedError marks errors that happen in normal operation, like a
	// lookup of a guest that was just removed. They aren't logged.
	ExpectedError bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(
		"HTTP %v: ResponseMessage:'%v', InternalError:'%v'",
		e.Code, e.ResponseMessage, e.InternalErr,
	)
}

func newHTTPError(code int, message string, internalErr error) *HTTPError {
	if internalErr == nil {
		internalErr = errors.New(message)
	}
	return &HTTPError{
		Code:            code,
		ResponseMessage: message,
		InternalErr:     internalErr,
	}
}

func badRequest(userMessage string, err error) *HTTPError {
	return newHTTPError(http.StatusBadRequest, userMessage, err)
}

func notFound(userMessage string, err error) *HTTPError {
	return newHTTPError(http.StatusNotFound, userMessage, err).expected()
}

func internalServerError(userMessage string, err error) *HTTPError {
	return newHTTPError(http.StatusInternalServerError, userMessage, err)
}

// From wraps the InternalErr with the name of the function that returned it.
func (e *HTTPError) From(source string) *HTTPError {
	return &HTTPError{
		InternalErr:     fmt.Errorf("%v: %w", source, e.InternalErr),
		Code:            e.Code,
		ResponseMessage: e.ResponseMessage,
		ExpectedError:   e.ExpectedError,
	}
}

func (e *HTTPError) expected() *HTTPError {
	e.ExpectedError = true
	return e
}

func (e *HTTPError) Unwrap() error {
	return e.InternalErr
}

func (e *HTTPError) WriteResponse(w http.ResponseWriter) {
	if !e.ExpectedError {
		slog.Error("Writing error HTTP response",
			"code", e.Code,
			"message", e.ResponseMessage,
			"internalError", e.InternalErr,
		)
	}
	p := Problem{
		Status:    e.Code,
		Title:     http.StatusText(e.Code),
		Detail:    e.ResponseMessage,
		Timestamp: time.Now(),
	}
	w.Header().Set("Content-Type", ApplicationProblemMediaType)
	w.WriteHeader(e.Code)
	marshalled, err := json.Marshal(p)
	if err != nil {
		slog.Error("Failed to marshal problem response", "err", err)
		marshalled = []byte(`{"detail":"Failed to marshal problem response"}`)
	}
	_, _ = w.Write(marshalled)
}

// fromRegistryError picks a status for an error returned by the guest
// registry, keeping its staff-facing message as the response detail.
func fromRegistryError(err error) *HTTPError {
	msg := guests.UserMessage(err)
	switch {
	case errors.Is(err, guests.ErrNotFound):
		return notFound(msg, err)
	case errors.Is(err, guests.ErrValidation):
		return badRequest(msg, err).expected()
	case errors.Is(err, guests.ErrDuplicate):
		return newHTTPError(http.StatusConflict, msg, err).expected()
	case errors.Is(err, guests.ErrRemoteWrite), errors.Is(err, guests.ErrPartialBatch):
		return newHTTPError(http.StatusBadGateway, msg, err)
	}
	return internalServerError(msg, err)
}
