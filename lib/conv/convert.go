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

package conv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when a remote value arrives as text. Postgres and
// PostgREST send RFC 3339, MariaDB and SQLite send the space-separated forms.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func ParseInt32(s string) (int32, error) {
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(i), nil
}

func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustInt32 converts an int64 into an int32, and it panics if this would cause
// an overflow. This is intended for use when the input is known to be within
// bounds, because panics are bad.
func MustInt32(i int64) int32 {
	if i < math.MinInt32 || i > math.MaxInt32 {
		panic("int32 overflow")
	}
	return int32(i)
}

// AsString converts a value read from a remote row into a string. Nil becomes "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// AsBool converts a value read from a remote row into a bool. MariaDB hands
// back TINYINTs and JSON decoding hands back float64s, so numbers are nonzero-is-true.
func AsBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case int32:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case []byte:
		return parseBoolText(string(t))
	case string:
		return parseBoolText(t)
	default:
		return false
	}
}

func parseBoolText(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// AsInt converts a value read from a remote row into an int. Unparseable values become 0.
func AsInt(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		return t
	case int64:
		return int(t)
	case int32:
		return int(t)
	case float64:
		return int(t)
	case []byte:
		i, _ := strconv.Atoi(strings.TrimSpace(string(t)))
		return i
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(t))
		return i
	default:
		return 0
	}
}

// AsTime converts a value read from a remote row into a time.Time. The bool
// is false when the value was nil, empty, or unparseable.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case []byte:
		return ParseTime(string(t))
	case string:
		return ParseTime(t)
	default:
		return time.Time{}, false
	}
}

// AsTimePtr is like AsTime, but returns nil for missing values.
func AsTimePtr(v any) *time.Time {
	t, ok := AsTime(v)
	if !ok {
		return nil
	}
	return &t
}

// ParseTime parses a timestamp in any of the formats the remote backends produce.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimePtrValue converts an optional time into a value suitable for writing to a remote row.
func TimePtrValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
