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
	"github.com/stretchr/testify/assert"
	"math"
	"testing"
	"time"
)

func TestMustInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(math.MaxInt32), MustInt32(math.MaxInt32))
	assert.Panics(t, func() {
		MustInt32(math.MaxInt32 + 1)
	})
}

func TestParseInts(t *testing.T) {
	t.Parallel()

	i32, err := ParseInt32("3306")
	assert.NoError(t, err)
	assert.Equal(t, int32(3306), i32)
	_, err = ParseInt32("99999999999")
	assert.Error(t, err)

	i64, err := ParseInt64("-12")
	assert.NoError(t, err)
	assert.Equal(t, int64(-12), i64)
}

func TestAsString(t *testing.T) {
	t.Parallel()

	assert.Empty(t, AsString(nil))
	assert.Equal(t, "abc", AsString("abc"))
	assert.Equal(t, "abc", AsString([]byte("abc")))
	assert.Equal(t, "12", AsString(int64(12)))
	assert.Equal(t, "1.5", AsString(1.5))
	assert.Equal(t, "2025-01-02T03:04:05Z", AsString(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestAsBool(t *testing.T) {
	t.Parallel()

	assert.True(t, AsBool(true))
	assert.True(t, AsBool(int64(1)))
	assert.True(t, AsBool(float64(1)))
	assert.True(t, AsBool([]byte("1")))
	assert.True(t, AsBool("true"))
	assert.False(t, AsBool(nil))
	assert.False(t, AsBool(int64(0)))
	assert.False(t, AsBool("nope"))
	assert.False(t, AsBool(struct{}{}))
}

func TestAsInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, AsInt(int64(3)))
	assert.Equal(t, 3, AsInt(float64(3)))
	assert.Equal(t, 3, AsInt([]byte("3")))
	assert.Equal(t, 3, AsInt(" 3 "))
	assert.Equal(t, 0, AsInt("three"))
	assert.Equal(t, 0, AsInt(nil))
}

func TestAsTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	got, ok := AsTime(want)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	got, ok = AsTime("2025-06-01T12:30:00Z")
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	got, ok = AsTime([]byte("2025-06-01 12:30:00"))
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	got, ok = AsTime("2025-06-01 12:30:00+00")
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	_, ok = AsTime("")
	assert.False(t, ok)
	_, ok = AsTime("yesterday")
	assert.False(t, ok)
	_, ok = AsTime(nil)
	assert.False(t, ok)
	_, ok = AsTime(time.Time{})
	assert.False(t, ok)

	assert.Nil(t, AsTimePtr(nil))
	assert.NotNil(t, AsTimePtr("2025-06-01"))
}

func TestTimePtrValue(t *testing.T) {
	t.Parallel()

	assert.Nil(t, TimePtrValue(nil))
	local := time.Date(2025, 6, 1, 5, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), TimePtrValue(&local))
}
