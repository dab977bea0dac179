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

package rand

import (
	cryptorand "crypto/rand"
	mathrand "math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

const base36alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GuestCodeSuffixLen is the number of random characters at the end of a guest code.
const GuestCodeSuffixLen = 4

var (
	chacha *mathrand.ChaCha8
	locker sync.Mutex
)

func init() {
	var seed [32]byte
	_, _ = cryptorand.Reader.Read(seed[:])
	chacha = mathrand.NewChaCha8(seed)
}

// GuestCode generates a human-facing guest identifier, e.g. "GM2K7Q1XZ4AB9".
// It's "G", then the base36 Unix millisecond timestamp, then a short random suffix.
// This is not guaranteed to be unique, so callers must check it against the codes
// already in use.
func GuestCode(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "G" + stamp + NonCryptoBase36(GuestCodeSuffixLen)
}

// NonCryptoBase36 returns n random characters from [0-9A-Z]. It's fast rather than
// cryptographically secure.
func NonCryptoBase36(n int) string {
	if n <= 0 {
		return ""
	}
	locker.Lock()
	defer locker.Unlock()
	src := make([]byte, n)
	// This never returns an error
	_, _ = chacha.Read(src)
	for i := range src {
		src[i] = base36alphabet[int(src[i])%len(base36alphabet)]
	}
	return string(src)
}
