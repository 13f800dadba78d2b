// Package ids provides trace id primitives for client-side sessions.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewTraceID returns a new ULID string (26 chars) used to correlate the log
// lines of one session. ULIDs sort by creation time, which keeps interleaved
// logs of concurrent sessions readable.
func NewTraceID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
