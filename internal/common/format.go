package common

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FormatRange renders "40-50", collapsing to "40" when the bounds are equal.
func FormatRange(lo, hi float64) string {
	if lo == hi {
		return trimFloat(lo)
	}
	return trimFloat(lo) + "-" + trimFloat(hi)
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

// HashUID derives a stable UUID from a string, so re-rendering the same
// calendar yields the same event UIDs and subscribers see updates instead of
// duplicates.
func HashUID(s string) string {
	sum := sha1.Sum([]byte(s))
	u, err := uuid.FromBytes(sum[:16])
	if err != nil {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s)).String()
	}
	return u.String()
}

const timestampFormat = "Mon Jan 02 03:04 PM"

// FormatTimestamp renders a time in the given zone, e.g. "Wed Apr 03 03:32 PM".
func FormatTimestamp(t time.Time, tz *time.Location) string {
	return t.In(tz).Format(timestampFormat)
}
