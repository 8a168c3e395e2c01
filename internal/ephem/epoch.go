package ephem

import (
	"fmt"
	"time"
)

// epochLayout matches the OEM epoch format, e.g. "2023-058T13:20:00.000Z".
// "002" is Go's day-of-year verb, so time.Parse validates the ordinal day
// against the year (including leap years) and the 24h clock for us.
const epochLayout = "2006-002T15:04:05.000Z"

// ParseEpoch converts an OEM epoch string to a UTC instant with millisecond
// precision. Returns ErrMalformedEpoch for anything that does not match the
// layout or encodes an impossible date or clock value.
func ParseEpoch(s string) (time.Time, error) {
	t, err := time.Parse(epochLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedEpoch, s)
	}
	return t.UTC(), nil
}

// FormatEpoch renders an instant back into the OEM epoch format. Parsing the
// result yields an instant equal to t truncated to the millisecond, so the
// round trip preserves ordering and equality.
func FormatEpoch(t time.Time) string {
	return t.UTC().Format(epochLayout)
}
