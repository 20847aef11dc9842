package chatdb

import "time"

// Message dates count from 2001-01-01 UTC, scaled to nanoseconds.
const (
	appleEpochOffset = 978_307_200
	timestampFactor  = 1_000_000_000
)

// AppleTime converts a raw message date to local time.
func AppleTime(date int64) time.Time {
	unix := date/timestampFactor + appleEpochOffset
	return time.Unix(unix, 0).Local()
}

// FormatTimestamp renders a raw message date as an ISO-8601 local string.
func FormatTimestamp(date int64) string {
	return AppleTime(date).Format(time.RFC3339)
}

// AppleDate converts a Unix timestamp in seconds to the raw storage scale.
// Used by tests and fixtures to produce realistic date values.
func AppleDate(unixSeconds int64) int64 {
	return (unixSeconds - appleEpochOffset) * timestampFactor
}
