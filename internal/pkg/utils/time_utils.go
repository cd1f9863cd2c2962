package utils

import "time"

// UnixToTime converts a contract timestamp in Unix seconds to UTC.
// Zero maps to the zero time.
func UnixToTime(seconds uint64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(int64(seconds), 0).UTC()
}
