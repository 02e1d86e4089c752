// Package utils holds small conversion helpers shared across packages.
package utils

import "time"

// ToStringSlice extracts the string elements of a decoded JSON array,
// silently dropping anything that isn't a string.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// UnixTime converts a numeric JSON claim (seconds since epoch) to a time.
// JSON numbers decode as float64, which is how JWT libraries surface
// timestamp claims.
func UnixTime(seconds float64) time.Time {
	return time.Unix(int64(seconds), 0)
}
