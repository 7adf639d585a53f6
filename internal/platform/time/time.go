// Package time contains time related helpers
package time

import "time"

// Ptr returns a pointer to t or nil if t is zero. JSON views use it so
// unknown instants are omitted instead of rendered as year one
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Unix returns seconds since the epoch, or nil for the zero time. SQL
// writers pass the result straight through as a nullable column
func Unix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
