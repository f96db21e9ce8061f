// Package stream provides the element model and the typed publish/subscribe
// substrate that links stream operators: timestamps, punctuations, and the
// data and punctuation channels with their connection semantics.
package stream

import "time"

// Timestamp is a monotonic microsecond count. There is no global clock; each
// operator that needs a tuple's time obtains it through a configured
// extractor function.
type Timestamp int64

// TimestampExtractor extracts the timestamp from a stream element.
type TimestampExtractor[T any] func(T) Timestamp

// KeyExtractor extracts a grouping or join key from a stream element.
type KeyExtractor[T any, K comparable] func(T) K

// TimestampFromTime converts a wall-clock time to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// CurrentTimestamp returns the current wall-clock time as a Timestamp.
func CurrentTimestamp() Timestamp {
	return TimestampFromTime(time.Now())
}

// Seconds converts a duration in seconds into the corresponding number of
// timestamp microseconds.
func Seconds(s uint) Timestamp {
	return Timestamp(time.Duration(s) * time.Second / time.Microsecond)
}
