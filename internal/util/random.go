// Package util provides utility functions for the orderbot application.
package util

import (
	"math/rand/v2"
	"strings"
	"time"
)

// RecordIDSuffixLength is the length of the random suffix appended to
// generated record identifiers.
const RecordIDSuffixLength = 6

// recordIDTimeLayout orders ids chronologically when sorted as strings.
const recordIDTimeLayout = "20060102150405"

// GenerateRandomHex generates a random hexadecimal string of the specified
// length. Uses math/rand/v2; the ids are human references, not secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateRecordID generates a record identifier of the form
// "{prefix}-{timestamp}-{hex_suffix}". The embedded timestamp makes ids
// informative for human reference without a central counter; the random
// suffix keeps them unique within a second.
func GenerateRecordID(prefix string, now time.Time) string {
	return prefix + "-" + now.UTC().Format(recordIDTimeLayout) + "-" + GenerateRandomHex(RecordIDSuffixLength)
}

// GenerateOrderID generates a unique order id with "ORD" prefix.
func GenerateOrderID(now time.Time) string {
	return GenerateRecordID("ORD", now)
}

// GenerateComplaintID generates a unique complaint id with "CMP" prefix.
func GenerateComplaintID(now time.Time) string {
	return GenerateRecordID("CMP", now)
}

// GenerateFeedbackID generates a unique feedback id with "FBK" prefix.
func GenerateFeedbackID(now time.Time) string {
	return GenerateRecordID("FBK", now)
}
