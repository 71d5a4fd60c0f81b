// Package routing resolves which customer a lead email belongs to by its subject.
package routing

import "strings"

// Normalize collapses line breaks and whitespace runs to single spaces and trims.
// Stored mapping subjects and incoming subjects both go through it.
func Normalize(subject string) string {
	return strings.Join(strings.Fields(subject), " ")
}
