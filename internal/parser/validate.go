package parser

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex = regexp.MustCompile(`^\+?[\d\s\-().]+$`)
)

// MinPhoneDigits is the least number of digits a phone number can have
const MinPhoneDigits = 7

// IsValidEmail reports whether s looks like a mailbox with a dotted domain
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// IsValidPhone reports whether s is made of phone characters with at least
// MinPhoneDigits digits
func IsValidPhone(s string) bool {
	if !phoneRegex.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= MinPhoneDigits
}

// stripQuotes trims whitespace and wrapping quote characters
func stripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\"'`“”‘’"))
}
