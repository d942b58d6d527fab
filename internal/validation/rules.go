// Package validation holds the pure rules that gate wizard steps.
package validation

import (
	"regexp"
	"strings"
	"time"
)

// OTPLength is the number of digit slots of a one-time code
const OTPLength = 6

// PasswordSpecials is the only punctuation a password may contain
const PasswordSpecials = "@$!%*?&"

const minPasswordLength = 8

var (
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}$`)
)

// DateLayout is the wire format of date fields
const DateLayout = "2006-01-02"

// Email reports whether s looks like local@domain.tld
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// PostalCode reports whether s is exactly five digits
func PostalCode(s string) bool {
	return postalCodePattern.MatchString(s)
}

// Password reports whether pw has at least 8 characters drawn from letters,
// digits and PasswordSpecials, with at least one of each class.
func Password(pw string) bool {
	if len(pw) < minPasswordLength {
		return false
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return upper && lower && digit && special
}

// OTPComplete reports whether every slot holds exactly one digit
func OTPComplete(code [OTPLength]string) bool {
	for _, slot := range code {
		if len(slot) != 1 || slot[0] < '0' || slot[0] > '9' {
			return false
		}
	}
	return true
}

// AgeInYears subtracts calendar years only; birthdays later in the year are
// not taken into account.
func AgeInYears(birth, now time.Time) int {
	return now.Year() - birth.Year()
}

// ParseDate parses a date field in DateLayout
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
