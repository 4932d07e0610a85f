package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	dateLayout = "2006-01-02"

	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72

	MaxNameLength        = 200
	MaxDescriptionLength = 4000
)

// dateRegex rejects shapes time.Parse tolerates, like single digit months
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsValidDate checks the string is a real calendar date in YYYY-MM-DD form
func IsValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ValidateDateRange checks both dates and that end is not before start.
func ValidateDateRange(start, end string) map[string]string {
	errors := make(map[string]string)

	if !IsValidDate(start) {
		errors["start_date"] = "Start date must be a valid YYYY-MM-DD date"
	}
	if !IsValidDate(end) {
		errors["end_date"] = "End date must be a valid YYYY-MM-DD date"
	}
	// Same fixed-width layout, so lexical order is date order.
	if len(errors) == 0 && end < start {
		errors["end_date"] = "End date must not be before start date"
	}

	return errors
}

// IsValidPassword accepts any non-empty password bcrypt can hash
func IsValidPassword(password string) (bool, string) {
	if password == "" {
		return false, "Password is required"
	}
	if len(password) > MaxPasswordBytes {
		return false, "Password must be at most 72 bytes"
	}
	return true, ""
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates a string to maxLen characters
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// CleanText trims, strips control characters and caps free text at maxLen.
func CleanText(s string, maxLen int) string {
	return TruncateString(SanitizeString(strings.TrimSpace(s)), maxLen)
}
