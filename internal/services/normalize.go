package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	nonDigit    = regexp.MustCompile(`\D`)
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// NormalizePhone strips every non-digit and keeps the trailing ten digits.
// It is the comparison key for roster lookups.
func NormalizePhone(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// MatchKey trims and case-folds a catalog key so outlet and slot matching is
// insensitive to case and surrounding whitespace.
func MatchKey(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(s))
}

// SanitizeFilename turns spaces into underscores and drops anything outside
// [a-zA-Z0-9_].
func SanitizeFilename(name string) string {
	out := unsafeChars.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"), "")
	if out == "" {
		return "user"
	}
	return out
}
