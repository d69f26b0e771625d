package routing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var monthAbbrev = map[string]string{
	"jan": "Jan", "feb": "Feb", "mar": "Mar", "apr": "Apr",
	"may": "May", "jun": "Jun", "jul": "Jul", "aug": "Aug",
	"sep": "Sep", "oct": "Oct", "nov": "Nov", "dec": "Dec",
}

// CanonicalMonth normalizes a raw payroll-month key.
//
//	"sep-oct-2025" -> "Sep 2025 - Oct 2025"
//	"jan-2025"     -> "Jan 2025"
//
// Anything else, including keys already in canonical form, is returned unchanged.
// The result is the grouping key for entries, months and batches.
func CanonicalMonth(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t") {
		return trimmed
	}

	parts := strings.Split(strings.ToLower(trimmed), "-")
	for _, p := range parts {
		if p == "" {
			return trimmed
		}
	}

	switch len(parts) {
	case 3:
		year := parts[2]
		return monthToken(parts[0]) + " " + year + " - " + monthToken(parts[1]) + " " + year
	case 2:
		return monthToken(parts[0]) + " " + parts[1]
	default:
		return trimmed
	}
}

func monthToken(tok string) string {
	if m, ok := monthAbbrev[tok]; ok {
		return m
	}
	return cases.Title(language.English).String(tok)
}
