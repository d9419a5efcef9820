package geo

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CityKey is the cache key for a city name: trimmed, inner whitespace
// collapsed and case folded, so "  torino" and "TORINO" share an entry.
func CityKey(city string) string {
	return cases.Fold().String(strings.Join(strings.Fields(city), " "))
}

// CityDisplay formats a city name for display and for backend queries.
func CityDisplay(city string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(city), " "))
}
