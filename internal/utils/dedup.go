package utils

import (
	"strings"
)

// ListingKey builds a stable identity for a listing so duplicates returned
// across tool rounds can be collapsed. MLS numbers win when present; the
// URL is the fallback. Returns "" when neither is usable, in which case
// the listing is treated as unique.
func ListingKey(mls, url string) string {
	if m := NormalizeMLS(mls); m != "" {
		return "mls:" + m
	}
	if u := NormalizeListingURL(url); u != "" {
		return "url:" + u
	}
	return ""
}

// NormalizeMLS canonicalizes an MLS number for comparison: uppercase,
// with spaces and the common "MLS" / "#" prefixes stripped. Centris MLS
// numbers are 7 digits; REALTOR.ca ones can be alphanumeric/hyphenated.
func NormalizeMLS(mls string) string {
	s := strings.ToUpper(strings.TrimSpace(mls))
	s = strings.TrimPrefix(s, "MLS")
	s = strings.TrimLeft(s, ":# ")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "NULL" || s == "N/A" {
		return ""
	}
	return s
}

// NormalizeListingURL canonicalizes a listing URL for comparison:
// lowercase scheme/host handling, tracking query string and fragment
// dropped, trailing slash removed.
func NormalizeListingURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")
	return strings.ToLower(s)
}
