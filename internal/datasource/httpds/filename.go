package httpds

import (
	"net/url"
	"path"
	"regexp"
	"strconv"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces sequences of non-alphanumeric characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HashString returns a stable xxh3-64 hex digest of s.
func HashString(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}

// NameHintFromURL derives the filename-like hint used for extension-based
// metadata fallback.
//
// The last path segment wins when it carries an extension
// ("/exports/prices.csv.gz" → "prices.csv.gz"). Otherwise the cleaned query
// string is used, and as a last resort a hash of the whole URL.
func NameHintFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	if base := path.Base(u.Path); base != "." && base != "/" && path.Ext(base) != "" {
		return base
	}
	clean := filenameCleaner.ReplaceAllString(u.RawQuery, "_")
	if clean == "" {
		return HashString(rawURL)
	}
	return clean
}
