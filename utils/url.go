package utils

import (
	"net/url"
	"strings"
)

// EncodeURLWithSpaces encodes a URL that may contain raw spaces. Artwork
// providers occasionally hand out URLs like ".../logo 00.png" which need
// %20-encoding before they are usable over HTTP.
func EncodeURLWithSpaces(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	encoded := parsed.Scheme + "://" + parsed.Host + parsed.EscapedPath()
	if parsed.RawQuery != "" {
		encoded += "?" + strings.ReplaceAll(parsed.RawQuery, " ", "%20")
	}
	return encoded, nil
}
