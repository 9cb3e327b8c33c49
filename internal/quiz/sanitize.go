package quiz

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	imagePathJunk = regexp.MustCompile(`[^a-zA-Z0-9/_.-]`)
)

const imagePathPrefix = "/images/"

// sanitizeString drops ASCII control characters except tab and newlines, then
// trims surrounding space.
func sanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// sanitizeURL keeps uploaded image paths and absolute http(s) URLs. Anything
// else becomes empty.
func sanitizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, imagePathPrefix) {
		return imagePathJunk.ReplaceAllString(s, "")
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	return s
}
