// Package util provides common utility functions.
package util

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches path separators and control characters (replaced with dashes).
	unsafeNameRe = regexp.MustCompile(`[/\\\x00-\x1f\x7f]+`)
	// Matches runs of whitespace.
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-{2,}`)
)

// PhotoName turns a user-supplied hint (usually a file name) into a photo
// identity that is safe to use as a single path element.
//
// Unlike a slug, case and non-ASCII letters are kept:
//
//	"doggo.png"          → "doggo"
//	"Summer  Trip.JPG"   → "Summer Trip"
//	"../etc/passwd"      → "passwd"
//	".hidden.jpg"        → "hidden"
//	"café.webp"          → "café"
//
// Returns "" when nothing usable remains.
func PhotoName(hint string) string {
	s := filepath.Base(strings.ReplaceAll(hint, `\`, "/"))
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = norm.NFC.String(s)

	s = unsafeNameRe.ReplaceAllString(s, "-")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = multipleDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, " .-")

	return s
}
