// Package dictionary implements the crowd-sourced mapping dictionary:
// name-key normalization, the exact → fuzzy → signature lookup ladder, and
// confirmation storage with provenance upgrades.
package dictionary

import (
	"regexp"
	"sort"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Vendor detection
// ─────────────────────────────────────────────────────────────────────────────

type vendorPattern struct {
	vendor  string
	pattern *regexp.Regexp
}

// vendorPatterns recognize prop-vendor markers in raw element names.  Checked
// in order; first hit wins.
var vendorPatterns = []vendorPattern{
	{"Boscoyo Studio", regexp.MustCompile(`(?i)\bboscoyo\b`)},
	{"Gilbert Engineering", regexp.MustCompile(`(?i)\b(gilbert|ge)[\s_-]`)},
	{"Pixel Pro Displays", regexp.MustCompile(`(?i)\b(pixel\s*pro|ppd)\b`)},
	{"EFL", regexp.MustCompile(`(?i)\befl\b`)},
	{"CCC", regexp.MustCompile(`(?i)\bccc\b`)},
	{"Xtreme Sequences", regexp.MustCompile(`(?i)\bxtreme\b`)},
	{"Holiday Coro", regexp.MustCompile(`(?i)\bholiday\s*coro\b`)},
}

// DetectVendor returns the vendor a raw element name advertises, or "".
func DetectVendor(rawName string) string {
	for _, vp := range vendorPatterns {
		if vp.pattern.MatchString(rawName) {
			return vp.vendor
		}
	}
	return ""
}

// vendorStripRe removes the vendor marker itself before key normalization so
// "GE Spinner" and "Boscoyo Spinner" normalize to the same key.
var vendorStripRe = regexp.MustCompile(`(?i)\b(boscoyo(\s+studio)?|gilbert(\s+engineering)?|ge(?:[\s_-])|pixel\s*pro(\s+displays)?|ppd|efl|ccc|xtreme(\s+sequences)?|holiday\s*coro)\b`)

// StripVendor removes vendor markers from a raw name, collapsing the
// whitespace left behind.
func StripVendor(rawName string) string {
	n := vendorStripRe.ReplaceAllString(rawName, " ")
	return strings.Join(strings.Fields(n), " ")
}

// ─────────────────────────────────────────────────────────────────────────────
// Key normalization
// ─────────────────────────────────────────────────────────────────────────────

// keyNoiseWords carry no mapping identity and are dropped from keys.
var keyNoiseWords = map[string]bool{
	"grp": true, "group": true, "rgb": true,
	"pixel": true, "pixels": true, "px": true, "led": true,
}

var (
	camelBoundaryRe  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	keySeparatorRe   = regexp.MustCompile(`[-_./\\]+`)
	trailingPxRe     = regexp.MustCompile(`^(\d+)px$`)
	nonAlphaNumRe    = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// NormalizeKey reduces a raw element name to its canonical dictionary key:
// camelCase is split, vendor markers and noise words are dropped, "150px"
// collapses to "150", and the surviving tokens are sorted so word order does
// not fragment the dictionary.
func NormalizeKey(rawName string) string {
	n := camelBoundaryRe.ReplaceAllString(rawName, "$1 $2")
	n = vendorStripRe.ReplaceAllString(n, " ")
	n = strings.ToLower(n)
	n = keySeparatorRe.ReplaceAllString(n, " ")
	n = nonAlphaNumRe.ReplaceAllString(n, " ")

	var tokens []string
	for _, t := range strings.Fields(n) {
		if m := trailingPxRe.FindStringSubmatch(t); m != nil {
			t = m[1]
		}
		if keyNoiseWords[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "_")
}

// SameDest reports whether two raw destination names agree once case,
// whitespace and underscores are ignored.  Dictionary results annotate an
// existing pair only when its destination agrees with the stored one.
func SameDest(a, b string) bool {
	return collapseDest(a) == collapseDest(b)
}

var destCollapseRe = regexp.MustCompile(`[_\s]+`)

func collapseDest(s string) string {
	return destCollapseRe.ReplaceAllString(strings.ToLower(s), "")
}
