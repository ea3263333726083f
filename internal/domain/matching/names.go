// Package matching implements the weighted matching engine: five-factor
// scoring of (source, destination) element pairs, greedy stable assignment,
// and submodel pairing.
package matching

import (
	"regexp"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Abbreviation table
// ─────────────────────────────────────────────────────────────────────────────

// Abbreviations maps short forms to their expansions.  An expansion may be a
// multi-word phrase; a match requires every word of the phrase to appear in
// the other side's token set.  Expanded matches earn half the credit of a
// direct token match.
//
// Assembled from community layout files; data, not code — extend the table
// for new vendors rather than changing the scoring logic.
var Abbreviations = map[string][]string{
	// Props
	"sp":   {"spinner"},
	"mt":   {"megatree", "mega tree"},
	"cc":   {"candycane", "candy cane"},
	"sf":   {"singing face"},
	"ss":   {"showstopper"},
	"mh":   {"moving head", "movinghead"},
	"dw":   {"driveway"},
	"sw":   {"sidewalk"},
	"arch": {"arches", "archway"},
	// Directions
	"cw":  {"clockwise"},
	"ccw": {"counterclockwise", "counter clockwise"},
	"l":   {"left"},
	"r":   {"right"},
	"c":   {"center", "centre", "middle"},
	"ct":  {"center"},
	// Sizes
	"lg":  {"large", "big"},
	"sm":  {"small", "mini"},
	"med": {"medium"},
	// Structural
	"vert":  {"vertical", "verticals"},
	"horiz": {"horizontal", "horizontals"},
	"str":   {"strand"},
	"seg":   {"segment"},
	// Cross-language renames seen in community files
	"tumba":       {"tombstone", "tomb"},
	"contorno":    {"outline"},
	"estrella":    {"star"},
	"arbol":       {"tree"},
	"cana":        {"cane"},
	"fantasma":    {"ghost"},
	"calabaza":    {"pumpkin"},
	"murcielago":  {"bat"},
}

// noiseWords are dropped during normalization; they carry no identity.
var noiseWords = map[string]bool{
	"all": true, "group": true, "grp": true, "my": true, "the": true,
	"model": true, "mod": true, "everything": true, "but": true,
}

var (
	versionPrefixRe = regexp.MustCompile(`(?i)^\d{1,3}\.\d{1,3}(\.\d+)?(grp|mod|sub)?\s*`)
	separatorRe     = regexp.MustCompile(`[-_.\t]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	trailingNumRe   = regexp.MustCompile(`\s+\d+$`)
	leadingNumRe    = regexp.MustCompile(`^\d+\s+`)
)

// normalizeName lowercases, strips version prefixes like "01.11" or
// "02.14.0Grp", replaces separators with spaces, drops noise words, and
// collapses whitespace.
func normalizeName(name string) string {
	n := strings.ToLower(name)
	n = versionPrefixRe.ReplaceAllString(n, "")
	n = separatorRe.ReplaceAllString(n, " ")

	tokens := strings.Fields(n)
	kept := tokens[:0]
	for _, t := range tokens {
		if !noiseWords[t] {
			kept = append(kept, t)
		}
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(strings.Join(kept, " ")), " ")
}

// baseName strips the positional index from a normalized name:
// "Arch 3" → "arch", "Spinner - Showstopper 2" → "spinner showstopper".
func baseName(name string) string {
	n := normalizeName(name)
	n = trailingNumRe.ReplaceAllString(n, "")
	n = leadingNumRe.ReplaceAllString(n, "")
	return n
}

// tokenSet splits a normalized name into its token set.
func tokenSet(normalized string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Fields(normalized) {
		out[t] = true
	}
	return out
}

// phraseContainsWord reports whether word is one of the words of phrase.
func phraseContainsWord(phrase, word string) bool {
	for _, w := range strings.Fields(phrase) {
		if w == word {
			return true
		}
	}
	return false
}

// phraseInSet reports whether every word of phrase appears in set.
func phraseInSet(set map[string]bool, phrase string) bool {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !set[w] {
			return false
		}
	}
	return true
}

// tokenOverlap computes the name-token overlap ratio between two token sets.
// A direct token match contributes full credit; a match reached through the
// abbreviation table contributes half credit.  The ratio is taken against
// the larger set.
func tokenOverlap(src, dst map[string]bool) float64 {
	if len(src) == 0 || len(dst) == 0 {
		return 0
	}
	matched := 0.0
	for tok := range src {
		if dst[tok] {
			matched += 1.0
			continue
		}
		if expansions, ok := Abbreviations[tok]; ok {
			hit := false
			for _, exp := range expansions {
				if phraseInSet(dst, exp) {
					hit = true
					break
				}
			}
			if hit {
				matched += 0.5
				continue
			}
		}
		// Reverse direction: a destination abbreviation expanding to this
		// token.
		credited := false
		for d := range dst {
			expansions, ok := Abbreviations[d]
			if !ok {
				continue
			}
			for _, exp := range expansions {
				if phraseContainsWord(exp, tok) {
					credited = true
					break
				}
			}
			if credited {
				break
			}
		}
		if credited {
			matched += 0.5
		}
	}
	larger := len(src)
	if len(dst) > larger {
		larger = len(dst)
	}
	score := matched / float64(larger)
	if score > 1 {
		score = 1
	}
	return score
}
