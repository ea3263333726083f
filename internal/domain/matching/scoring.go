package matching

import (
	"math"
	"strings"

	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Type factor
// ─────────────────────────────────────────────────────────────────────────────

const (
	typeExactScore   = 1.0
	typeRelatedScore = 0.7
	typeCustomScore  = 0.4
	neutralScore     = 0.5
)

// relatedTypes lists display types that map acceptably onto each other even
// though they are declared differently.  Symmetric; both directions are
// listed explicitly so lookup stays a single map hit.
var relatedTypes = map[string][]string{
	"Arches":      {"Candy Canes"},
	"Candy Canes": {"Arches"},
	"Spinner":     {"Wreath"},
	"Wreath":      {"Spinner"},
	"Tree":        {"Mega Tree", "Spiral Tree"},
	"Mega Tree":   {"Tree", "Spiral Tree"},
	"Spiral Tree": {"Tree", "Mega Tree"},
	"Matrix":      {"Fence", "Sign"},
	"Fence":       {"Matrix"},
	"Sign":        {"Matrix"},
	"Line":        {"Roofline", "Outline"},
	"Roofline":    {"Line", "Outline"},
	"Outline":     {"Line", "Roofline"},
}

// typeKeywords are the prop words consulted when comparing two groups by
// name instead of by declared type.
var typeKeywords = []string{
	"spinner", "tree", "arch", "cane", "star", "snowflake", "matrix",
	"wreath", "icicle", "window", "roof", "outline", "fence", "flake",
	"face", "bulb", "stake", "tombstone", "pumpkin", "ghost", "present",
	"bell", "angel", "cross", "heart", "flower",
}

func scoreType(src, dst *layouttypes.Element) float64 {
	if src.IsGroup() && dst.IsGroup() {
		return groupTypeOverlap(src.Name, dst.Name)
	}
	if src.IsGroup() != dst.IsGroup() {
		return 0
	}

	st, dt := strings.TrimSpace(src.Type), strings.TrimSpace(dst.Type)
	if st != "" && strings.EqualFold(st, dt) {
		return typeExactScore
	}
	for _, rel := range relatedTypes[st] {
		if strings.EqualFold(rel, dt) {
			return typeRelatedScore
		}
	}
	if strings.EqualFold(st, "Custom") || strings.EqualFold(dt, "Custom") {
		return typeCustomScore
	}
	return 0
}

// groupTypeOverlap compares two groups by the prop keywords in their names.
// Jaccard over the keyword sets; a group naming no known prop is neutral.
func groupTypeOverlap(srcName, dstName string) float64 {
	src := keywordsIn(srcName)
	dst := keywordsIn(dstName)
	if len(src) == 0 || len(dst) == 0 {
		return neutralScore
	}
	inter, union := 0, len(dst)
	for k := range src {
		if dst[k] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func keywordsIn(name string) map[string]bool {
	n := normalizeName(name)
	out := make(map[string]bool)
	for _, kw := range typeKeywords {
		if strings.Contains(n, kw) {
			out[kw] = true
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Pixel factor
// ─────────────────────────────────────────────────────────────────────────────

// scorePixels is 1 minus the relative pixel-count difference.  Groups and
// elements with unknown counts score neutral; counts there aggregate members
// and would double-penalize.
func scorePixels(src, dst *layouttypes.Element) float64 {
	if src.IsGroup() || dst.IsGroup() {
		return neutralScore
	}
	if src.PixelCount <= 0 || dst.PixelCount <= 0 {
		return neutralScore
	}
	return pixelRatio(src.PixelCount, dst.PixelCount)
}

func pixelRatio(a, b int) float64 {
	larger := math.Max(float64(a), float64(b))
	diff := math.Abs(float64(a) - float64(b))
	score := 1 - diff/larger
	if score < 0 {
		return 0
	}
	return score
}

// ─────────────────────────────────────────────────────────────────────────────
// Spatial factor
// ─────────────────────────────────────────────────────────────────────────────

// zoneGrid buckets each inventory's individual elements into a 3×3 grid over
// that inventory's own bounding box, so layouts of different physical scale
// still compare by relative position.
type zoneGrid struct {
	minX, maxX float64
	minY, maxY float64
	valid      bool
}

func newZoneGrid(elements []*layouttypes.Element) zoneGrid {
	g := zoneGrid{minX: math.Inf(1), maxX: math.Inf(-1), minY: math.Inf(1), maxY: math.Inf(-1)}
	for _, e := range elements {
		if e.IsGroup() {
			continue
		}
		g.minX = math.Min(g.minX, e.Position.X)
		g.maxX = math.Max(g.maxX, e.Position.X)
		g.minY = math.Min(g.minY, e.Position.Y)
		g.maxY = math.Max(g.maxY, e.Position.Y)
		g.valid = true
	}
	return g
}

// zone returns the (col, row) cell for an element, each in 0..2.
func (g zoneGrid) zone(e *layouttypes.Element) (int, int) {
	return bucket(e.Position.X, g.minX, g.maxX), bucket(e.Position.Y, g.minY, g.maxY)
}

func bucket(v, min, max float64) int {
	if max <= min {
		return 1
	}
	b := int(((v - min) / (max - min)) * 3)
	if b > 2 {
		b = 2
	}
	if b < 0 {
		b = 0
	}
	return b
}

// scoreSpatial compares grid zones: same cell 1.0, shared row or column 0.6,
// otherwise 0.2.  Groups have no meaningful position and score neutral, as
// does either side when its inventory has no positioned individuals.
func scoreSpatial(src, dst *layouttypes.Element, srcGrid, dstGrid zoneGrid) float64 {
	if src.IsGroup() || dst.IsGroup() {
		return neutralScore
	}
	if !srcGrid.valid || !dstGrid.valid {
		return neutralScore
	}
	sc, sr := srcGrid.zone(src)
	dc, dr := dstGrid.zone(dst)
	switch {
	case sc == dc && sr == dr:
		return 1.0
	case sc == dc || sr == dr:
		return 0.6
	default:
		return 0.2
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Name factor
// ─────────────────────────────────────────────────────────────────────────────

// scoreName is the abbreviation-aware token overlap of the two normalized
// names.  An exact full-name match (case-insensitive) short-circuits to 1.0.
func scoreName(src, dst *layouttypes.Element) float64 {
	if strings.EqualFold(strings.TrimSpace(src.Name), strings.TrimSpace(dst.Name)) {
		return 1.0
	}
	ns, nd := normalizeName(src.Name), normalizeName(dst.Name)
	if ns != "" && ns == nd {
		return 1.0
	}
	return tokenOverlap(tokenSet(ns), tokenSet(nd))
}

// ─────────────────────────────────────────────────────────────────────────────
// Structure factor
// ─────────────────────────────────────────────────────────────────────────────

// scoreStructure compares submodel inventories: neither side has submodels →
// neutral, only one side → 0.3, both → an even blend of count similarity and
// submodel-name overlap.
func scoreStructure(src, dst *layouttypes.Element) float64 {
	sn, dn := len(src.Submodels), len(dst.Submodels)
	switch {
	case sn == 0 && dn == 0:
		return neutralScore
	case sn == 0 || dn == 0:
		return 0.3
	}

	countScore := pixelRatio(sn, dn)

	srcNames := make(map[string]bool, sn)
	for _, sm := range src.Submodels {
		srcNames[normalizeName(sm.Name)] = true
	}
	matched := 0
	for _, sm := range dst.Submodels {
		if srcNames[normalizeName(sm.Name)] {
			matched++
		}
	}
	larger := sn
	if dn > larger {
		larger = dn
	}
	nameScore := float64(matched) / float64(larger)

	return 0.5*countScore + 0.5*nameScore
}
