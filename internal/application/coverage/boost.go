package coverage

import (
	"math"
	"sort"
	"strings"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Group-to-group structural matcher
// ─────────────────────────────────────────────────────────────────────────────

// Suggestion proposes linking an unmapped destination group to an
// already-mapped source group whose structure it resembles.  No name
// similarity enters the score; the point is to fill coverage gaps the
// name-driven engine could not close.
type Suggestion struct {
	// DestGroup is the unmapped destination group.
	DestGroup string `json:"dest_group"`
	// SourceGroup is the mapped source group whose effects would be reused.
	SourceGroup string `json:"source_group"`
	// ExistingDests lists destinations the source group already feeds.
	ExistingDests []string `json:"existing_dests,omitempty"`
	// Score is the combined structural score in [0,1].
	Score   float64           `json:"score"`
	Factors SuggestionFactors `json:"factors"`
	Reason  string            `json:"reason"`
}

// SuggestionFactors is the per-factor breakdown of a group suggestion, each
// normalised to [0,1].
type SuggestionFactors struct {
	PixelProximity float64 `json:"pixel_proximity"`
	MemberCount    float64 `json:"member_count"`
	Geometry       float64 `json:"geometry"`
	Richness       float64 `json:"richness"`
}

// Suggest proposes links from mapped source groups to the unmapped
// destination groups in cov.  Factors: average member pixel proximity (35%),
// member count similarity (30%), geometric compatibility (20%), and how many
// destinations the source group already feeds (15%) as a proxy for effect
// richness.  At most one suggestion per destination group; results are
// sorted by score and capped at the configured limit.
func (m *Matcher) Suggest(source, dest *layouttypes.Inventory, links Links, cov Coverage) []Suggestion {
	if source == nil {
		source = layouttypes.NewInventory(nil)
	}
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}
	if len(cov.UnmappedGroups) == 0 {
		return nil
	}

	var mappedSourceGroups []*layouttypes.Element
	for _, g := range source.Groups() {
		if len(links[g.Name]) > 0 {
			mappedSourceGroups = append(mappedSourceGroups, g)
		}
	}
	if len(mappedSourceGroups) == 0 {
		return nil
	}

	var suggestions []Suggestion
	for _, name := range cov.UnmappedGroups {
		destGroup := dest.Get(name)
		if destGroup == nil {
			continue
		}

		var best *Suggestion
		for _, srcGroup := range mappedSourceGroups {
			if links.linksTo(srcGroup.Name, destGroup.Name) {
				continue
			}

			pixelScore := pixelProximityScore(
				avgMemberPixels(srcGroup, source),
				avgMemberPixels(destGroup, dest),
			)
			memberScore := memberCountScore(len(srcGroup.Members), len(destGroup.Members))
			geoScore := geometryScore(srcGroup, destGroup)
			richnessScore := math.Min(float64(len(links[srcGroup.Name]))*30, 100)

			score := (pixelScore*0.35 + memberScore*0.30 + geoScore*0.20 + richnessScore*0.15) / 100
			if score < m.cfg.Threshold {
				continue
			}

			var reasons []string
			if pixelScore >= 70 {
				reasons = append(reasons, "similar pixel count")
			}
			if memberScore >= 60 {
				reasons = append(reasons, "compatible member count")
			}
			if geoScore >= 50 {
				reasons = append(reasons, "similar geometry")
			}
			reason := "structural match"
			if len(reasons) > 0 {
				reason = strings.Join(reasons, ", ")
			}

			candidate := Suggestion{
				DestGroup:     destGroup.Name,
				SourceGroup:   srcGroup.Name,
				ExistingDests: append([]string(nil), links[srcGroup.Name]...),
				Score:         score,
				Factors: SuggestionFactors{
					PixelProximity: pixelScore / 100,
					MemberCount:    memberScore / 100,
					Geometry:       geoScore / 100,
					Richness:       richnessScore / 100,
				},
				Reason: reason,
			}
			if best == nil || candidate.Score > best.Score {
				best = &candidate
			}
		}
		if best != nil {
			suggestions = append(suggestions, *best)
		}
	}

	// Larger groups win score ties: accepting one closes a bigger gap.
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return memberCount(dest, suggestions[i].DestGroup) > memberCount(dest, suggestions[j].DestGroup)
	})
	if len(suggestions) > m.cfg.SuggestionLimit {
		suggestions = suggestions[:m.cfg.SuggestionLimit]
	}

	m.logger.Debug("boost suggestions computed",
		logging.Int("unmapped_groups", len(cov.UnmappedGroups)),
		logging.Int("mapped_source_groups", len(mappedSourceGroups)),
		logging.Int("suggestions", len(suggestions)),
	)
	return suggestions
}

func memberCount(inv *layouttypes.Inventory, name string) int {
	if el := inv.Get(name); el != nil {
		return len(el.Members)
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Factor scoring
// ─────────────────────────────────────────────────────────────────────────────

// avgMemberPixels averages the pixel counts of a group's individual members,
// falling back to the group's own pixel count when no member resolves.
func avgMemberPixels(group *layouttypes.Element, inv *layouttypes.Inventory) float64 {
	if len(group.Members) == 0 {
		return float64(group.PixelCount)
	}
	total, count := 0, 0
	for _, name := range group.Members {
		m := inv.Get(name)
		if m == nil || m.IsGroup() {
			continue
		}
		total += m.PixelCount
		count++
	}
	if count == 0 {
		return float64(group.PixelCount)
	}
	return float64(total) / float64(count)
}

func pixelProximityScore(sourcePixels, destPixels float64) float64 {
	if sourcePixels == 0 || destPixels == 0 {
		return 10
	}
	ratio := math.Max(sourcePixels, destPixels) / math.Min(sourcePixels, destPixels)
	switch {
	case ratio <= 1.2:
		return 100
	case ratio <= 1.5:
		return 70
	case ratio <= 2.0:
		return 40
	default:
		return 10
	}
}

func memberCountScore(sourceCount, destCount int) float64 {
	diff := sourceCount - destCount
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 100
	case diff == 1:
		return 80
	case diff <= 2:
		return 60
	case diff <= 4:
		return 40
	default:
		return 10
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Geometry classes
// ─────────────────────────────────────────────────────────────────────────────

type geometryClass string

const (
	geoRadial  geometryClass = "radial"
	geoLinear  geometryClass = "linear"
	geoFlat    geometryClass = "flat"
	geo3D      geometryClass = "3d"
	geoUnknown geometryClass = "unknown"
)

// geometryTable maps type keywords to geometry classes.  Order matters:
// more specific keywords ("mega tree") must precede the generic ones
// ("tree") they contain.
var geometryTable = []struct {
	keyword string
	class   geometryClass
}{
	{"mega tree", geo3D},
	{"spiral tree", geo3D},
	{"wireframe", geo3D},
	{"spinner", geoRadial},
	{"wreath", geoRadial},
	{"snowflake", geoRadial},
	{"star", geoRadial},
	{"tree", geoRadial},
	{"candy cane", geoLinear},
	{"arch", geoLinear},
	{"icicle", geoLinear},
	{"roofline", geoLinear},
	{"matrix", geoFlat},
	{"tombstone", geoFlat},
	{"pumpkin", geoFlat},
	{"face", geoFlat},
	{"sign", geoFlat},
	{"custom", geoFlat},
}

// adjacentGeometry lists classes compatible enough for half credit.
var adjacentGeometry = map[geometryClass][]geometryClass{
	geoRadial: {geo3D},
	geoLinear: {geoFlat},
	geoFlat:   {geoLinear},
	geo3D:     {geoRadial},
}

func classifyGeometry(el *layouttypes.Element) geometryClass {
	for _, text := range []string{strings.ToLower(el.Type), strings.ToLower(el.DisplayAs)} {
		if text == "" {
			continue
		}
		for _, entry := range geometryTable {
			if strings.Contains(text, entry.keyword) {
				return entry.class
			}
		}
	}
	return geoUnknown
}

func geometryScore(source, dest *layouttypes.Element) float64 {
	srcGeo, destGeo := classifyGeometry(source), classifyGeometry(dest)
	if srcGeo == destGeo {
		return 100
	}
	if srcGeo == geoUnknown || destGeo == geoUnknown {
		return 50
	}
	for _, adj := range adjacentGeometry[srcGeo] {
		if adj == destGeo {
			return 50
		}
	}
	return 10
}
