package coverage

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Spinner structural boost
// ─────────────────────────────────────────────────────────────────────────────

// SpinnerSuggestion proposes cloning the mapping of an already-mapped
// spinner-structured model onto an unmapped one with a matching arm/ring
// layout.
type SpinnerSuggestion struct {
	// DestModel is the unmapped destination model.
	DestModel string `json:"dest_model"`
	// SourceModel is the source the template's mapping points at.
	SourceModel string `json:"source_model"`
	// TemplateModel is the mapped destination model whose links would be
	// cloned.
	TemplateModel string `json:"template_model"`
	// Score is the structural similarity in [0,1].
	Score   float64        `json:"score"`
	Factors SpinnerFactors `json:"factors"`
	Reason  string         `json:"reason"`
}

// SpinnerFactors is the per-factor breakdown of a spinner suggestion, each
// normalised to [0,1].
type SpinnerFactors struct {
	ArmCount     float64 `json:"arm_count"`
	RingCount    float64 `json:"ring_count"`
	TotalPixels  float64 `json:"total_pixels"`
	PixelsPerArm float64 `json:"pixels_per_arm"`
}

var (
	armPattern  = regexp.MustCompile(`(?i)arm|blade|spoke|wing|^(a|arm|blade)\s*\d`)
	ringPattern = regexp.MustCompile(`(?i)ring|layer|circle|loop|^(r|ring)\s*\d`)
)

// spinnerStructure is the arm/ring skeleton extracted from submodel names.
type spinnerStructure struct {
	armCount     int
	ringCount    int
	totalPixels  int
	pixelsPerArm int
}

// extractSpinnerStructure reads arm and ring counts out of a model's
// submodel names.  Returns nil when the model carries no recognisable
// spinner structure.
func extractSpinnerStructure(el *layouttypes.Element) *spinnerStructure {
	if len(el.Submodels) == 0 {
		return nil
	}
	var armCount, ringCount, armPixels int
	for _, sub := range el.Submodels {
		switch {
		case armPattern.MatchString(sub.Name):
			armCount++
			armPixels += sub.PixelCount
		case ringPattern.MatchString(sub.Name):
			ringCount++
		}
	}
	if armCount == 0 && ringCount == 0 {
		return nil
	}
	s := &spinnerStructure{armCount: armCount, ringCount: ringCount, totalPixels: el.PixelCount}
	if armCount > 0 {
		s.pixelsPerArm = int(math.Round(float64(armPixels) / float64(armCount)))
	}
	return s
}

// spinnerSimilarity scores two spinner structures: arm count 40%, ring count
// 25%, total pixels 20%, pixels per arm 15%.  An arm count difference over
// two is a hard fail on the dominant factor.
func spinnerSimilarity(a, b *spinnerStructure) (float64, SpinnerFactors, string) {
	armDiff := absInt(a.armCount - b.armCount)
	var armScore float64
	switch {
	case armDiff == 0:
		armScore = 100
	case armDiff == 1:
		armScore = 60
	case armDiff == 2:
		armScore = 20
	}

	ringDiff := absInt(a.ringCount - b.ringCount)
	var ringScore float64
	switch {
	case ringDiff == 0:
		ringScore = 100
	case ringDiff == 1:
		ringScore = 70
	case ringDiff == 2:
		ringScore = 30
	default:
		ringScore = 5
	}

	totalPixelScore := ratioScore(a.totalPixels, b.totalPixels)
	perArmScore := ratioScore(a.pixelsPerArm, b.pixelsPerArm)

	score := (armScore*0.40 + ringScore*0.25 + totalPixelScore*0.20 + perArmScore*0.15) / 100

	var parts []string
	switch {
	case armDiff == 0:
		parts = append(parts, "same arm count")
	case armDiff == 1:
		parts = append(parts, "1 arm difference")
	}
	switch {
	case ringDiff == 0:
		parts = append(parts, "same ring count")
	case ringDiff <= 2:
		parts = append(parts, fmt.Sprintf("%d ring difference", ringDiff))
	}
	if totalPixelScore >= 60 {
		parts = append(parts, "similar pixel count")
	} else {
		parts = append(parts, "different pixel count")
	}

	factors := SpinnerFactors{
		ArmCount:     armScore / 100,
		RingCount:    ringScore / 100,
		TotalPixels:  totalPixelScore / 100,
		PixelsPerArm: perArmScore / 100,
	}
	return score, factors, strings.Join(parts, ", ")
}

func ratioScore(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 20
	}
	ratio := float64(max(a, b)) / float64(min(a, b))
	switch {
	case ratio <= 1.2:
		return 100
	case ratio <= 1.5:
		return 60
	default:
		return 20
	}
}

// SuggestSpinners proposes mappings for unmapped spinner-structured
// destination models by cloning the link of the structurally closest mapped
// one.  Models already reached through a mapped group are left alone.
// Results are sorted by score and capped at the configured limit.
func (m *Matcher) SuggestSpinners(dest *layouttypes.Inventory, links Links) []SpinnerSuggestion {
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}
	bySources := links.sourcesOf()

	type mappedSpinner struct {
		el        *layouttypes.Element
		structure *spinnerStructure
		source    string
	}
	var mapped []mappedSpinner
	var unmapped []struct {
		el        *layouttypes.Element
		structure *spinnerStructure
	}

	for _, el := range dest.Elements {
		if el.IsGroup() || isDMX(el) {
			continue
		}
		structure := extractSpinnerStructure(el)
		if structure == nil {
			continue
		}
		if srcs := bySources[el.Name]; len(srcs) > 0 {
			mapped = append(mapped, mappedSpinner{el: el, structure: structure, source: srcs[0]})
			continue
		}
		if groupCovered(dest, bySources, el.Name) {
			continue
		}
		unmapped = append(unmapped, struct {
			el        *layouttypes.Element
			structure *spinnerStructure
		}{el, structure})
	}
	if len(unmapped) == 0 || len(mapped) == 0 {
		return nil
	}

	var suggestions []SpinnerSuggestion
	for _, u := range unmapped {
		var best *SpinnerSuggestion
		for _, t := range mapped {
			score, factors, reason := spinnerSimilarity(u.structure, t.structure)
			if score < m.cfg.Threshold {
				continue
			}
			candidate := SpinnerSuggestion{
				DestModel:     u.el.Name,
				SourceModel:   t.source,
				TemplateModel: t.el.Name,
				Score:         score,
				Factors:       factors,
				Reason:        reason,
			}
			if best == nil || candidate.Score > best.Score {
				best = &candidate
			}
		}
		if best != nil {
			suggestions = append(suggestions, *best)
		}
	}

	// Larger models win score ties: covering one reclaims more pixels.
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return pixelCount(dest, suggestions[i].DestModel) > pixelCount(dest, suggestions[j].DestModel)
	})
	if len(suggestions) > m.cfg.SuggestionLimit {
		suggestions = suggestions[:m.cfg.SuggestionLimit]
	}

	m.logger.Debug("spinner boost suggestions computed",
		logging.Int("mapped_spinners", len(mapped)),
		logging.Int("unmapped_spinners", len(unmapped)),
		logging.Int("suggestions", len(suggestions)),
	)
	return suggestions
}

// groupCovered reports whether any linked destination group lists the model
// as a member.
func groupCovered(dest *layouttypes.Inventory, bySources map[string][]string, name string) bool {
	for _, g := range dest.Groups() {
		if len(bySources[g.Name]) == 0 {
			continue
		}
		for _, member := range g.Members {
			if member == name {
				return true
			}
		}
	}
	return false
}

func pixelCount(inv *layouttypes.Inventory, name string) int {
	if el := inv.Get(name); el != nil {
		return el.PixelCount
	}
	return 0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
