// Package coverage implements the export-time coverage boost: a display
// coverage calculator plus structural matchers that propose additional
// many-to-one links between unmapped destination groups and already-mapped
// source elements.  It runs outside the primary resolution chain, over a
// link state the caller has already settled.
package coverage

import (
	"math"
	"sort"
	"strings"

	"github.com/turtacn/LightMap-Intelligence/internal/config"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Link state
// ─────────────────────────────────────────────────────────────────────────────

// Links records the current mapping link state: source element name to the
// destination element names it feeds.  A source may feed many destinations.
type Links map[string][]string

// sourcesOf inverts the link state into destination name -> sorted source
// names.  Sorting keeps downstream selection deterministic regardless of map
// iteration order.
func (l Links) sourcesOf() map[string][]string {
	inv := make(map[string][]string, len(l))
	for src, dests := range l {
		for _, d := range dests {
			inv[d] = append(inv[d], src)
		}
	}
	for d := range inv {
		sort.Strings(inv[d])
	}
	return inv
}

// linksTo reports whether src already feeds dest.
func (l Links) linksTo(src, dest string) bool {
	for _, d := range l[src] {
		if d == dest {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Matcher
// ─────────────────────────────────────────────────────────────────────────────

// Matcher computes display coverage and boost suggestions.  Matchers are
// stateless and safe for concurrent use.
type Matcher struct {
	cfg    config.BoostConfig
	logger logging.Logger
}

// NewMatcher builds a Matcher.  Zero-valued config fields fall back to the
// platform defaults.
func NewMatcher(cfg config.BoostConfig, logger logging.Logger) *Matcher {
	if cfg.Threshold == 0 {
		cfg.Threshold = config.DefaultBoostThreshold
	}
	if cfg.SuggestionLimit == 0 {
		cfg.SuggestionLimit = config.DefaultBoostSuggestionLimit
	}
	if cfg.CascadeMinModels == 0 {
		cfg.CascadeMinModels = config.DefaultBoostCascadeMinModels
	}
	if cfg.CascadeRatio == 0 {
		cfg.CascadeRatio = config.DefaultBoostCascadeRatio
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Matcher{cfg: cfg, logger: logger.Named("coverage")}
}

// ─────────────────────────────────────────────────────────────────────────────
// Display coverage
// ─────────────────────────────────────────────────────────────────────────────

// Coverage summarises what share of the destination display receives effects
// under the current link state.
type Coverage struct {
	// CoveredModels counts individual models reached by at least one link,
	// directly or through a cascading group.
	CoveredModels int `json:"covered_models"`
	// TotalModels counts individual, non-DMX models.
	TotalModels int `json:"total_models"`
	// Percentage is CoveredModels over TotalModels, rounded to one decimal.
	Percentage float64 `json:"percentage"`
	// MappedGroups lists destination groups with at least one link, in
	// inventory order.
	MappedGroups []string `json:"mapped_groups,omitempty"`
	// UnmappedGroups lists destination groups with no link, in inventory
	// order.  These are the candidates for boost suggestions.
	UnmappedGroups []string `json:"unmapped_groups,omitempty"`
}

// compute is the shared coverage walk.  Alongside the summary it returns the
// per-member bookkeeping: which individual names a cascading group claimed,
// and the destination -> sources inversion of the link state.  Project needs
// both to avoid recounting models the base state already covers.
func (m *Matcher) compute(dest *layouttypes.Inventory, links Links) (Coverage, map[string]bool, map[string][]string) {
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}
	bySources := links.sourcesOf()

	var groups, individuals []*layouttypes.Element
	for _, el := range dest.Elements {
		if isDMX(el) {
			continue
		}
		if el.IsGroup() {
			groups = append(groups, el)
		} else {
			individuals = append(individuals, el)
		}
	}

	cascadeLimit := m.cascadeLimit(len(individuals))

	cov := Coverage{TotalModels: len(individuals)}
	coveredByGroup := make(map[string]bool)
	for _, g := range groups {
		if len(bySources[g.Name]) == 0 {
			cov.UnmappedGroups = append(cov.UnmappedGroups, g.Name)
			continue
		}
		cov.MappedGroups = append(cov.MappedGroups, g.Name)
		if len(g.Members) <= cascadeLimit {
			for _, member := range g.Members {
				coveredByGroup[member] = true
			}
		}
	}

	for _, el := range individuals {
		if coveredByGroup[el.Name] || len(bySources[el.Name]) > 0 {
			cov.CoveredModels++
		}
	}
	cov.Percentage = percentage(cov.CoveredModels, cov.TotalModels)
	return cov, coveredByGroup, bySources
}

// Compute calculates display coverage over the destination inventory.
//
// A group with at least one link cascades coverage to its members, unless
// the group is larger than the cascade limit: an all-encompassing
// aggregation group linking everything would otherwise report the display
// as fully covered when only one link exists.  An individual model is
// covered if a cascading parent claims it or it has a direct link.
func (m *Matcher) Compute(dest *layouttypes.Inventory, links Links) Coverage {
	cov, _, _ := m.compute(dest, links)

	m.logger.Debug("display coverage computed",
		logging.Int("covered", cov.CoveredModels),
		logging.Int("total", cov.TotalModels),
		logging.Float64("percentage", cov.Percentage),
		logging.Int("unmapped_groups", len(cov.UnmappedGroups)),
	)
	return cov
}

// cascadeLimit is the largest member count a group may have and still cascade
// coverage to its members.
func (m *Matcher) cascadeLimit(individuals int) int {
	limit := int(math.Round(float64(individuals) * m.cfg.CascadeRatio))
	if limit < m.cfg.CascadeMinModels {
		limit = m.cfg.CascadeMinModels
	}
	return limit
}

// Project returns the coverage percentage the display would reach if the
// given suggestions were accepted.  Used to live-update the number while the
// caller toggles suggestions on and off.  Members the current link state
// already covers, directly or through a cascading group, count once: only
// genuinely new models raise the figure.
func (m *Matcher) Project(base Coverage, groups []Suggestion, spinners []SpinnerSuggestion, dest *layouttypes.Inventory, links Links) float64 {
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}
	_, coveredByGroup, bySources := m.compute(dest, links)
	counted := func(name string) bool {
		return coveredByGroup[name] || len(bySources[name]) > 0
	}
	additional := 0

	for _, s := range groups {
		g := dest.Get(s.DestGroup)
		if g == nil {
			continue
		}
		for _, member := range g.Members {
			el := dest.Get(member)
			if el == nil || el.IsGroup() || counted(member) {
				continue
			}
			coveredByGroup[member] = true
			additional++
		}
	}
	for _, s := range spinners {
		if counted(s.DestModel) {
			continue
		}
		coveredByGroup[s.DestModel] = true
		additional++
	}

	return percentage(base.CoveredModels+additional, base.TotalModels)
}

func percentage(covered, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(covered)/float64(total)*1000) / 10
}

// isDMX reports whether the element drives DMX fixtures rather than pixels.
// DMX props receive channel data, not effects, and are excluded from
// coverage accounting.
func isDMX(el *layouttypes.Element) bool {
	return strings.Contains(strings.ToLower(el.Type), "dmx") ||
		strings.Contains(strings.ToLower(el.DisplayAs), "dmx")
}
