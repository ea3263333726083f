// Package effecttree prunes a source inventory down to the elements a
// sequence actually animates.  Cross-referencing each group's own effect
// presence with its members' produces a scenario classification per group
// and a disposition per element, so the matching engine only sees elements
// that genuinely need a destination.
package effecttree

import (
	"regexp"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Types
// ─────────────────────────────────────────────────────────────────────────────

// GroupScenario classifies a group's effect relationship with its members.
type GroupScenario string

const (
	// ScenarioA means the group has its own effects and no member is
	// individually animated; members are fully inherited.
	ScenarioA GroupScenario = "A"
	// ScenarioB means the group has its own effects and some members are
	// also individually animated; those members still need their own mapping.
	ScenarioB GroupScenario = "B"
	// ScenarioC means the group itself has no effects but at least one
	// member does; the group is dropped and members surface individually.
	ScenarioC GroupScenario = "C"
)

// Disposition places an element in exactly one mapping bucket.
type Disposition string

const (
	// NeedsMapping means the element must receive its own destination.
	NeedsMapping Disposition = "needs_mapping"
	// Inherited means the element is covered by exactly one
	// non-all-encompassing group and needs no destination of its own.
	Inherited Disposition = "inherited"
	// Excluded means the element carries no animation in this sequence.
	Excluded Disposition = "excluded"
)

// Facts carries the effect-presence data for one sequence, supplied by an
// external sequence reader.  DirectCounts is optional; when present it is
// the ground truth for whether a group has its own effects, since sequence
// files list container groups that carry zero direct effects.
type Facts struct {
	Active       map[string]bool
	DirectCounts map[string]int
}

// Has reports whether name carries any animation data in the sequence.
func (f Facts) Has(name string) bool {
	return f.Active[name]
}

// HasDirect reports whether a group has effects of its own, preferring the
// direct-effect counts when available.
func (f Facts) HasDirect(name string) bool {
	if f.DirectCounts != nil {
		return f.DirectCounts[name] > 0
	}
	return f.Has(name)
}

// GroupInfo describes one group's scenario evaluation.
type GroupInfo struct {
	Name               string
	Scenario           GroupScenario
	MembersWithEffects []string
	MembersInherited   []string
	MemberCount        int
	AllEncompassing    bool
}

// Summary aggregates tree statistics for reporting.
type Summary struct {
	TotalElements     int
	GroupsNeedMapping int
	ModelsNeedMapping int
	ModelsInherited   int
	ModelsExcluded    int
	ActiveItems       int
}

// Tree is the derived, read-only result of one (inventory, facts) pair.
type Tree struct {
	// Groups holds scenario evaluations for every group with any effect
	// involvement, in inventory order.
	Groups []GroupInfo
	// ActiveItems is the flattened list of element names that need their
	// own mapping: A/B groups first, then individuals, in inventory order.
	ActiveItems []string
	// Dispositions places every inventory element in exactly one bucket.
	Dispositions map[string]Disposition
	// CoveredBy maps an inherited element name to its covering group.
	CoveredBy map[string]string
	Summary   Summary
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config carries the all-encompassing detection heuristics.  Both are
// deployment-tunable; the defaults were calibrated on one installation's
// data and may need adjustment elsewhere.
type Config struct {
	// AllEncompassingPatterns force the flag by name alone.
	AllEncompassingPatterns []*regexp.Regexp
	// MemberRatio forces the flag when a group references more than this
	// fraction of all individual elements.
	MemberRatio float64
	// RatioMinModels is the minimum number of individual elements an
	// inventory must have before the ratio rule may trigger.  On a tiny
	// layout every group covers "most of the display", and suppressing
	// inheritance there would exclude members that plainly belong to their
	// group.
	RatioMinModels int
}

// DefaultConfig returns the built-in all-encompassing heuristics.
func DefaultConfig() Config {
	return Config{
		AllEncompassingPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bwhole\b`),
			regexp.MustCompile(`(?i)\beverything\b`),
			regexp.MustCompile(`(?i)\bfull\s+house\b`),
			regexp.MustCompile(`(?i)\byard\s+only\b`),
		},
		MemberRatio:    0.8,
		RatioMinModels: 5,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Builder
// ─────────────────────────────────────────────────────────────────────────────

// Builder constructs effect trees.  Building is deterministic and
// idempotent: the same inventory and facts always yield an identical tree.
type Builder struct {
	cfg    Config
	logger logging.Logger
}

// NewBuilder constructs a Builder.  A nil logger falls back to the no-op
// logger.
func NewBuilder(cfg Config, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.MemberRatio <= 0 || cfg.MemberRatio > 1 {
		cfg.MemberRatio = DefaultConfig().MemberRatio
	}
	if cfg.RatioMinModels <= 0 {
		cfg.RatioMinModels = DefaultConfig().RatioMinModels
	}
	return &Builder{cfg: cfg, logger: logger.Named("effecttree")}
}

// allEncompassing applies the OR of the two heuristics: a matching name
// pattern, or a member ratio above the threshold.  Each path triggers the
// flag independently; the ratio path additionally requires the inventory to
// clear RatioMinModels.
func (b *Builder) allEncompassing(g *layouttypes.Element, totalIndividuals int) bool {
	for _, p := range b.cfg.AllEncompassingPatterns {
		if p.MatchString(g.Name) {
			return true
		}
	}
	if totalIndividuals >= b.cfg.RatioMinModels &&
		float64(len(g.Members))/float64(totalIndividuals) > b.cfg.MemberRatio {
		return true
	}
	return false
}

// Build evaluates the effect tree for one source inventory and one
// sequence's presence facts.
func (b *Builder) Build(inv *layouttypes.Inventory, facts Facts) (*Tree, error) {
	if inv == nil || inv.Len() == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInventoryEmpty, "effect tree requires a non-empty inventory")
	}

	individuals := inv.Individuals()
	groups := inv.Groups()
	totalIndividuals := len(individuals)

	tree := &Tree{
		Dispositions: make(map[string]Disposition, inv.Len()),
		CoveredBy:    make(map[string]string),
	}

	activeGroups := make([]string, 0, len(groups))

	for _, g := range groups {
		withFx, withoutFx := splitMembers(g.Members, facts)

		if !facts.HasDirect(g.Name) {
			if len(withFx) > 0 {
				// Scenario C: the group is dropped, members surface on
				// their own.
				tree.Groups = append(tree.Groups, GroupInfo{
					Name:               g.Name,
					Scenario:           ScenarioC,
					MembersWithEffects: withFx,
					MemberCount:        len(g.Members),
					AllEncompassing:    b.allEncompassing(g, totalIndividuals),
				})
			}
			tree.Dispositions[g.Name] = Excluded
			continue
		}

		ae := b.allEncompassing(g, totalIndividuals)
		scenario := ScenarioA
		if len(withFx) > 0 {
			scenario = ScenarioB
		}

		info := GroupInfo{
			Name:               g.Name,
			Scenario:           scenario,
			MembersWithEffects: withFx,
			MemberCount:        len(g.Members),
			AllEncompassing:    ae,
		}

		// An all-encompassing group still needs a mapping itself, but it
		// never claims inheritance over its members.
		if !ae {
			for _, m := range withoutFx {
				member := inv.Get(m)
				if member == nil || member.IsGroup() {
					continue
				}
				if _, claimed := tree.CoveredBy[m]; !claimed {
					tree.CoveredBy[m] = g.Name
					info.MembersInherited = append(info.MembersInherited, m)
				}
			}
		}

		tree.Groups = append(tree.Groups, info)
		tree.Dispositions[g.Name] = NeedsMapping
		activeGroups = append(activeGroups, g.Name)
	}

	// Individuals: a member-level effect fact always overrides inherited
	// coverage.  Coverage claims only ever reference members without their
	// own facts, so the three buckets are disjoint by construction.
	activeIndividuals := make([]string, 0, len(individuals))
	for _, m := range individuals {
		switch {
		case facts.Has(m.Name):
			tree.Dispositions[m.Name] = NeedsMapping
			activeIndividuals = append(activeIndividuals, m.Name)
		case tree.CoveredBy[m.Name] != "":
			tree.Dispositions[m.Name] = Inherited
		default:
			tree.Dispositions[m.Name] = Excluded
		}
	}

	tree.ActiveItems = append(activeGroups, activeIndividuals...)

	tree.Summary = Summary{
		TotalElements:     inv.Len(),
		GroupsNeedMapping: len(activeGroups),
		ModelsNeedMapping: len(activeIndividuals),
		ModelsInherited:   len(tree.CoveredBy),
		ActiveItems:       len(tree.ActiveItems),
	}
	for _, m := range individuals {
		if tree.Dispositions[m.Name] == Excluded {
			tree.Summary.ModelsExcluded++
		}
	}

	b.logger.Debug("effect tree built",
		logging.Int("total", tree.Summary.TotalElements),
		logging.Int("groups_active", tree.Summary.GroupsNeedMapping),
		logging.Int("models_active", tree.Summary.ModelsNeedMapping),
		logging.Int("inherited", tree.Summary.ModelsInherited),
	)
	return tree, nil
}

// ActiveElements filters the inventory down to the elements in ActiveItems,
// preserving tree order.  This is the pruned set handed to the matching
// engine.
func (t *Tree) ActiveElements(inv *layouttypes.Inventory) []*layouttypes.Element {
	out := make([]*layouttypes.Element, 0, len(t.ActiveItems))
	for _, name := range t.ActiveItems {
		if el := inv.Get(name); el != nil {
			out = append(out, el)
		}
	}
	return out
}

func splitMembers(members []string, facts Facts) (withFx, withoutFx []string) {
	for _, m := range members {
		if facts.Has(m) {
			withFx = append(withFx, m)
		} else {
			withoutFx = append(withoutFx, m)
		}
	}
	return withFx, withoutFx
}
