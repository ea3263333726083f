// Package layout implements element classification for light-display
// inventories: deriving entity kinds from group membership, inferring
// functional types from names, and tagging submodel groups with semantic
// categories for cross-vendor equivalence.
package layout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Heuristic tables
// ─────────────────────────────────────────────────────────────────────────────

// Tables carries the name-pattern tables the classifier consults.  They are
// data, not code: deployments add vendors or categories by swapping the
// tables, never by touching classification logic.
type Tables struct {
	// SubmodelGroupPrefixes always indicate a submodel group, no further
	// qualification needed.
	SubmodelGroupPrefixes []string

	// VendorPrefixes indicate a vendor product name.  A vendor prefix alone
	// does NOT make a submodel group; it must combine with a part keyword.
	VendorPrefixes []string

	// PartKeywords are element-part words (Spokes, Rings, Arms) that,
	// combined with a vendor prefix, indicate a submodel group.
	PartKeywords []string

	// ContainerPatterns are regular expressions that force ModelGroup even
	// when a vendor prefix is present ("PPD Wreath GRP" is a whole-prop
	// group, not a part group).
	ContainerPatterns []*regexp.Regexp

	// SemanticCategories maps a category tag to the keywords that select it.
	// Evaluated in CategoryOrder; first match wins.
	SemanticCategories map[string][]string

	// CategoryOrder fixes the evaluation order of SemanticCategories so
	// classification stays deterministic.
	CategoryOrder []string
}

// DefaultTables returns the built-in heuristic tables, assembled from the
// vendor naming conventions observed across community layout files.
func DefaultTables() Tables {
	return Tables{
		SubmodelGroupPrefixes: []string{
			"S - ",
			"Spinners - ",
		},
		VendorPrefixes: []string{
			"PPD",
			"GE SpinReel",
			"GE SpinArchy",
			"GE Grand Illusion",
			"GE Rosa",
			"GE CC Boom",
			"GE Overlord",
			"GE Fuzion",
			"GE Click Click",
			"GE Preying",
			"EFL",
			"CCC",
			"Boscoyo",
		},
		PartKeywords: []string{
			"Spokes", "Spoke",
			"Rings", "Ring",
			"Arms", "Arm",
			"Petals", "Petal",
			"Flowers", "Flower",
			"Hearts", "Heart",
			"Circles", "Circle",
			"Spirals", "Spiral",
			"Balls", "Ball",
			"Ribbons", "Ribbon",
			"Triangles", "Triangle",
			"Diamonds", "Diamond",
			"Scallops", "Scallop",
			"Feathers", "Feather",
			"Stars", "Star",
			"Arrows", "Arrow",
			"Outline",
			"Center",
			"Outer",
			"Inner",
			"Even",
			"Odd",
			"Swirl",
			"Willow",
			"Saucers", "Saucer",
			"Bows", "Bow",
			"Cones", "Cone",
			"Torches", "Torch",
			"Hooks", "Hook",
			"Windmill",
			"All",
		},
		ContainerPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^All\s*-\s*.*-\s*GRP$`),
			regexp.MustCompile(`(?i)^All\s+\w+s(\s|$)`),
			regexp.MustCompile(`(?i)^\d+\s+All\s+`),
			regexp.MustCompile(`(?i)^GROUP\s*-`),
			regexp.MustCompile(`(?i)^FOLDER\s*-`),
			regexp.MustCompile(`(?i)^PPD\s+\w+\s+GRP$`),
			regexp.MustCompile(`(?i)^GE\s+\w+\s+GRP$`),
			regexp.MustCompile(`(?i)^Spinner\s*-\s*\w+\s*\d*$`),
		},
		SemanticCategories: map[string][]string{
			"rings":     {"ring", "rings", "circle", "circles", "ball", "balls", "saucer", "saucers"},
			"spokes":    {"spoke", "spokes", "arm", "arms", "arrow", "arrows", "feather", "feathers"},
			"spirals":   {"spiral", "spirals", "swirl", "willow", "ribbon", "ribbons"},
			"florals":   {"flower", "flowers", "petal", "petals", "heart", "hearts", "rosa", "iris", "leaf"},
			"scallops":  {"scallop", "scallops", "bow", "bows"},
			"triangles": {"triangle", "triangles", "diamond", "diamonds"},
			"effects":   {"even", "odd", "chase"},
			"outline":   {"outline", "outer", "inner", "center", "edge"},
		},
		CategoryOrder: []string{
			"rings", "spokes", "spirals", "florals", "scallops", "triangles", "effects", "outline",
		},
	}
}

// typeInferencePatterns maps name fragments to functional types, used when an
// element's declared type is Custom or absent.  Order matters: more specific
// patterns come first.
var typeInferencePatterns = []struct {
	re  *regexp.Regexp
	typ string
}{
	{regexp.MustCompile(`(?i)spinner|showstopper|overlord|fuzion|spinreel|\bsp[_\s-]`), "Spinner"},
	{regexp.MustCompile(`(?i)mega.?tree|\bmt[_\s-]`), "Mega Tree"},
	{regexp.MustCompile(`(?i)candy.?cane|\bcane\b|\bcc[_\s-]`), "Candy Cane"},
	{regexp.MustCompile(`(?i)arch`), "Arch"},
	{regexp.MustCompile(`(?i)tree`), "Tree"},
	{regexp.MustCompile(`(?i)matrix|panel|\bp5\b|\bp10\b`), "Matrix"},
	{regexp.MustCompile(`(?i)snowflake|flake`), "Snowflake"},
	{regexp.MustCompile(`(?i)star`), "Star"},
	{regexp.MustCompile(`(?i)wreath|rosa`), "Wreath"},
	{regexp.MustCompile(`(?i)icicle`), "Icicles"},
	{regexp.MustCompile(`(?i)window`), "Window"},
	{regexp.MustCompile(`(?i)flood`), "Flood"},
	{regexp.MustCompile(`(?i)pole`), "Pole"},
	{regexp.MustCompile(`(?i)fence`), "Fence"},
	{regexp.MustCompile(`(?i)spider`), "Spider"},
	{regexp.MustCompile(`(?i)tomb(stone)?`), "Tombstone"},
	{regexp.MustCompile(`(?i)pumpkin`), "Pumpkin"},
	{regexp.MustCompile(`(?i)ghost`), "Ghost"},
	{regexp.MustCompile(`(?i)skull`), "Skull"},
	{regexp.MustCompile(`(?i)singing|bulb`), "Singing Face"},
	{regexp.MustCompile(`(?i)tune.?to|radio`), "Sign"},
	{regexp.MustCompile(`(?i)present|gift`), "Present"},
	{regexp.MustCompile(`(?i)firework`), "Spiral Tree"},
	{regexp.MustCompile(`(?i)driveway|outline`), "Outline"},
	{regexp.MustCompile(`(?i)eave|roofline`), "Roofline"},
	{regexp.MustCompile(`(?i)icicles`), "Icicles"},
	{regexp.MustCompile(`(?i)wreaths`), "Wreath"},
}

// memberPathSeparator splits a "Parent/Submodel" member reference.
const memberPathSeparator = "/"

// ─────────────────────────────────────────────────────────────────────────────
// Classifier
// ─────────────────────────────────────────────────────────────────────────────

// Classifier derives entity kinds, parent models, semantic categories, and
// functional types for layout elements.  Classification never fails: an
// ambiguous or unrecognized element degrades to ModelGroup with no semantic
// category rather than producing an error.
type Classifier struct {
	tables Tables
	logger logging.Logger
}

// NewClassifier constructs a Classifier.  A nil logger falls back to the
// no-op logger.
func NewClassifier(tables Tables, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Classifier{tables: tables, logger: logger.Named("classifier")}
}

// ClassifyAll classifies every group element in the inventory in place and
// infers functional types for elements whose type is empty or Custom.
func (c *Classifier) ClassifyAll(inv *layouttypes.Inventory) {
	for _, el := range inv.Elements {
		if el.Type == "" || el.Type == "Custom" {
			if inferred := InferType(el.Name); inferred != "" {
				el.Type = inferred
			} else if el.Type == "" {
				el.Type = "Custom"
			}
		}
		if el.IsGroup() {
			c.ClassifyGroup(el, inv)
		}
	}
}

// ClassifyGroup determines the entity kind, parent models, and semantic
// category of a single group element, writing the results onto el.
//
// Member analysis runs first: member names containing a path separator mark
// a submodel group; all-group members mark a meta group; a mix of models and
// groups marks a mixed group.  When membership is absent or yields a plain
// ModelGroup, the group's own name is re-checked against the pattern tables.
func (c *Classifier) ClassifyGroup(el *layouttypes.Element, inv *layouttypes.Inventory) {
	kind, parents := c.classifyFromMembers(el, inv)

	if kind == layouttypes.KindModelGroup {
		if nameKind := c.classifyByName(el.Name); nameKind == layouttypes.KindSubmodelGroup {
			kind = nameKind
		}
	}

	el.Kind = kind
	el.ParentModels = parents
	if kind == layouttypes.KindSubmodelGroup {
		el.SemanticCategory = c.SemanticCategory(el.Name)
	} else {
		el.SemanticCategory = ""
	}
}

// classifyFromMembers classifies a group from its resolved member names.
func (c *Classifier) classifyFromMembers(el *layouttypes.Element, inv *layouttypes.Inventory) (layouttypes.EntityKind, []string) {
	if len(el.Members) == 0 {
		return layouttypes.KindModelGroup, nil
	}

	parentSet := make(map[string]struct{})
	submodelCount := 0
	groupCount := 0
	modelCount := 0

	for _, member := range el.Members {
		if idx := strings.Index(member, memberPathSeparator); idx > 0 {
			parentSet[member[:idx]] = struct{}{}
			submodelCount++
			continue
		}
		if m := inv.Get(member); m != nil && m.IsGroup() {
			groupCount++
		} else {
			modelCount++
		}
	}

	// Half or more path-form members with at most two distinct parents is a
	// submodel group; some vendors span two related props in one part group.
	if submodelCount*2 >= len(el.Members) && len(parentSet) <= 2 {
		parents := make([]string, 0, len(parentSet))
		for p := range parentSet {
			parents = append(parents, p)
		}
		sort.Strings(parents)
		return layouttypes.KindSubmodelGroup, parents
	}

	if groupCount > 0 && modelCount == 0 && submodelCount == 0 {
		return layouttypes.KindMetaGroup, nil
	}
	if groupCount > 0 {
		return layouttypes.KindMixedGroup, nil
	}
	return layouttypes.KindModelGroup, nil
}

// classifyByName is the fallback when member analysis is inconclusive.
func (c *Classifier) classifyByName(name string) layouttypes.EntityKind {
	// Container patterns take priority over everything else.
	for _, p := range c.tables.ContainerPatterns {
		if p.MatchString(name) {
			return layouttypes.KindModelGroup
		}
	}
	for _, prefix := range c.tables.SubmodelGroupPrefixes {
		if strings.HasPrefix(name, prefix) {
			return layouttypes.KindSubmodelGroup
		}
	}
	if c.hasVendorPlusPart(name) {
		return layouttypes.KindSubmodelGroup
	}
	return layouttypes.KindModelGroup
}

// hasVendorPlusPart reports whether the name starts with a known vendor
// prefix AND contains a part keyword on a word boundary.  The vendor prefix
// alone is not enough: "GE Overlord GRP" names the whole prop.
func (c *Classifier) hasVendorPlusPart(name string) bool {
	upper := strings.ToUpper(name)
	hasVendor := false
	for _, prefix := range c.tables.VendorPrefixes {
		if strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			hasVendor = true
			break
		}
	}
	if !hasVendor {
		return false
	}
	words := tokenizeWords(upper)
	for _, kw := range c.tables.PartKeywords {
		if _, ok := words[strings.ToUpper(kw)]; ok {
			return true
		}
	}
	return false
}

// SemanticCategory matches the group name against the category keyword table
// after stripping vendor prefixes.  First category in CategoryOrder whose
// keyword appears wins; an empty result is valid (no category).
func (c *Classifier) SemanticCategory(name string) string {
	stripped := name
	upper := strings.ToUpper(name)
	for _, prefix := range c.tables.VendorPrefixes {
		up := strings.ToUpper(prefix)
		if strings.HasPrefix(upper, up) {
			stripped = name[len(prefix):]
			break
		}
	}
	words := tokenizeWords(strings.ToLower(stripped))
	for _, cat := range c.tables.CategoryOrder {
		for _, kw := range c.tables.SemanticCategories[cat] {
			if _, ok := words[kw]; ok {
				return cat
			}
		}
	}
	return ""
}

// InferType infers a functional type from an element name.  Returns the
// empty string when nothing matches; callers keep their declared type in
// that case.
func InferType(name string) string {
	for _, p := range typeInferencePatterns {
		if p.re.MatchString(name) {
			return p.typ
		}
	}
	return ""
}

var wordSplitRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// tokenizeWords splits a name into a word set on non-alphanumeric runs.
func tokenizeWords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordSplitRe.Split(s, -1) {
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}
