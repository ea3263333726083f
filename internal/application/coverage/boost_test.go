package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LightMap-Intelligence/internal/config"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func testBoostConfig() config.BoostConfig {
	return config.BoostConfig{
		Enabled:          true,
		Threshold:        0.70,
		SuggestionLimit:  5,
		CascadeMinModels: 30,
		CascadeRatio:     0.20,
	}
}

func model(name, typ string, pixels int) *layouttypes.Element {
	return &layouttypes.Element{Name: name, Kind: layouttypes.KindModel, Type: typ, PixelCount: pixels}
}

func group(name, typ string, members ...string) *layouttypes.Element {
	return &layouttypes.Element{Name: name, Kind: layouttypes.KindModelGroup, Type: typ, Members: members}
}

func spinner(name string, arms, armPixels, rings int) *layouttypes.Element {
	el := model(name, "Custom", arms*armPixels)
	for i := 0; i < arms; i++ {
		el.Submodels = append(el.Submodels, layouttypes.Submodel{Name: "Arm 1", PixelCount: armPixels})
	}
	for i := 0; i < rings; i++ {
		el.Submodels = append(el.Submodels, layouttypes.Submodel{Name: "Ring 1"})
	}
	return el
}

// ─────────────────────────────────────────────────────────────────────────────
// Display coverage
// ─────────────────────────────────────────────────────────────────────────────

func TestCompute_GroupLinkCascadesToMembers(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("All Arches", "", "Arch 1", "Arch 2", "Arch 3"),
		group("All Trees", "", "Tree 1"),
		model("Arch 1", "Arches", 100),
		model("Arch 2", "Arches", 100),
		model("Arch 3", "Arches", 100),
		model("Tree 1", "Tree", 500),
	})
	links := Links{"Src Arches": {"All Arches"}}

	cov := m.Compute(dest, links)

	assert.Equal(t, 3, cov.CoveredModels)
	assert.Equal(t, 4, cov.TotalModels)
	assert.InDelta(t, 75.0, cov.Percentage, 1e-9)
	assert.Equal(t, []string{"All Arches"}, cov.MappedGroups)
	assert.Equal(t, []string{"All Trees"}, cov.UnmappedGroups)
}

func TestCompute_EncompassingGroupDoesNotCascade(t *testing.T) {
	cfg := testBoostConfig()
	cfg.CascadeMinModels = 2
	m := NewMatcher(cfg, nil)

	// Five individuals: cascade limit is max(2, round(5*0.2)) = 2, so the
	// five-member aggregation group must not cascade.
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("Whole Display", "", "Arch 1", "Arch 2", "Tree 1", "Star 1", "Matrix 1"),
		model("Arch 1", "Arches", 100),
		model("Arch 2", "Arches", 100),
		model("Tree 1", "Tree", 500),
		model("Star 1", "Star", 250),
		model("Matrix 1", "Matrix", 1024),
	})
	links := Links{
		"Everything": {"Whole Display"},
		"Src Star":   {"Star 1"},
	}

	cov := m.Compute(dest, links)

	assert.Equal(t, 1, cov.CoveredModels)
	assert.Equal(t, 5, cov.TotalModels)
	assert.InDelta(t, 20.0, cov.Percentage, 1e-9)
	assert.Equal(t, []string{"Whole Display"}, cov.MappedGroups)
}

func TestCompute_DirectLinkCoversModel(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		model("Arch 1", "Arches", 100),
		model("Arch 2", "Arches", 100),
	})
	cov := m.Compute(dest, Links{"Src Arch": {"Arch 1"}})

	assert.Equal(t, 1, cov.CoveredModels)
	assert.InDelta(t, 50.0, cov.Percentage, 1e-9)
}

func TestCompute_ExcludesDMXModels(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		model("Skull Servo", "DmxServo", 0),
		model("Arch 1", "Arches", 100),
	})
	cov := m.Compute(dest, Links{"Src Arch": {"Arch 1"}})

	assert.Equal(t, 1, cov.TotalModels)
	assert.InDelta(t, 100.0, cov.Percentage, 1e-9)
}

func TestCompute_EmptyDisplayIsFullyCovered(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	cov := m.Compute(layouttypes.NewInventory(nil), Links{})

	assert.Zero(t, cov.TotalModels)
	assert.InDelta(t, 100.0, cov.Percentage, 1e-9)
}

// ─────────────────────────────────────────────────────────────────────────────
// Group boost suggestions
// ─────────────────────────────────────────────────────────────────────────────

func TestSuggest_StructuralMatch(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	source := layouttypes.NewInventory([]*layouttypes.Element{
		group("GE Spinners", "", "GS 1", "GS 2"),
		model("GS 1", "Custom", 500),
		model("GS 2", "Custom", 500),
	})
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("My Spinners", "", "MS 1", "MS 2"),
		model("MS 1", "Custom", 520),
		model("MS 2", "Custom", 520),
	})
	links := Links{"GE Spinners": {"Old Group"}}

	cov := m.Compute(dest, links)
	require.Equal(t, []string{"My Spinners"}, cov.UnmappedGroups)

	got := m.Suggest(source, dest, links, cov)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "My Spinners", s.DestGroup)
	assert.Equal(t, "GE Spinners", s.SourceGroup)
	assert.Equal(t, []string{"Old Group"}, s.ExistingDests)
	// pixel 100*0.35 + member 100*0.30 + geometry 100*0.20 + richness 30*0.15
	assert.InDelta(t, 0.895, s.Score, 1e-9)
	assert.InDelta(t, 1.0, s.Factors.PixelProximity, 1e-9)
	assert.InDelta(t, 1.0, s.Factors.MemberCount, 1e-9)
	assert.InDelta(t, 0.3, s.Factors.Richness, 1e-9)
	assert.Equal(t, "similar pixel count, compatible member count, similar geometry", s.Reason)
}

func TestSuggest_BelowThresholdRejected(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	source := layouttypes.NewInventory([]*layouttypes.Element{
		group("Mega Matrix Group", "Matrix", "M 1"),
		model("M 1", "Matrix", 5000),
	})
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("Tiny Spinners", "Spinner",
			"S 1", "S 2", "S 3", "S 4", "S 5", "S 6", "S 7", "S 8", "S 9"),
		model("S 1", "Custom", 100), model("S 2", "Custom", 100),
		model("S 3", "Custom", 100), model("S 4", "Custom", 100),
		model("S 5", "Custom", 100), model("S 6", "Custom", 100),
		model("S 7", "Custom", 100), model("S 8", "Custom", 100),
		model("S 9", "Custom", 100),
	})
	links := Links{"Mega Matrix Group": {"Other"}}

	got := m.Suggest(source, dest, links, m.Compute(dest, links))
	assert.Empty(t, got)
}

func TestSuggest_SkipsAlreadyLinkedPair(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	source := layouttypes.NewInventory([]*layouttypes.Element{
		group("GE Spinners", "", "GS 1"),
		model("GS 1", "Custom", 500),
	})
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("My Spinners", "", "MS 1"),
		model("MS 1", "Custom", 500),
	})
	links := Links{"GE Spinners": {"My Spinners"}}

	// Stale coverage still lists the group: the matcher must not re-propose
	// an existing link.
	got := m.Suggest(source, dest, links, Coverage{UnmappedGroups: []string{"My Spinners"}})
	assert.Empty(t, got)
}

func TestSuggest_SortsByScoreAndHonorsLimit(t *testing.T) {
	cfg := testBoostConfig()
	cfg.SuggestionLimit = 1
	m := NewMatcher(cfg, nil)

	source := layouttypes.NewInventory([]*layouttypes.Element{
		group("Src Group", "", "GS 1", "GS 2"),
		model("GS 1", "Custom", 500),
		model("GS 2", "Custom", 500),
	})
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("Close Group", "", "CA 1", "CA 2"),
		group("Far Group", "", "FB 1", "FB 2"),
		model("CA 1", "Custom", 520), model("CA 2", "Custom", 520),
		model("FB 1", "Custom", 700), model("FB 2", "Custom", 700),
	})
	links := Links{"Src Group": {"Old"}}

	got := m.Suggest(source, dest, links, m.Compute(dest, links))
	// Both groups clear the threshold (0.895 vs 0.79); the limit keeps the
	// closer one.
	require.Len(t, got, 1)
	assert.Equal(t, "Close Group", got[0].DestGroup)
}

func TestSuggest_NoMappedSourceGroups(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	source := layouttypes.NewInventory([]*layouttypes.Element{
		group("GE Spinners", "", "GS 1"),
		model("GS 1", "Custom", 500),
	})
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("My Spinners", "", "MS 1"),
		model("MS 1", "Custom", 500),
	})

	got := m.Suggest(source, dest, Links{}, m.Compute(dest, Links{}))
	assert.Empty(t, got)
}

// ─────────────────────────────────────────────────────────────────────────────
// Spinner boost suggestions
// ─────────────────────────────────────────────────────────────────────────────

func TestSuggestSpinners_ClonesMatchingStructure(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		spinner("Spinner A", 4, 100, 2),
		spinner("Spinner B", 4, 100, 2),
	})
	links := Links{"GE Spinner": {"Spinner A"}}

	got := m.SuggestSpinners(dest, links)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "Spinner B", s.DestModel)
	assert.Equal(t, "GE Spinner", s.SourceModel)
	assert.Equal(t, "Spinner A", s.TemplateModel)
	assert.InDelta(t, 1.0, s.Score, 1e-9)
	assert.Equal(t, "same arm count, same ring count, similar pixel count", s.Reason)
}

func TestSuggestSpinners_ArmCountMismatchIsHardFail(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		spinner("Spinner A", 4, 100, 2),
		spinner("Spinner C", 8, 50, 2),
	})
	links := Links{"GE Spinner": {"Spinner A"}}

	// Arm factor zeroes out: 0*0.40 + 100*0.25 + 100*0.20 + 20*0.15 = 0.48.
	got := m.SuggestSpinners(dest, links)
	assert.Empty(t, got)
}

func TestSuggestSpinners_GroupCoveredModelSkipped(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("All Spinners", "", "Spinner D"),
		spinner("Spinner A", 4, 100, 2),
		spinner("Spinner D", 4, 100, 2),
	})
	links := Links{
		"GE Spinner": {"Spinner A"},
		"Src Group":  {"All Spinners"},
	}

	got := m.SuggestSpinners(dest, links)
	assert.Empty(t, got)
}

func TestSuggestSpinners_IgnoresModelsWithoutStructure(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		spinner("Spinner A", 4, 100, 2),
		model("Plain Matrix", "Matrix", 1024),
	})
	links := Links{"GE Spinner": {"Spinner A"}}

	got := m.SuggestSpinners(dest, links)
	assert.Empty(t, got)
}

// ─────────────────────────────────────────────────────────────────────────────
// Projected coverage
// ─────────────────────────────────────────────────────────────────────────────

func TestProject_AcceptedSuggestionsRaiseCoverage(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("My Spinners", "", "MS 1", "MS 2"),
		model("MS 1", "Custom", 500),
		model("MS 2", "Custom", 500),
		spinner("Spinner B", 4, 100, 2),
		model("Arch 1", "Arches", 100),
		model("Arch 2", "Arches", 100),
	})
	links := Links{
		"Src Arch 1": {"Arch 1"},
		"Src Arch 2": {"Arch 2"},
	}
	base := m.Compute(dest, links)
	assert.Equal(t, 2, base.CoveredModels)
	assert.Equal(t, 5, base.TotalModels)

	groupAccepted := []Suggestion{{DestGroup: "My Spinners"}}
	spinnerAccepted := []SpinnerSuggestion{{DestModel: "Spinner B"}}

	assert.InDelta(t, 100.0, m.Project(base, groupAccepted, spinnerAccepted, dest, links), 1e-9)

	// A spinner already counted through an accepted group adds nothing.
	overlap := []SpinnerSuggestion{{DestModel: "MS 1"}}
	assert.InDelta(t, 80.0, m.Project(base, groupAccepted, overlap, dest, links), 1e-9)
}

func TestProject_SkipsMembersCoveredByExistingLinks(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		group("My Spinners", "", "MS 1", "MS 2"),
		model("MS 1", "Custom", 500),
		model("MS 2", "Custom", 500),
		model("Arch 1", "Arches", 100),
		model("Arch 2", "Arches", 100),
	})
	links := Links{"Src Spinner": {"MS 1"}}
	base := m.Compute(dest, links)
	assert.Equal(t, 1, base.CoveredModels)

	// MS 1 already has a direct link; accepting the group may only add MS 2.
	accepted := []Suggestion{{DestGroup: "My Spinners"}}
	assert.InDelta(t, 50.0, m.Project(base, accepted, nil, dest, links), 1e-9)

	// A spinner suggestion for an already-linked model adds nothing either.
	spinners := []SpinnerSuggestion{{DestModel: "MS 1"}}
	assert.InDelta(t, 25.0, m.Project(base, nil, spinners, dest, links), 1e-9)
}

func TestProject_NoAcceptedSuggestionsKeepsBase(t *testing.T) {
	m := NewMatcher(testBoostConfig(), nil)
	base := Coverage{CoveredModels: 3, TotalModels: 4}

	assert.InDelta(t, 75.0, m.Project(base, nil, nil, layouttypes.NewInventory(nil), nil), 1e-9)
}
