package effecttree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

func model(name string) *layouttypes.Element {
	return &layouttypes.Element{Name: name, Kind: layouttypes.KindModel, Type: "Arch"}
}

func group(name string, members ...string) *layouttypes.Element {
	return &layouttypes.Element{Name: name, Kind: layouttypes.KindModelGroup, Type: "Group", Members: members}
}

func buildInventory(t *testing.T, elements ...*layouttypes.Element) *layouttypes.Inventory {
	t.Helper()
	return layouttypes.NewInventory(elements)
}

func facts(names ...string) Facts {
	active := make(map[string]bool, len(names))
	for _, n := range names {
		active[n] = true
	}
	return Facts{Active: active}
}

func newTestBuilder() *Builder {
	return NewBuilder(DefaultConfig(), nil)
}

func TestBuild_ScenarioA_MembersInherited(t *testing.T) {
	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		model("Arch1"),
		model("Arch2"),
		model("Pole1"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Arches GRP"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.Equal(t, ScenarioA, tree.Groups[0].Scenario)
	assert.Equal(t, []string{"Arches GRP"}, tree.ActiveItems)
	assert.Equal(t, Inherited, tree.Dispositions["Arch1"])
	assert.Equal(t, Inherited, tree.Dispositions["Arch2"])
	assert.Equal(t, Excluded, tree.Dispositions["Pole1"])
	assert.Equal(t, "Arches GRP", tree.CoveredBy["Arch1"])
}

func TestBuild_ScenarioB_MemberFactWins(t *testing.T) {
	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		model("Arch1"),
		model("Arch2"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Arches GRP", "Arch1"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.Equal(t, ScenarioB, tree.Groups[0].Scenario)
	assert.Equal(t, []string{"Arches GRP", "Arch1"}, tree.ActiveItems)
	assert.Equal(t, NeedsMapping, tree.Dispositions["Arch1"])
	assert.Equal(t, Inherited, tree.Dispositions["Arch2"])
}

func TestBuild_ScenarioC_GroupDroppedMembersSurface(t *testing.T) {
	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		model("Arch1"),
		model("Arch2"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Arch1"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.Equal(t, ScenarioC, tree.Groups[0].Scenario)
	assert.Equal(t, Excluded, tree.Dispositions["Arches GRP"])
	assert.Equal(t, []string{"Arch1"}, tree.ActiveItems)
	assert.Equal(t, NeedsMapping, tree.Dispositions["Arch1"])
	assert.Equal(t, Excluded, tree.Dispositions["Arch2"])
}

func TestBuild_AllEncompassingByName_NoInheritance(t *testing.T) {
	// Name pattern triggers even though member ratio is under threshold.
	inv := buildInventory(t,
		group("Whole House", "Arch1"),
		model("Arch1"),
		model("Arch2"),
		model("Arch3"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Whole House"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.True(t, tree.Groups[0].AllEncompassing)
	assert.Equal(t, NeedsMapping, tree.Dispositions["Whole House"])
	assert.Equal(t, Excluded, tree.Dispositions["Arch1"], "member must not be swallowed by an all-encompassing group")
	assert.Empty(t, tree.CoveredBy)
}

func TestBuild_AllEncompassingByRatio_NoInheritance(t *testing.T) {
	// Ratio triggers even though the name matches no pattern.
	inv := buildInventory(t,
		group("Main Pixels", "Arch1", "Arch2", "Arch3", "Arch4", "Arch5"),
		model("Arch1"),
		model("Arch2"),
		model("Arch3"),
		model("Arch4"),
		model("Arch5"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Main Pixels"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.True(t, tree.Groups[0].AllEncompassing, "5/5 members exceeds the 0.8 ratio")
	assert.Empty(t, tree.CoveredBy)
}

func TestBuild_RatioSkipsTinyInventories(t *testing.T) {
	// A two-element layout where one group holds both members: the ratio is
	// 1.0, but an inventory this small has no "whole display" for the group
	// to swallow, so inheritance must survive.
	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		model("Arch1"),
		model("Arch2"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Arches GRP"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.False(t, tree.Groups[0].AllEncompassing)
	assert.Equal(t, Inherited, tree.Dispositions["Arch1"])
	assert.Equal(t, Inherited, tree.Dispositions["Arch2"])
}

func TestBuild_RatioMinModelsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RatioMinModels = 2
	b := NewBuilder(cfg, nil)

	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		model("Arch1"),
		model("Arch2"),
	)

	tree, err := b.Build(inv, facts("Arches GRP"))
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.True(t, tree.Groups[0].AllEncompassing)
	assert.Empty(t, tree.CoveredBy)
}

func TestBuild_DirectCountsDisambiguateContainers(t *testing.T) {
	// The group appears in the sequence model list but has zero direct
	// effects; effect counts demote it to scenario C.
	inv := buildInventory(t,
		group("Arches GRP", "Arch1"),
		model("Arch1"),
	)
	f := Facts{
		Active:       map[string]bool{"Arches GRP": true, "Arch1": true},
		DirectCounts: map[string]int{"Arch1": 4},
	}

	tree, err := newTestBuilder().Build(inv, f)
	require.NoError(t, err)

	require.Len(t, tree.Groups, 1)
	assert.Equal(t, ScenarioC, tree.Groups[0].Scenario)
	assert.Equal(t, []string{"Arch1"}, tree.ActiveItems)
}

func TestBuild_Totality(t *testing.T) {
	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		group("Silent GRP", "Pole1"),
		model("Arch1"),
		model("Arch2"),
		model("Pole1"),
		model("Star1"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Arches GRP", "Star1"))
	require.NoError(t, err)

	// Every element lands in exactly one bucket.
	assert.Len(t, tree.Dispositions, inv.Len())
	for _, el := range inv.Elements {
		d, ok := tree.Dispositions[el.Name]
		assert.True(t, ok, "element %q unclassified", el.Name)
		assert.Contains(t, []Disposition{NeedsMapping, Inherited, Excluded}, d)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	inv := buildInventory(t,
		group("Arches GRP", "Arch1", "Arch2"),
		model("Arch1"),
		model("Arch2"),
	)
	f := facts("Arches GRP", "Arch1")
	b := newTestBuilder()

	first, err := b.Build(inv, f)
	require.NoError(t, err)
	second, err := b.Build(inv, f)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_OverlappingGroups_SingleCover(t *testing.T) {
	inv := buildInventory(t,
		group("Yard Left", "Arch1", "Arch2", "Arch3", "Pole1", "Pole2"),
		group("Arches Only", "Arch1", "Arch2", "Arch3", "Pole3", "Pole4"),
		model("Arch1"), model("Arch2"), model("Arch3"),
		model("Pole1"), model("Pole2"), model("Pole3"), model("Pole4"),
		model("Star1"), model("Star2"), model("Star3"),
	)

	tree, err := newTestBuilder().Build(inv, facts("Yard Left", "Arches Only"))
	require.NoError(t, err)

	// First group in inventory order claims the shared members.
	assert.Equal(t, "Yard Left", tree.CoveredBy["Arch1"])
	assert.Equal(t, Inherited, tree.Dispositions["Arch1"])
}

func TestBuild_EmptyInventory(t *testing.T) {
	inv := layouttypes.NewInventory(nil)

	_, err := newTestBuilder().Build(inv, facts())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInventoryEmpty))
}

func TestActiveElements_PreservesOrder(t *testing.T) {
	g := group("Arches GRP", "Arch1", "Arch2")
	m1 := model("Arch1")
	inv := buildInventory(t, g, m1, model("Arch2"))

	tree, err := newTestBuilder().Build(inv, facts("Arches GRP", "Arch1"))
	require.NoError(t, err)

	active := tree.ActiveElements(inv)
	require.Len(t, active, 2)
	assert.Same(t, g, active[0])
	assert.Same(t, m1, active[1])
}
