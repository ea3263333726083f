package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultTables(), nil)
}

func buildInventory(t *testing.T, elements ...*layouttypes.Element) *layouttypes.Inventory {
	t.Helper()
	return layouttypes.NewInventory(elements)
}

func model(name string) *layouttypes.Element {
	return &layouttypes.Element{Name: name, Kind: layouttypes.KindModel, Type: "Custom"}
}

func group(name string, members ...string) *layouttypes.Element {
	return &layouttypes.Element{Name: name, Kind: layouttypes.KindModelGroup, Type: "Group", Members: members}
}

func TestClassifyGroup_SubmodelMembers(t *testing.T) {
	c := newTestClassifier()
	g := group("GE Rosa Grande Spokes GRP", "GE Rosa Grande/Spoke-1", "GE Rosa Grande/Spoke-2")
	inv := buildInventory(t, model("GE Rosa Grande"), g)

	c.ClassifyGroup(g, inv)

	assert.Equal(t, layouttypes.KindSubmodelGroup, g.Kind)
	assert.Equal(t, []string{"GE Rosa Grande"}, g.ParentModels)
	assert.Equal(t, "spokes", g.SemanticCategory)
}

func TestClassifyGroup_TwoParentsStillSubmodelGroup(t *testing.T) {
	c := newTestClassifier()
	g := group("Spinner Rings", "Spinner L/Ring-1", "Spinner R/Ring-1")
	inv := buildInventory(t, model("Spinner L"), model("Spinner R"), g)

	c.ClassifyGroup(g, inv)

	assert.Equal(t, layouttypes.KindSubmodelGroup, g.Kind)
	assert.Equal(t, []string{"Spinner L", "Spinner R"}, g.ParentModels)
}

func TestClassifyGroup_MetaGroup(t *testing.T) {
	c := newTestClassifier()
	inner1 := group("All Arches", "Arch1", "Arch2")
	inner2 := group("All Poles", "Pole1")
	meta := group("Yard Groups", "All Arches", "All Poles")
	inv := buildInventory(t, model("Arch1"), model("Arch2"), model("Pole1"), inner1, inner2, meta)

	c.ClassifyGroup(meta, inv)

	assert.Equal(t, layouttypes.KindMetaGroup, meta.Kind)
}

func TestClassifyGroup_MixedGroup(t *testing.T) {
	c := newTestClassifier()
	inner := group("All Arches", "Arch1")
	mixed := group("Front Yard", "All Arches", "Pole1")
	inv := buildInventory(t, model("Arch1"), model("Pole1"), inner, mixed)

	c.ClassifyGroup(mixed, inv)

	assert.Equal(t, layouttypes.KindMixedGroup, mixed.Kind)
}

func TestClassifyGroup_PlainModelGroup(t *testing.T) {
	c := newTestClassifier()
	g := group("All Arches", "Arch1", "Arch2")
	inv := buildInventory(t, model("Arch1"), model("Arch2"), g)

	c.ClassifyGroup(g, inv)

	assert.Equal(t, layouttypes.KindModelGroup, g.Kind)
	assert.Empty(t, g.SemanticCategory)
}

func TestClassifyByName_VendorPrefixAlone_IsModelGroup(t *testing.T) {
	c := newTestClassifier()
	// "PPD Wreath GRP" names the whole prop, not a part of it.
	g := group("PPD Wreath GRP")
	inv := buildInventory(t, g)

	c.ClassifyGroup(g, inv)

	assert.Equal(t, layouttypes.KindModelGroup, g.Kind)
}

func TestClassifyByName_VendorPlusPartKeyword_IsSubmodelGroup(t *testing.T) {
	c := newTestClassifier()
	g := group("GE Overlord Spokes GRP")
	inv := buildInventory(t, g)

	c.ClassifyGroup(g, inv)

	assert.Equal(t, layouttypes.KindSubmodelGroup, g.Kind)
	assert.Equal(t, "spokes", g.SemanticCategory)
}

func TestClassifyByName_SubmodelGroupPrefix(t *testing.T) {
	c := newTestClassifier()
	g := group("S - Big Hearts")
	inv := buildInventory(t, g)

	c.ClassifyGroup(g, inv)

	assert.Equal(t, layouttypes.KindSubmodelGroup, g.Kind)
	assert.Equal(t, "florals", g.SemanticCategory)
}

func TestClassifyByName_ContainerPatternWinsOverVendor(t *testing.T) {
	c := newTestClassifier()
	tests := []string{
		"All - Arches - GRP",
		"GROUP - All Ghosts",
		"FOLDER - Rosa Tomb Groups",
		"10 All Arches",
		"Spinner - Showstopper 1",
	}
	for _, name := range tests {
		g := group(name)
		inv := buildInventory(t, g)
		c.ClassifyGroup(g, inv)
		assert.Equal(t, layouttypes.KindModelGroup, g.Kind, "name %q", name)
	}
}

func TestSemanticCategory_Table(t *testing.T) {
	c := newTestClassifier()
	tests := map[string]string{
		"GE Rosa Grande Rings GRP": "rings",
		"S - Spirals":              "spirals",
		"PPD Wreath Triangles":     "triangles",
		"Showstopper Outline":      "outline",
		"Scallops All":             "scallops",
		"Plain Name":               "",
	}
	for name, want := range tests {
		assert.Equal(t, want, c.SemanticCategory(name), "name %q", name)
	}
}

func TestInferType(t *testing.T) {
	tests := map[string]string{
		"SP_CW_16":                  "Spinner",
		"Spinner Clockwise 16-Arm":  "Spinner",
		"MT_350":                    "Mega Tree",
		"Arch 3":                    "Arch",
		"Mini Tree 1":               "Tree",
		"P10 Panel Matrix":          "Matrix",
		"Unknowable Thing":          "",
		"Left Candy Cane":           "Candy Cane",
		"Roofline Eave 2":           "Roofline",
	}
	for name, want := range tests {
		assert.Equal(t, want, InferType(name), "name %q", name)
	}
}

func TestClassifyAll_InfersTypesAndClassifiesGroups(t *testing.T) {
	c := newTestClassifier()
	m := model("SP_CW_16")
	g := group("All Spinners", "SP_CW_16")
	inv := buildInventory(t, m, g)

	c.ClassifyAll(inv)

	assert.Equal(t, "Spinner", m.Type)
	assert.Equal(t, layouttypes.KindModelGroup, g.Kind)
}
