// Package layout defines the shared element-inventory types exchanged between
// the layout readers (external collaborators), the classifier, and the
// matching pipeline.  No behaviour beyond enum parsing lives here.
package layout

import "strings"

// ─────────────────────────────────────────────────────────────────────────────
// EntityKind
// ─────────────────────────────────────────────────────────────────────────────

// EntityKind classifies what a named element in a display layout is.
type EntityKind string

const (
	KindModel         EntityKind = "model"
	KindSubmodel      EntityKind = "submodel"
	KindModelGroup    EntityKind = "model_group"
	KindSubmodelGroup EntityKind = "submodel_group"
	KindMetaGroup     EntityKind = "meta_group"
	KindMixedGroup    EntityKind = "mixed_group"
)

// String returns the string representation of the kind.
func (k EntityKind) String() string { return string(k) }

// IsValid reports whether k is one of the defined kinds.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindModel, KindSubmodel, KindModelGroup, KindSubmodelGroup, KindMetaGroup, KindMixedGroup:
		return true
	}
	return false
}

// IsGroup reports whether the kind aggregates other elements.
func (k EntityKind) IsGroup() bool {
	switch k {
	case KindModelGroup, KindSubmodelGroup, KindMetaGroup, KindMixedGroup:
		return true
	}
	return false
}

// ParseEntityKind parses a string into an EntityKind, defaulting to KindModel
// for unrecognized input.  Classification must never fail the pipeline.
func ParseEntityKind(s string) EntityKind {
	k := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsValid() {
		return k
	}
	return KindModel
}

// ─────────────────────────────────────────────────────────────────────────────
// Element
// ─────────────────────────────────────────────────────────────────────────────

// Position is an element's location in layout world coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Submodel is a named sub-region of a single model's pixel range.
type Submodel struct {
	Name       string `json:"name"`
	Range      string `json:"range,omitempty"`
	PixelCount int    `json:"pixel_count"`
}

// Element is a named unit in a light display: an individual model, a submodel,
// or a group referencing other elements by name.  Groups never own their
// members.
type Element struct {
	Name       string     `json:"name"`
	Kind       EntityKind `json:"kind"`
	Type       string     `json:"type"`
	DisplayAs  string     `json:"display_as,omitempty"`
	PixelCount int        `json:"pixel_count"`
	Position   Position   `json:"position"`
	Submodels  []Submodel `json:"submodels,omitempty"`

	// Members lists referenced element names for group kinds; empty otherwise.
	Members []string `json:"members,omitempty"`

	// ParentModels lists the inferred parent element name(s) for a
	// submodel-group, deduplicated, in first-seen order.
	ParentModels []string `json:"parent_models,omitempty"`

	// SemanticCategory is the optional cross-vendor equivalence tag for a
	// submodel-group ("rings", "spokes", ...).  Empty means no category.
	SemanticCategory string `json:"semantic_category,omitempty"`
}

// IsGroup reports whether the element aggregates other elements.
func (e *Element) IsGroup() bool { return e.Kind.IsGroup() }

// Inventory is one side's full element list plus a name index.
type Inventory struct {
	Elements []*Element
	byName   map[string]*Element
}

// NewInventory builds an Inventory over the given elements.  Element order is
// preserved; matching relies on first-seen order for deterministic ties.
func NewInventory(elements []*Element) *Inventory {
	inv := &Inventory{
		Elements: elements,
		byName:   make(map[string]*Element, len(elements)),
	}
	for _, e := range elements {
		if e == nil || e.Name == "" {
			continue
		}
		if _, exists := inv.byName[e.Name]; !exists {
			inv.byName[e.Name] = e
		}
	}
	return inv
}

// Get returns the element with the given name, or nil.
func (inv *Inventory) Get(name string) *Element {
	if inv == nil {
		return nil
	}
	return inv.byName[name]
}

// Len returns the number of elements.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.Elements)
}

// Individuals returns the non-group elements in inventory order.
func (inv *Inventory) Individuals() []*Element {
	var out []*Element
	for _, e := range inv.Elements {
		if e != nil && !e.IsGroup() {
			out = append(out, e)
		}
	}
	return out
}

// Groups returns the group elements in inventory order.
func (inv *Inventory) Groups() []*Element {
	var out []*Element
	for _, e := range inv.Elements {
		if e != nil && e.IsGroup() {
			out = append(out, e)
		}
	}
	return out
}
