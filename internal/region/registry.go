package region

import (
	"errors"
	"fmt"
	"log/slog"
)

// Variant selects the bounding-box table. The two tables differ in how the
// shoulder seam cuts the sleeves out of the body panels.
type Variant string

const (
	SetIn  Variant = "setIn"
	Raglan Variant = "raglan"
)

var ErrUnknownVariant = errors.New("unknown shoulder variant")

// ParseVariant validates a shoulder variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case SetIn, Raglan:
		return Variant(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

var boxTables = map[Variant]map[ID]Box{
	SetIn: {
		Front:       {X: 0.04, Y: 0.08, Width: 0.425, Height: 0.6},
		Back:        {X: 0.535, Y: 0.08, Width: 0.425, Height: 0.6},
		SleeveLeft:  {X: 0.04, Y: 0.72, Width: 0.2, Height: 0.24},
		SleeveRight: {X: 0.26, Y: 0.72, Width: 0.2, Height: 0.24},
		Collar:      {X: 0.5, Y: 0.72, Width: 0.46, Height: 0.08},
		Hem:         {X: 0.5, Y: 0.84, Width: 0.46, Height: 0.12},
	},
	Raglan: {
		Front:       {X: 0.05, Y: 0.1, Width: 0.41, Height: 0.58},
		Back:        {X: 0.54, Y: 0.1, Width: 0.41, Height: 0.58},
		SleeveLeft:  {X: 0.04, Y: 0.7, Width: 0.22, Height: 0.26},
		SleeveRight: {X: 0.28, Y: 0.7, Width: 0.22, Height: 0.26},
		Collar:      {X: 0.55, Y: 0.72, Width: 0.4, Height: 0.08},
		Hem:         {X: 0.55, Y: 0.84, Width: 0.4, Height: 0.12},
	},
}

var materials = map[ID]string{
	Front:       "mat_front",
	Back:        "mat_back",
	SleeveLeft:  "mat_sleeve_left",
	SleeveRight: "mat_sleeve_right",
	Collar:      "mat_collar",
	Hem:         "mat_hem",
}

// Trims that are never textured.
var excludedMaterials = map[string]bool{
	"mat_stitching": true,
	"mat_trim":      true,
	"mat_label":     true,
	"mat_zipper":    true,
}

// Registry binds 3D material names to regions and their bounding boxes.
// The active bounding-box table is fixed at construction.
type Registry struct {
	variant    Variant
	boxes      map[ID]Box
	byMaterial map[string]ID
}

// NewRegistry builds the registry for the given shoulder variant.
func NewRegistry(variant Variant) (*Registry, error) {
	table, ok := boxTables[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	r := &Registry{
		variant:    variant,
		boxes:      make(map[ID]Box, len(table)),
		byMaterial: make(map[string]ID, len(materials)),
	}
	for id, box := range table {
		r.boxes[id] = box
	}
	for id, mat := range materials {
		r.byMaterial[mat] = id
	}
	return r, nil
}

// Variant returns the shoulder variant chosen at construction.
func (r *Registry) Variant() Variant {
	return r.variant
}

// Regions returns every registered region in stable order.
func (r *Registry) Regions() []ID {
	out := make([]ID, 0, len(All))
	for _, id := range All {
		if _, ok := r.boxes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IsExcluded reports whether the material belongs to a non-texturable trim.
func (r *Registry) IsExcluded(material string) bool {
	return excludedMaterials[material]
}

// ResolveRegion maps a mesh material name to its region. Excluded and
// unmapped materials never resolve.
func (r *Registry) ResolveRegion(material string) (ID, bool) {
	if r.IsExcluded(material) {
		return "", false
	}
	id, ok := r.byMaterial[material]
	return id, ok
}

// BoundingBox returns the region's normalized placement area.
func (r *Registry) BoundingBox(id ID) (Box, error) {
	box, ok := r.boxes[id]
	if !ok {
		slog.Error("bounding box for unregistered region", "region", id)
		return Box{}, fmt.Errorf("%w: %q", ErrUnknownRegion, id)
	}
	return box, nil
}

// Material returns the material name bound to the region.
func (r *Registry) Material(id ID) string {
	return materials[id]
}

// Has reports whether the region is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.boxes[id]
	return ok
}
