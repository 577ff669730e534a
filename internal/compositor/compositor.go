package compositor

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
	"github.com/kitforge/kitforge/backend-go/internal/typeid"
)

var ErrLogoNotFound = errors.New("logo not found")

// Kind orders layers on a surface: design < stripe < logo.
type Kind int

const (
	KindDesign Kind = iota
	KindStripe
	KindLogo
)

func (k Kind) String() string {
	switch k {
	case KindDesign:
		return "design"
	case KindStripe:
		return "stripe"
	case KindLogo:
		return "logo"
	default:
		return "unknown"
	}
}

// Design is the base layer content: an optional fill color and an optional
// raster drawn to cover the whole surface.
type Design struct {
	Color     string
	SourceRef string
	Image     image.Image
}

// Empty reports whether the design layer draws nothing.
func (d Design) Empty() bool {
	return d.Color == "" && d.Image == nil
}

// Layer is one z-ordered entry on a surface.
type Layer struct {
	Kind   Kind
	Slot   region.Slot   // stripe layers
	Rects  []stripe.Rect // stripe layers
	Logo   *Logo         // logo layers
	Design *Design       // the design layer
}

// Surface is the layer stack backing one region's texture.
type Surface struct {
	Region region.ID
	Size   int
	layers []*Layer
}

func newSurface(id region.ID, size int) *Surface {
	return &Surface{
		Region: id,
		Size:   size,
		layers: []*Layer{{Kind: KindDesign, Design: &Design{}}},
	}
}

// normalize re-asserts design < stripes (by slot) < logos. The sort is
// stable so logos keep their relative stacking.
func (s *Surface) normalize() {
	sort.SliceStable(s.layers, func(i, j int) bool {
		a, b := s.layers[i], s.layers[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Kind == KindStripe {
			return a.Slot.Index() < b.Slot.Index()
		}
		return false
	})
}

func (s *Surface) design() *Design {
	return s.layers[0].Design
}

func (s *Surface) logoIndex(h Handle) int {
	for i, l := range s.layers {
		if l.Kind == KindLogo && l.Logo.Handle == h {
			return i
		}
	}
	return -1
}

// Compositor owns every region's layer stack and invalidates the matching
// texture after each mutation.
type Compositor struct {
	bank     *texture.Bank
	surfaces map[region.ID]*Surface
	newID    func() Handle
	revision uint64
}

// New creates an empty surface for every region in the bank.
func New(bank *texture.Bank) *Compositor {
	c := &Compositor{
		bank:     bank,
		surfaces: make(map[region.ID]*Surface),
		newID:    func() Handle { return Handle(typeid.NewLogoID()) },
	}
	for _, id := range bank.Regions() {
		c.surfaces[id] = newSurface(id, bank.Size())
	}
	return c
}

// Reset empties every surface and invalidates every texture.
func (c *Compositor) Reset() {
	for id, s := range c.surfaces {
		c.surfaces[id] = newSurface(id, s.Size)
		c.commit(c.surfaces[id])
	}
}

// Surface returns the region's layer stack.
func (c *Compositor) Surface(id region.ID) (*Surface, error) {
	s, ok := c.surfaces[id]
	if !ok {
		slog.Error("surface for unregistered region", "region", id)
		return nil, fmt.Errorf("compositor: %w: %q", region.ErrUnknownRegion, id)
	}
	return s, nil
}

// Revision counts layer mutations since New.
func (c *Compositor) Revision() uint64 {
	return c.revision
}

func (c *Compositor) commit(s *Surface) {
	c.revision++
	s.normalize()
	if err := c.bank.MarkDirty(s.Region); err != nil {
		slog.Warn("surface has no texture", "region", s.Region, "error", err)
	}
}

// SetDesignLayer replaces the design raster, leaving stripes and logos in place.
func (c *Compositor) SetDesignLayer(id region.ID, ref string, img image.Image) error {
	s, err := c.Surface(id)
	if err != nil {
		return err
	}
	d := s.design()
	d.SourceRef = ref
	d.Image = img
	c.commit(s)
	return nil
}

// SetDesignColor sets the base fill of the design layer.
func (c *Compositor) SetDesignColor(id region.ID, color string) error {
	s, err := c.Surface(id)
	if err != nil {
		return err
	}
	s.design().Color = color
	c.commit(s)
	return nil
}

// ClearDesignLayer empties the design layer. The layer itself stays at index 0.
func (c *Compositor) ClearDesignLayer(id region.ID) error {
	s, err := c.Surface(id)
	if err != nil {
		return err
	}
	*s.design() = Design{}
	c.commit(s)
	return nil
}

// Design returns a copy of the region's design layer content.
func (c *Compositor) Design(id region.ID) (Design, error) {
	s, err := c.Surface(id)
	if err != nil {
		return Design{}, err
	}
	return *s.design(), nil
}

// UpsertStripeLayer replaces every primitive of one slot. An empty rects
// slice removes the slot's layer.
func (c *Compositor) UpsertStripeLayer(id region.ID, slot region.Slot, rects []stripe.Rect) error {
	if slot.Index() < 0 {
		slog.Warn("stripe slot rejected", "region", id, "slot", slot)
		return fmt.Errorf("compositor: %w: %q", region.ErrInvalidSlot, slot)
	}
	s, err := c.Surface(id)
	if err != nil {
		return err
	}

	kept := s.layers[:0]
	for _, l := range s.layers {
		if l.Kind == KindStripe && l.Slot == slot {
			continue
		}
		kept = append(kept, l)
	}
	s.layers = kept

	if len(rects) > 0 {
		s.layers = append(s.layers, &Layer{
			Kind:  KindStripe,
			Slot:  slot,
			Rects: append([]stripe.Rect(nil), rects...),
		})
	}
	c.commit(s)
	return nil
}

// StripeRects returns the primitives of one slot.
func (c *Compositor) StripeRects(id region.ID, slot region.Slot) []stripe.Rect {
	s, err := c.Surface(id)
	if err != nil {
		return nil
	}
	for _, l := range s.layers {
		if l.Kind == KindStripe && l.Slot == slot {
			return append([]stripe.Rect(nil), l.Rects...)
		}
	}
	return nil
}

// AddLogoLayer places a logo on top of everything else on the surface.
func (c *Compositor) AddLogoLayer(id region.ID, logo *Logo) (Handle, error) {
	s, err := c.Surface(id)
	if err != nil {
		return "", err
	}
	if logo.Handle == "" {
		logo.Handle = c.newID()
	}
	s.layers = append(s.layers, &Layer{Kind: KindLogo, Logo: logo})
	c.commit(s)
	return logo.Handle, nil
}

// RemoveLogoLayer deletes a logo.
func (c *Compositor) RemoveLogoLayer(id region.ID, h Handle) error {
	s, err := c.Surface(id)
	if err != nil {
		return err
	}
	i := s.logoIndex(h)
	if i < 0 {
		return fmt.Errorf("compositor: %w: %s", ErrLogoNotFound, h)
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	c.commit(s)
	return nil
}

// CloneLogoLayer copies a logo, shifted by CloneOffset on both axes, and
// stacks the copy above every existing logo.
func (c *Compositor) CloneLogoLayer(id region.ID, h Handle) (Handle, error) {
	s, err := c.Surface(id)
	if err != nil {
		return "", err
	}
	i := s.logoIndex(h)
	if i < 0 {
		return "", fmt.Errorf("compositor: %w: %s", ErrLogoNotFound, h)
	}

	dup := s.layers[i].Logo.Clone()
	dup.Handle = c.newID()
	dup.Left += CloneOffset
	dup.Top += CloneOffset
	s.layers = append(s.layers, &Layer{Kind: KindLogo, Logo: dup})
	c.commit(s)
	return dup.Handle, nil
}

// Logo returns a logo by handle.
func (c *Compositor) Logo(id region.ID, h Handle) (*Logo, error) {
	s, err := c.Surface(id)
	if err != nil {
		return nil, err
	}
	i := s.logoIndex(h)
	if i < 0 {
		return nil, fmt.Errorf("compositor: %w: %s", ErrLogoNotFound, h)
	}
	return s.layers[i].Logo, nil
}

// UpdateLogo mutates a logo in place and invalidates the texture.
func (c *Compositor) UpdateLogo(id region.ID, h Handle, fn func(*Logo)) error {
	s, err := c.Surface(id)
	if err != nil {
		return err
	}
	i := s.logoIndex(h)
	if i < 0 {
		return fmt.Errorf("compositor: %w: %s", ErrLogoNotFound, h)
	}
	fn(s.layers[i].Logo)
	c.commit(s)
	return nil
}

// Logos returns the region's logos bottom to top.
func (c *Compositor) Logos(id region.ID) []*Logo {
	s, err := c.Surface(id)
	if err != nil {
		return nil
	}
	var out []*Logo
	for _, l := range s.layers {
		if l.Kind == KindLogo {
			out = append(out, l.Logo)
		}
	}
	return out
}

// LogoAt returns the topmost logo whose bounds contain (x, y).
func (c *Compositor) LogoAt(id region.ID, x, y float64) (*Logo, bool) {
	logos := c.Logos(id)
	for i := len(logos) - 1; i >= 0; i-- {
		if logos[i].Contains(x, y) {
			return logos[i], true
		}
	}
	return nil, false
}

// LayerInfo describes one layer for inspection.
type LayerInfo struct {
	Kind   string      `json:"kind"`
	Slot   region.Slot `json:"slot,omitempty"`
	Handle Handle      `json:"handle,omitempty"`
	Rects  int         `json:"rects,omitempty"`
}

// Layers lists the region's layers bottom to top.
func (c *Compositor) Layers(id region.ID) []LayerInfo {
	s, err := c.Surface(id)
	if err != nil {
		return nil
	}
	out := make([]LayerInfo, len(s.layers))
	for i, l := range s.layers {
		out[i] = LayerInfo{Kind: l.Kind.String(), Slot: l.Slot, Rects: len(l.Rects)}
		if l.Logo != nil {
			out[i].Handle = l.Logo.Handle
		}
	}
	return out
}
