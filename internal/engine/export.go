package engine

import (
	"context"
	"fmt"

	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

// LoadConfiguration replaces the whole garment state with c. Designs and
// logos arrive asynchronously; call Settle or keep ticking to see them.
func (e *Engine) LoadConfiguration(ctx context.Context, c *document.Configuration) error {
	if err := c.Validate(); err != nil {
		return err
	}

	for id := range e.designTasks {
		e.cancelDesign(id)
	}
	e.generation++
	e.compositor.Reset()
	e.interaction = e.placement.Reset(e.interaction)
	e.stripes = stripe.NewTable(e.registry.Regions())
	e.designs = make(map[region.ID]string)
	e.colors = make(map[region.ID]string)
	e.designRef = c.Design.SVGPath
	e.activeTab = document.TabDesigns
	if c.ActiveTab != "" {
		e.activeTab = c.ActiveTab
	}
	e.orientation = stripe.Horizontal
	if c.Orientation != "" {
		e.orientation = c.Orientation
	}

	for _, id := range e.registry.Regions() {
		if p, ok := c.Parts[id]; ok && p.Color != "" {
			if err := e.SetPartColor(id, p.Color); err != nil {
				return err
			}
		}
		for slot, cfg := range c.Stripes[id] {
			if err := e.SetStripe(id, slot, cfg); err != nil {
				return err
			}
		}
		if ref := c.DesignRef(id); ref != "" {
			if _, err := e.LoadDesign(ctx, id, ref); err != nil {
				return err
			}
		}
		for i := range c.Logos[id] {
			at := c.Logos[id][i]
			if _, err := e.LoadLogo(ctx, id, at.URL, &at); err != nil {
				return err
			}
		}
	}
	return nil
}

// Configuration exports the current state. Logos still loading are not
// included, nor are background design placements.
func (e *Engine) Configuration() *document.Configuration {
	c := &document.Configuration{
		ActiveTab:   e.activeTab,
		Design:      document.Design{SVGPath: e.designRef},
		Parts:       make(map[region.ID]document.Part),
		Logos:       make(map[region.ID][]document.Logo),
		Orientation: e.orientation,
		Stripes:     make(map[region.ID]map[region.Slot]stripe.Config),
	}

	size := e.bank.Size()
	for _, id := range e.registry.Regions() {
		if color, ok := e.colors[id]; ok {
			c.Parts[id] = document.Part{Color: color}
		}
		if ref, ok := e.designs[id]; ok && ref != e.designRef {
			if c.Designs == nil {
				c.Designs = make(map[region.ID]string)
			}
			c.Designs[id] = ref
		}

		slots := make(map[region.Slot]stripe.Config, len(region.Slots))
		for _, slot := range region.Slots {
			slots[slot] = e.stripes.Get(id, slot)
		}
		c.Stripes[id] = slots

		logos := []document.Logo{}
		designRef := c.DesignRef(id)
		for _, l := range e.compositor.Logos(id) {
			dl := document.Logo{
				URL:     l.SourceRef,
				Left:    l.Left,
				Top:     l.Top,
				ScaleX:  l.ScaleX,
				ScaleY:  l.ScaleY,
				Angle:   l.Angle,
				OriginX: l.OriginX,
				OriginY: l.OriginY,
			}
			if document.IsBackgroundPlacement(dl, designRef, size) {
				continue
			}
			logos = append(logos, dl)
		}
		c.Logos[id] = logos
	}
	return c
}

// ExportJSON is Configuration validated for persistence.
func (e *Engine) ExportJSON() (*document.Configuration, error) {
	c := e.Configuration()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("engine: export: %w", err)
	}
	return c, nil
}
