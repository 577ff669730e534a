package engine

import (
	"encoding/json"

	"github.com/kitforge/kitforge/backend-go/internal/geom"
	"github.com/kitforge/kitforge/backend-go/internal/region"
)

// DrawCommand is one overlay primitive for the client to draw over a
// surface, in surface pixels. Overlays are not part of the texture.
type DrawCommand struct {
	Op       string       `json:"op"`                 // "border", "delete", "clone"
	Region   region.ID    `json:"region"`             // Surface the command belongs to
	Handle   string       `json:"handle,omitempty"`   // Logo the command decorates
	Points   []geom.Point `json:"points"`             // Closed polygon
	Stroke   string       `json:"stroke,omitempty"`   // Outline color
	Fill     string       `json:"fill,omitempty"`     // Fill color
	Rotation float64      `json:"rotation,omitempty"` // Degrees, for icon placement
}

// Overlay compiles the selection controls of the active logo: its rotated
// border and each enabled hotspot. It is empty without a selection.
func (e *Engine) Overlay() []DrawCommand {
	sel := e.interaction
	if sel.Handle == "" {
		return nil
	}
	l, err := e.compositor.Logo(sel.Region, sel.Handle)
	if err != nil {
		return nil
	}

	border := l.Bounds()
	cmds := []DrawCommand{{
		Op:       "border",
		Region:   sel.Region,
		Handle:   string(l.Handle),
		Points:   border[:],
		Stroke:   l.Style.BorderColor,
		Rotation: l.Angle,
	}}

	del, clone := l.Hotspots()
	if l.Controls.Delete {
		q := del.Quad()
		cmds = append(cmds, DrawCommand{Op: "delete", Region: sel.Region, Handle: string(l.Handle), Points: q[:], Fill: l.Style.CornerColor, Rotation: del.Angle})
	}
	if l.Controls.Clone {
		q := clone.Quad()
		cmds = append(cmds, DrawCommand{Op: "clone", Region: sel.Region, Handle: string(l.Handle), Points: q[:], Fill: l.Style.CornerColor, Rotation: clone.Angle})
	}
	return cmds
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// HitTest returns the handle of the topmost logo on a region containing the
// surface point, or an empty string.
func (e *Engine) HitTest(id region.ID, x, y float64) string {
	l, ok := e.compositor.LogoAt(id, x, y)
	if !ok {
		return ""
	}
	return string(l.Handle)
}

// SelectionBounds returns the axis-aligned bounds of the active logo.
func (e *Engine) SelectionBounds() geom.Rect {
	sel := e.interaction
	if sel.Handle == "" {
		return geom.Rect{}
	}
	l, err := e.compositor.Logo(sel.Region, sel.Handle)
	if err != nil {
		return geom.Rect{}
	}
	return l.Extent()
}

// OverlayBounds returns the box covering every overlay primitive, the area
// a client repaints when the selection changes.
func (e *Engine) OverlayBounds() geom.Rect {
	var r geom.Rect
	for _, cmd := range e.Overlay() {
		var q geom.Quad
		copy(q[:], cmd.Points)
		r = r.Union(q.Bounds())
	}
	return r
}

// RectToJSON serializes a Rect to JSON.
func RectToJSON(r geom.Rect) string {
	data, _ := json.Marshal(map[string]float64{
		"x":      r.X,
		"y":      r.Y,
		"width":  r.Width,
		"height": r.Height,
	})
	return string(data)
}
