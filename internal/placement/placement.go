package placement

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kitforge/kitforge/backend-go/internal/compositor"
	"github.com/kitforge/kitforge/backend-go/internal/geom"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/region"
)

var ErrNoSelection = errors.New("no logo selected")

// State is the pointer interaction state.
type State int

const (
	Idle State = iota
	Selected
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Context is the interaction state threaded through every pointer call.
// Region and Handle are set whenever State is not Idle.
type Context struct {
	State  State
	Region region.ID
	Handle compositor.Handle
}

// Active reports whether a logo is selected on id.
func (c Context) Active(id region.ID) bool {
	return c.State != Idle && c.Region == id
}

// OrbitController is the free camera control that must stay still while a
// logo is dragged.
type OrbitController interface {
	SetEnabled(enabled bool)
}

// Selection describes the active logo for UI controls. Handle is empty when
// nothing is selected.
type Selection struct {
	Region region.ID         `json:"region,omitempty"`
	Handle compositor.Handle `json:"handle,omitempty"`
	ScaleX float64           `json:"scaleX,omitempty"`
	ScaleY float64           `json:"scaleY,omitempty"`
	Angle  float64           `json:"angle,omitempty"`
}

// Engine turns raycast hits into logo selection and transform edits.
type Engine struct {
	registry   *region.Registry
	compositor *compositor.Compositor
	orbit      OrbitController
	size       float64
	listeners  []func(Selection)
}

// New creates a placement engine drawing on surfaces of the given side length.
func New(reg *region.Registry, comp *compositor.Compositor, orbit OrbitController, size int) *Engine {
	if orbit == nil {
		orbit = noopOrbit{}
	}
	return &Engine{registry: reg, compositor: comp, orbit: orbit, size: float64(size)}
}

type noopOrbit struct{}

func (noopOrbit) SetEnabled(bool) {}

// OnSelectionChange registers fn to run whenever the active logo changes.
func (e *Engine) OnSelectionChange(fn func(Selection)) {
	e.listeners = append(e.listeners, fn)
}

// ToPixel maps a UV coordinate to surface pixels. V is not flipped.
func (e *Engine) ToPixel(uv mesh.Vec2) geom.Point {
	return geom.Point{X: uv[0] * e.size, Y: uv[1] * e.size}
}

// resolve maps a hit material to a texturable region.
func (e *Engine) resolve(hit mesh.Hit) (region.ID, bool) {
	if e.registry.IsExcluded(hit.Material) {
		slog.Warn("hit on excluded material", "material", hit.Material)
		return "", false
	}
	id, ok := e.registry.ResolveRegion(hit.Material)
	if !ok {
		slog.Warn("hit on unmapped material", "material", hit.Material)
		return "", false
	}
	return id, true
}

// PointerDown handles a press. ok is false when the ray missed the model.
func (e *Engine) PointerDown(ctx Context, hit mesh.Hit, ok bool) (Context, error) {
	if !ok {
		e.orbit.SetEnabled(true)
		return e.deselect(ctx), nil
	}
	id, ok := e.resolve(hit)
	if !ok {
		return ctx, nil
	}
	p := e.ToPixel(hit.UV)

	if !ctx.Active(id) {
		logo, found := e.compositor.LogoAt(id, p.X, p.Y)
		if !found {
			return e.deselect(ctx), nil
		}
		next := e.leave(ctx, Context{State: Selected, Region: id, Handle: logo.Handle})
		e.notify(next)
		return next, nil
	}

	logo, err := e.compositor.Logo(id, ctx.Handle)
	if err != nil {
		slog.Warn("active logo vanished", "region", id, "handle", ctx.Handle)
		return e.deselect(ctx), nil
	}
	del, clone := logo.Hotspots()
	switch {
	case logo.Controls.Delete && del.Contains(p.X, p.Y):
		return e.DeleteSelected(ctx)
	case logo.Controls.Clone && clone.Contains(p.X, p.Y):
		return e.CloneSelected(ctx)
	}

	e.orbit.SetEnabled(false)
	ctx.State = Dragging
	return ctx, nil
}

// PointerMove drags the active logo while the ray stays on its region.
func (e *Engine) PointerMove(ctx Context, hit mesh.Hit, ok bool) (Context, error) {
	if ctx.State != Dragging || !ok {
		return ctx, nil
	}
	id, ok := e.resolve(hit)
	if !ok || id != ctx.Region {
		return ctx, nil
	}
	p := e.ToPixel(hit.UV)
	err := e.compositor.UpdateLogo(id, ctx.Handle, func(l *compositor.Logo) {
		l.SetCenter(p)
	})
	if err != nil {
		return ctx, fmt.Errorf("placement: drag: %w", err)
	}
	return ctx, nil
}

// PointerUp ends a drag.
func (e *Engine) PointerUp(ctx Context) Context {
	if ctx.State != Dragging {
		return ctx
	}
	e.orbit.SetEnabled(true)
	return Context{}
}

// ScaleSelected multiplies the active logo's scale on both axes.
func (e *Engine) ScaleSelected(ctx Context, factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("placement: scale factor %v must be positive", factor)
	}
	return e.updateSelected(ctx, func(l *compositor.Logo) {
		l.ScaleX *= factor
		l.ScaleY *= factor
	})
}

// RotateSelected sets the active logo's angle in degrees, keeping its center.
func (e *Engine) RotateSelected(ctx Context, degrees float64) error {
	return e.updateSelected(ctx, func(l *compositor.Logo) {
		c := l.Center()
		l.Angle = degrees
		l.SetCenter(c)
	})
}

func (e *Engine) updateSelected(ctx Context, fn func(*compositor.Logo)) error {
	if ctx.State == Idle {
		return ErrNoSelection
	}
	if err := e.compositor.UpdateLogo(ctx.Region, ctx.Handle, fn); err != nil {
		return fmt.Errorf("placement: %w", err)
	}
	e.notify(ctx)
	return nil
}

// DeleteSelected removes the active logo and clears the selection.
func (e *Engine) DeleteSelected(ctx Context) (Context, error) {
	if ctx.State == Idle {
		return ctx, ErrNoSelection
	}
	if err := e.compositor.RemoveLogoLayer(ctx.Region, ctx.Handle); err != nil {
		return ctx, fmt.Errorf("placement: delete: %w", err)
	}
	slog.Debug("logo deleted", "region", ctx.Region, "handle", ctx.Handle)
	e.orbit.SetEnabled(true)
	next := Context{}
	e.notify(next)
	return next, nil
}

// CloneSelected duplicates the active logo and selects the copy.
func (e *Engine) CloneSelected(ctx Context) (Context, error) {
	if ctx.State == Idle {
		return ctx, ErrNoSelection
	}
	h, err := e.compositor.CloneLogoLayer(ctx.Region, ctx.Handle)
	if err != nil {
		return ctx, fmt.Errorf("placement: clone: %w", err)
	}
	slog.Debug("logo cloned", "region", ctx.Region, "from", ctx.Handle, "to", h)
	next := e.leave(ctx, Context{State: Selected, Region: ctx.Region, Handle: h})
	e.notify(next)
	return next, nil
}

// Select makes h the active logo on id, as after a fresh placement.
func (e *Engine) Select(id region.ID, h compositor.Handle) (Context, error) {
	if _, err := e.compositor.Logo(id, h); err != nil {
		return Context{}, fmt.Errorf("placement: select: %w", err)
	}
	next := Context{State: Selected, Region: id, Handle: h}
	e.notify(next)
	return next, nil
}

// Reset drops any selection or drag in progress.
func (e *Engine) Reset(ctx Context) Context {
	return e.deselect(ctx)
}

func (e *Engine) deselect(ctx Context) Context {
	next := e.leave(ctx, Context{})
	if ctx.State != Idle {
		e.notify(next)
	}
	return next
}

// leave hands the camera back to orbit whenever a transition ends a drag.
func (e *Engine) leave(from, to Context) Context {
	if from.State == Dragging && to.State != Dragging {
		e.orbit.SetEnabled(true)
	}
	return to
}

// Selection describes ctx's active logo.
func (e *Engine) Selection(ctx Context) Selection {
	if ctx.State == Idle {
		return Selection{}
	}
	s := Selection{Region: ctx.Region, Handle: ctx.Handle}
	if l, err := e.compositor.Logo(ctx.Region, ctx.Handle); err == nil {
		s.ScaleX, s.ScaleY, s.Angle = l.ScaleX, l.ScaleY, l.Angle
	}
	return s
}

func (e *Engine) notify(ctx Context) {
	sel := e.Selection(ctx)
	for _, fn := range e.listeners {
		fn(sel)
	}
}
